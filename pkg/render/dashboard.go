// Package render publishes per-tick pipeline state to viewers.
//
// The gocv window lives in render/window so that headless deployments do not
// link OpenCV.
package render

import (
	"time"

	"github.com/teslashibe/go-gaze/internal/metrics"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/landmarks"
	"github.com/teslashibe/go-gaze/pkg/pipeline"
	"github.com/teslashibe/go-gaze/pkg/selection"
)

// EventState is the hub event type carrying a pipeline.RenderState.
const EventState = "state"

// Dashboard defaults.
const (
	DefaultStateInterval   = 50 * time.Millisecond
	DefaultPreviewInterval = 200 * time.Millisecond
	DefaultPreviewQuality  = 70
)

// Dashboard broadcasts render state as JSON on one hub and, optionally, JPEG
// camera previews on another. Both are throttled; a change of selection or
// cooldown is always sent immediately.
type Dashboard struct {
	state   *hub.Hub
	preview *hub.Hub

	stateEvery   time.Duration
	previewEvery time.Duration
	quality      int

	lastState   time.Time
	lastPreview time.Time
	lastSel     selection.Selection
	lastCooling bool
	sent        bool
}

// DashboardOption configures a Dashboard.
type DashboardOption func(*Dashboard)

// WithPreview sends camera frames to h as binary JPEG messages.
func WithPreview(h *hub.Hub) DashboardOption {
	return func(d *Dashboard) { d.preview = h }
}

// WithIntervals sets the minimum spacing of state and preview messages.
func WithIntervals(state, preview time.Duration) DashboardOption {
	return func(d *Dashboard) {
		if state >= 0 {
			d.stateEvery = state
		}
		if preview >= 0 {
			d.previewEvery = preview
		}
	}
}

// WithPreviewQuality sets the JPEG quality used for raw frames.
func WithPreviewQuality(q int) DashboardOption {
	return func(d *Dashboard) {
		if q > 0 && q <= 100 {
			d.quality = q
		}
	}
}

// NewDashboard returns a render sink broadcasting on state.
func NewDashboard(state *hub.Hub, opts ...DashboardOption) *Dashboard {
	d := &Dashboard{
		state:        state,
		stateEvery:   DefaultStateInterval,
		previewEvery: DefaultPreviewInterval,
		quality:      DefaultPreviewQuality,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Render is called on the processing goroutine once per tick.
func (d *Dashboard) Render(s pipeline.RenderState) error {
	now := s.At
	if now.IsZero() {
		now = time.Now()
	}

	if err := d.renderState(now, s); err != nil {
		return err
	}
	return d.renderPreview(now, s)
}

func (d *Dashboard) renderState(now time.Time, s pipeline.RenderState) error {
	changed := !d.sent || s.Selection != d.lastSel || s.CoolingDown != d.lastCooling
	if !changed && now.Sub(d.lastState) < d.stateEvery {
		return nil
	}
	if err := d.state.BroadcastEvent(EventState, s); err != nil {
		return err
	}
	d.sent = true
	d.lastState = now
	d.lastSel = s.Selection
	d.lastCooling = s.CoolingDown
	return nil
}

func (d *Dashboard) renderPreview(now time.Time, s pipeline.RenderState) error {
	if d.preview == nil || s.Frame == nil || s.Frame.Empty() {
		return nil
	}
	if !d.lastPreview.IsZero() && now.Sub(d.lastPreview) < d.previewEvery {
		return nil
	}
	jpg, err := landmarks.EncodeJPEG(*s.Frame, d.quality)
	if err != nil {
		metrics.SinkErrors.WithLabelValues("preview").Inc()
		return err
	}
	d.preview.BroadcastBinary(jpg)
	d.lastPreview = now
	return nil
}

var _ pipeline.RenderSink = (*Dashboard)(nil)
