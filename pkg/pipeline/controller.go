// Package pipeline wires frame acquisition, gaze estimation and selection
// into the per-tick processing loop.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-gaze/internal/metrics"
	"github.com/teslashibe/go-gaze/pkg/frame"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/landmarks"
	"github.com/teslashibe/go-gaze/pkg/selection"
)

// Tick outcomes, also used as the metrics label.
const (
	OutcomeSkipped   = "skipped"
	OutcomeStale     = "stale"
	OutcomeNoFace    = "no_face"
	OutcomeError     = "landmark_error"
	OutcomeProcessed = "processed"
)

// TickResult reports what one tick did.
type TickResult struct {
	Skipped   bool   // No frame has been published yet
	Outcome   string // One of the Outcome constants
	Seq       uint64 // Seq of the frame taken this tick
	Input     bool   // The estimator ran on fresh landmarks
	Raw       gaze.Point
	Accepted  bool // Raw passed the confidence gate and moved the smoothed point
	Smoothed  gaze.Point
	Selection selection.Selection // Cell under Smoothed, whether or not it was looked at this tick

	Confirmed  *Confirmation
	Suppressed bool // Debounce confirmed but the cooldown gate refused
}

// State is a copy of the controller's decision state.
type State struct {
	Smoothed gaze.Point
	Window   []selection.Selection
	Gate     selection.GateState
}

// Controller runs one processing tick at a time. Everything except the debug
// flag is owned by the goroutine calling Tick.
type Controller struct {
	cfg      Config
	slot     *frame.Slot
	provider landmarks.Provider

	estimator *gaze.Estimator
	smoother  *gaze.Smoother
	mapper    *selection.Mapper
	debouncer *selection.Debouncer
	gate      *selection.CooldownGate

	announcer Announcer
	render    RenderSink
	logger    *slog.Logger
	newID     func() uuid.UUID

	debug   atomic.Bool
	lastSeq uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithAnnouncer sets the confirmation sink.
func WithAnnouncer(a Announcer) Option {
	return func(c *Controller) {
		if a != nil {
			c.announcer = a
		}
	}
}

// WithRenderSink sets the per-tick render sink.
func WithRenderSink(r RenderSink) Option {
	return func(c *Controller) {
		if r != nil {
			c.render = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController validates cfg and builds the processing stages.
func NewController(cfg Config, slot *frame.Slot, provider landmarks.Provider, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if slot == nil || provider == nil {
		return nil, &ConfigError{Problems: []error{errors.New("slot and landmark provider are required")}}
	}

	c := &Controller{
		cfg:       cfg,
		slot:      slot,
		provider:  provider,
		announcer: nopSink{},
		render:    nopSink{},
		logger:    slog.Default(),
		newID:     uuid.New,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "pipeline")

	var err error
	if c.estimator, err = gaze.NewEstimator(cfg.Gaze.Estimator, c.logger); err != nil {
		return nil, err
	}
	if c.smoother, err = gaze.NewSmoother(cfg.Gaze.Smoother); err != nil {
		return nil, err
	}
	if c.mapper, err = selection.NewMapper(cfg.Labels); err != nil {
		return nil, err
	}
	if c.debouncer, err = selection.NewDebouncer(cfg.Window); err != nil {
		return nil, err
	}
	if c.gate, err = selection.NewCooldownGate(cfg.Cooldown); err != nil {
		return nil, err
	}
	c.debug.Store(cfg.Debug)
	return c, nil
}

// Tick runs one iteration of the processing loop at time now.
func (c *Controller) Tick(ctx context.Context, now time.Time) TickResult {
	// Expiry is checked before anything else so a stale Active state never
	// takes part in a decision.
	c.gate.Refresh(now)

	f, ok := c.slot.TakeLatest()
	if !ok {
		metrics.Ticks.WithLabelValues(OutcomeSkipped).Inc()
		return TickResult{Skipped: true, Outcome: OutcomeSkipped}
	}

	res := TickResult{Seq: f.Seq, Outcome: OutcomeStale}
	var (
		set *landmarks.Set
		est *gaze.Estimate
	)
	if f.Seq != c.lastSeq {
		c.lastSeq = f.Seq
		ls, err := c.provider.Landmarks(ctx, f)
		switch {
		case errors.Is(err, landmarks.ErrNoFace):
			res.Outcome = OutcomeNoFace
		case err != nil:
			res.Outcome = OutcomeError
			metrics.LandmarkErrors.Inc()
			c.logger.Warn("landmark provider failed", "seq", f.Seq, "error", err)
		default:
			e := c.estimator.EstimateDetail(ls)
			res.Outcome = OutcomeProcessed
			res.Input = true
			res.Raw = e.Point
			set, est = &ls, &e
		}
	}
	metrics.Ticks.WithLabelValues(res.Outcome).Inc()

	if res.Input {
		_, res.Accepted = c.smoother.Observe(res.Raw)
	}
	res.Smoothed = c.smoother.Current()
	res.Selection = c.mapper.Map(res.Smoothed)
	if res.Accepted {
		metrics.GazeX.Set(res.Smoothed.X)
		metrics.GazeY.Set(res.Smoothed.Y)
	}

	// The debounce window only sees fresh, confident observations made
	// outside cooldown, so its history never spans a cooldown.
	if res.Input && res.Accepted && !c.gate.Active() {
		if sel, stable := c.debouncer.Observe(res.Selection); stable {
			if c.gate.Allow(sel, now) {
				res.Confirmed = c.confirm(ctx, sel, res.Smoothed, now)
			} else {
				res.Suppressed = true
				metrics.Suppressed.WithLabelValues(sel.Label).Inc()
			}
		}
	}

	state := RenderState{
		Gaze:              res.Smoothed,
		CoolingDown:       c.gate.Active(),
		CooldownRemaining: c.gate.Remaining(now),
		Debug:             c.debug.Load(),
		At:                now,
		Estimate:          est,
		Landmarks:         set,
		Frame:             &f,
	}
	// Only a confident look at this frame highlights a cell; otherwise the
	// cursor stays on the held point with nothing selected.
	if res.Input && res.Accepted {
		state.Selection = res.Selection
		state.HasSelection = true
	}
	if err := c.render.Render(state); err != nil {
		metrics.SinkErrors.WithLabelValues("render").Inc()
		c.logger.Warn("render sink failed", "error", err)
	}
	return res
}

func (c *Controller) confirm(ctx context.Context, sel selection.Selection, p gaze.Point, now time.Time) *Confirmation {
	conf := Confirmation{ID: c.newID(), Selection: sel, At: now, Gaze: p}
	if err := c.announcer.Announce(ctx, conf); err != nil {
		metrics.SinkErrors.WithLabelValues("announce").Inc()
		c.logger.Warn("announcement sink failed", "selection", sel.Label, "error", err)
	}
	c.gate.Fire(sel, now)
	c.debouncer.Reset()
	metrics.Confirmations.WithLabelValues(sel.Label).Inc()
	c.logger.Debug("confirmation dispatched", "selection", sel.Label, "id", conf.ID)
	return &conf
}

// SetDebug toggles the debug overlay. Safe to call from any goroutine.
func (c *Controller) SetDebug(on bool) {
	c.debug.Store(on)
	c.logger.Info("debug mode", "enabled", on)
}

// ToggleDebug flips the debug overlay and returns the new value.
func (c *Controller) ToggleDebug() bool {
	for {
		old := c.debug.Load()
		if c.debug.CompareAndSwap(old, !old) {
			c.logger.Info("debug mode", "enabled", !old)
			return !old
		}
	}
}

// Debug reports whether the debug overlay is on.
func (c *Controller) Debug() bool { return c.debug.Load() }

// Smoothed returns the current smoothed gaze point.
func (c *Controller) Smoothed() gaze.Point { return c.smoother.Current() }

// Cooldown returns the remaining cooldown at now, 0 when idle.
func (c *Controller) Cooldown(now time.Time) time.Duration { return c.gate.Remaining(now) }

// LastSeq returns the Seq of the last frame handed to the landmark provider.
func (c *Controller) LastSeq() uint64 { return c.lastSeq }

// Labels returns the selection grid.
func (c *Controller) Labels() [][]string { return c.mapper.Labels() }

// State returns a copy of the decision state.
func (c *Controller) State() State {
	return State{
		Smoothed: c.smoother.Current(),
		Window:   c.debouncer.Snapshot(),
		Gate:     c.gate.State(),
	}
}
