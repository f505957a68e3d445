package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-gaze/pkg/frame"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/landmarks"
	"github.com/teslashibe/go-gaze/pkg/selection"
)

// Confirmation is emitted once per selection that passes debounce and
// cooldown.
type Confirmation struct {
	ID        uuid.UUID           `json:"id"`
	Selection selection.Selection `json:"selection"`
	At        time.Time           `json:"at"`
	Gaze      gaze.Point          `json:"gaze"`
}

// RenderState is what a render sink receives every tick.
type RenderState struct {
	Selection         selection.Selection `json:"selection"`
	HasSelection      bool                `json:"has_selection"`
	Gaze              gaze.Point          `json:"gaze"`
	CooldownRemaining time.Duration       `json:"cooldown_remaining"`
	CoolingDown       bool                `json:"cooling_down"`
	Debug             bool                `json:"debug"`
	At                time.Time           `json:"at"`

	// Populated only on ticks with fresh landmarks.
	Estimate  *gaze.Estimate `json:"estimate,omitempty"`
	Landmarks *landmarks.Set `json:"-"`
	Frame     *frame.Frame   `json:"-"`
}

// RenderSink draws or publishes the per-tick state.
type RenderSink interface {
	Render(RenderState) error
}

// RenderFunc adapts a function to RenderSink.
type RenderFunc func(RenderState) error

// Render calls fn(s).
func (fn RenderFunc) Render(s RenderState) error { return fn(s) }

// MultiRender fans a state out to several sinks. Every sink is called even
// if an earlier one fails.
type MultiRender []RenderSink

// Render calls each sink and joins their errors.
func (m MultiRender) Render(s RenderState) error {
	var errs []error
	for _, r := range m {
		if err := r.Render(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Announcer receives confirmations. It is called exactly once per
// confirmation, on the processing goroutine, so it should not block.
type Announcer interface {
	Announce(ctx context.Context, c Confirmation) error
}

// AnnounceFunc adapts a function to Announcer.
type AnnounceFunc func(ctx context.Context, c Confirmation) error

// Announce calls fn(ctx, c).
func (fn AnnounceFunc) Announce(ctx context.Context, c Confirmation) error { return fn(ctx, c) }

type nopSink struct{}

func (nopSink) Render(RenderState) error                     { return nil }
func (nopSink) Announce(context.Context, Confirmation) error { return nil }
