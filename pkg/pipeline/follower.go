package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/teslashibe/go-gaze/internal/metrics"
	"github.com/teslashibe/go-gaze/pkg/frame"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/landmarks"
)

// Follower feeds a gaze.Tracker from a slot, without selection. It serves
// deployments that only expose the smoothed point: pushed-frame servers and
// the cursor preview.
type Follower struct {
	slot     *frame.Slot
	provider landmarks.Provider
	tracker  *gaze.Tracker
	logger   *slog.Logger
	onSample func(est gaze.Estimate, seq uint64)
}

// FollowerOption configures a Follower.
type FollowerOption func(*Follower)

// WithFollowerLogger sets the logger.
func WithFollowerLogger(l *slog.Logger) FollowerOption {
	return func(f *Follower) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithSampleHook is called after each frame with the raw estimate. Frames
// without a face report gaze.Sentinel.
func WithSampleHook(fn func(est gaze.Estimate, seq uint64)) FollowerOption {
	return func(f *Follower) { f.onSample = fn }
}

// NewFollower returns a follower. Nothing runs until Run.
func NewFollower(slot *frame.Slot, provider landmarks.Provider, tracker *gaze.Tracker, opts ...FollowerOption) *Follower {
	f := &Follower{
		slot:     slot,
		provider: provider,
		tracker:  tracker,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "follower")
	return f
}

// Run processes each newly published frame once until ctx is done or the
// slot is closed. Frames published while a previous one is being processed
// are coalesced to the latest.
func (f *Follower) Run(ctx context.Context) error {
	var seq uint64
	for f.slot.WaitNewer(ctx, seq) {
		fr, ok := f.slot.TakeLatest()
		if !ok || fr.Seq <= seq {
			continue
		}
		seq = fr.Seq

		est := f.process(ctx, fr)
		if f.onSample != nil {
			f.onSample(est, seq)
		}
	}
	return nil
}

func (f *Follower) process(ctx context.Context, fr frame.Frame) gaze.Estimate {
	set, err := f.provider.Landmarks(ctx, fr)
	switch {
	case err == nil:
		metrics.Ticks.WithLabelValues(OutcomeProcessed).Inc()
		return f.tracker.ProcessDetail(set)
	case errors.Is(err, landmarks.ErrNoFace):
		metrics.Ticks.WithLabelValues(OutcomeNoFace).Inc()
	case ctx.Err() != nil:
		// Shutting down.
	default:
		metrics.Ticks.WithLabelValues(OutcomeError).Inc()
		metrics.LandmarkErrors.Inc()
		f.logger.Warn("landmark provider failed", "seq", fr.Seq, "error", err)
	}
	return gaze.Estimate{Point: f.tracker.ProcessNone()}
}
