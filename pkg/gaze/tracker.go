package gaze

import (
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-gaze/pkg/landmarks"
)

// Config bundles estimator and smoother settings.
type Config struct {
	Estimator EstimatorConfig
	Smoother  SmootherConfig
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Estimator: DefaultEstimatorConfig(),
		Smoother:  DefaultSmootherConfig(),
	}
}

// Tracker is the estimator plus smoothing, usable on its own.
//
// One goroutine feeds it landmarks; any number may read the current point.
type Tracker struct {
	estimator *Estimator
	mu        sync.RWMutex
	smoother  *Smoother
	updatedAt time.Time
	samples   uint64
	misses    uint64
}

// NewTracker validates cfg and returns a tracker at the frame center.
func NewTracker(cfg Config, logger *slog.Logger) (*Tracker, error) {
	est, err := NewEstimator(cfg.Estimator, logger)
	if err != nil {
		return nil, err
	}
	sm, err := NewSmoother(cfg.Smoother)
	if err != nil {
		return nil, err
	}
	return &Tracker{estimator: est, smoother: sm}, nil
}

// Process estimates gaze from set and folds it into the smoothed state.
// It returns the raw estimate.
func (t *Tracker) Process(set landmarks.Set) Point {
	return t.ProcessDetail(set).Point
}

// ProcessDetail is Process returning the iris geometry as well.
func (t *Tracker) ProcessDetail(set landmarks.Set) Estimate {
	est := t.estimator.EstimateDetail(set)

	t.mu.Lock()
	if _, ok := t.smoother.Observe(est.Point); ok {
		t.updatedAt = time.Now()
		t.samples++
	}
	t.mu.Unlock()
	return est
}

// Current returns the smoothed point.
func (t *Tracker) Current() Point {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.smoother.Current()
}

// UpdatedAt returns when the state last changed, zero if never.
func (t *Tracker) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}

// Samples returns how many estimates have been accepted.
func (t *Tracker) Samples() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.samples
}

// ProcessNone records a frame with no detected face and returns the
// sentinel. The smoothed point is unchanged.
func (t *Tracker) ProcessNone() Point {
	t.mu.Lock()
	t.misses++
	t.mu.Unlock()
	return Sentinel
}

// Misses returns how many frames had no usable face.
func (t *Tracker) Misses() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.misses
}
