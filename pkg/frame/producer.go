package frame

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/go-gaze/internal/metrics"
)

// DefaultRetryDelay is how long the producer backs off after a failed read.
const DefaultRetryDelay = 10 * time.Millisecond

// Producer runs the acquisition loop: read a frame, publish it, repeat.
type Producer struct {
	src        Reader
	slot       *Slot
	retryDelay time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithRetryDelay sets the back-off after a failed read. Zero retries at once.
func WithRetryDelay(d time.Duration) ProducerOption {
	return func(p *Producer) {
		if d >= 0 {
			p.retryDelay = d
		}
	}
}

// WithProducerLogger sets the logger.
func WithProducerLogger(l *slog.Logger) ProducerOption {
	return func(p *Producer) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProducer creates a producer that publishes frames read from src.
func NewProducer(src Reader, slot *Slot, opts ...ProducerOption) *Producer {
	p := &Producer{
		src:        src,
		slot:       slot,
		retryDelay: DefaultRetryDelay,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "frame.producer")
	return p
}

// Run reads and publishes until ctx is done or the slot is closed.
//
// Read failures, including end of stream, are never fatal: the loop backs
// off and tries again. Run does not close the source; the owner does that
// after Run has returned.
func (p *Producer) Run(ctx context.Context) error {
	var failures int
	for ctx.Err() == nil {
		f, err := p.src.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			failures++
			metrics.CaptureErrors.Inc()
			if failures == 1 || failures%100 == 0 {
				p.logger.Warn("capture read failed", "error", err, "consecutive", failures)
			}
			if !sleep(ctx, p.retryDelay) {
				break
			}
			continue
		}
		if failures > 0 {
			p.logger.Info("capture recovered", "after_failures", failures)
			failures = 0
		}
		if f.CapturedAt.IsZero() {
			f.CapturedAt = p.now()
		}
		if p.slot.Publish(f) == 0 {
			p.logger.Debug("slot closed")
			break
		}
	}
	p.logger.Debug("acquisition loop stopped")
	return nil
}

// sleep waits for d or until ctx is done. It reports false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
