package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-gaze/pkg/frame"
)

// Source is a capture device the runner owns: it is read by the producer
// and closed by the runner once the producer has exited.
type Source interface {
	frame.Reader
	Close() error
}

// Runner runs the acquisition and processing loops until its context ends.
type Runner struct {
	src      Source
	ctl      *Controller
	slot     *frame.Slot
	idleTick time.Duration
	logger   *slog.Logger
	now      func() time.Time
	onTick   func(TickResult)
	prodOpts []frame.ProducerOption
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock replaces time.Now for tick timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithTickHook is called after every tick on the processing goroutine.
func WithTickHook(fn func(TickResult)) RunnerOption {
	return func(r *Runner) { r.onTick = fn }
}

// WithProducerOptions passes options through to the frame producer.
func WithProducerOptions(opts ...frame.ProducerOption) RunnerOption {
	return func(r *Runner) { r.prodOpts = append(r.prodOpts, opts...) }
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a runner. The controller must have been built on slot.
func NewRunner(src Source, ctl *Controller, slot *frame.Slot, opts ...RunnerOption) *Runner {
	r := &Runner{
		src:      src,
		ctl:      ctl,
		slot:     slot,
		idleTick: ctl.cfg.IdleTick,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "pipeline.runner")
	return r
}

// Run blocks until ctx is done. The processing loop runs on the calling
// goroutine; the producer runs on its own.
//
// On the way out the producer is stopped and waited for before the source
// is closed, so a read is never in flight on a released device. The slot is
// closed last.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	producer := frame.NewProducer(r.src, r.slot, append([]frame.ProducerOption{frame.WithProducerLogger(r.logger)}, r.prodOpts...)...)
	g.Go(func() error {
		return producer.Run(gctx)
	})

	r.logger.Info("pipeline started", "idle_tick", r.idleTick)
	for ctx.Err() == nil {
		res := r.ctl.Tick(ctx, r.now())
		if r.onTick != nil {
			r.onTick(res)
		}
		if ctx.Err() != nil || r.slot.Closed() {
			break
		}
		r.wait(ctx)
	}

	cancel()
	err := g.Wait()
	if cerr := r.src.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("pipeline: close source: %w", cerr)
	}
	r.slot.Close()
	r.logger.Info("pipeline stopped", "stats", r.slot.Stats())
	return err
}

// wait blocks until a frame newer than the last processed one arrives or
// the idle tick elapses, so cooldown and rendering advance during stalls.
func (r *Runner) wait(ctx context.Context) {
	wctx, cancel := context.WithTimeout(ctx, r.idleTick)
	defer cancel()
	r.slot.WaitNewer(wctx, r.ctl.LastSeq())
}
