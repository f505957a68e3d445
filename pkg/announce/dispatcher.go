// Package announce delivers confirmed selections to speech, logs and
// websocket clients.
package announce

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-gaze/internal/metrics"
	"github.com/teslashibe/go-gaze/pkg/pipeline"
)

// Dispatcher defaults.
const (
	DefaultQueueSize      = 8
	DefaultDeliverTimeout = 10 * time.Second

	// recentIDs bounds the duplicate filter.
	recentIDs = 64
)

var (
	// ErrQueueFull is returned when the worker is too far behind.
	ErrQueueFull = errors.New("announce: queue full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("announce: dispatcher closed")
)

// Dispatcher decouples a slow announcer (speech) from the processing loop.
// Announce only enqueues; a single worker delivers each confirmation to the
// wrapped sink exactly once, in order.
type Dispatcher struct {
	sink    pipeline.Announcer
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	queue  chan pipeline.Confirmation
	closed bool
	seen   map[uuid.UUID]struct{}
	order  []uuid.UUID

	cancel context.CancelFunc
	done   chan struct{}

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithQueueSize sets how many confirmations may wait for delivery.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan pipeline.Confirmation, n)
		}
	}
}

// WithDeliverTimeout bounds a single delivery.
func WithDeliverTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher starts the delivery worker. Call Close to stop it.
func NewDispatcher(sink pipeline.Announcer, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sink:    sink,
		timeout: DefaultDeliverTimeout,
		logger:  slog.Default(),
		queue:   make(chan pipeline.Confirmation, DefaultQueueSize),
		seen:    make(map[uuid.UUID]struct{}, recentIDs),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "announce")

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	go d.run(ctx)
	return d
}

// Announce enqueues c without blocking. A confirmation whose ID was already
// accepted is ignored.
func (d *Dispatcher) Announce(_ context.Context, c pipeline.Confirmation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if _, dup := d.seen[c.ID]; dup {
		return nil
	}
	select {
	case d.queue <- c:
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
	d.remember(c.ID)
	return nil
}

func (d *Dispatcher) remember(id uuid.UUID) {
	if len(d.order) == recentIDs {
		delete(d.seen, d.order[0])
		d.order = d.order[1:]
	}
	d.seen[id] = struct{}{}
	d.order = append(d.order, id)
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for c := range d.queue {
		d.deliver(ctx, c)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, c pipeline.Confirmation) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	if err := d.sink.Announce(ctx, c); err != nil {
		d.failed.Add(1)
		metrics.SinkErrors.WithLabelValues("announce").Inc()
		d.logger.Warn("announcement failed", "label", c.Selection.Label, "id", c.ID, "error", err)
		return
	}
	d.delivered.Add(1)
	d.logger.Debug("announced", "label", c.Selection.Label, "id", c.ID, "took", time.Since(start))
}

// Close stops accepting confirmations and waits until the queued ones have
// been delivered or ctx is done, in which case in-flight delivery is
// cancelled.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-d.done
		return ctx.Err()
	}
}

// DispatcherStats counts deliveries.
type DispatcherStats struct {
	Delivered uint64
	Failed    uint64
	Dropped   uint64
}

// Stats returns delivery counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}
