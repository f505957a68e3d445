package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-gaze/pkg/frame"
	"github.com/teslashibe/go-gaze/pkg/landmarks"
)

// slowStopSource produces frames quickly but takes a while to notice
// cancellation, so an early Close would overlap a Read.
type slowStopSource struct {
	inFlight      atomic.Int32
	reads         atomic.Int64
	closedInRead  atomic.Bool
	closed        atomic.Bool
	closeErr      error
	readAfterStop time.Duration
}

func (s *slowStopSource) Read(ctx context.Context) (frame.Frame, error) {
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	select {
	case <-ctx.Done():
		time.Sleep(s.readAfterStop)
		return frame.Frame{}, ctx.Err()
	case <-time.After(2 * time.Millisecond):
		s.reads.Add(1)
		return frame.Frame{Width: frameW, Height: frameH, Format: frame.FormatJPEG, Data: []byte{0xff}}, nil
	}
}

func (s *slowStopSource) Close() error {
	if s.inFlight.Load() > 0 {
		s.closedInRead.Store(true)
	}
	s.closed.Store(true)
	return s.closeErr
}

func newRunnerController(t *testing.T, slot *frame.Slot) *Controller {
	t.Helper()
	set := faceLooking(0.25, 0.25)
	ctl, err := NewController(testConfig(), slot, &landmarks.Static{Set: set})
	require.NoError(t, err)
	return ctl
}

func TestRunner_ReleasesSourceAfterProducerExits(t *testing.T) {
	slot := frame.NewSlot()
	ctl := newRunnerController(t, slot)
	src := &slowStopSource{readAfterStop: 30 * time.Millisecond}

	var ticks atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := NewRunner(src, ctl, slot, WithTickHook(func(TickResult) { ticks.Add(1) })).Run(ctx)
	require.NoError(t, err)

	assert.True(t, src.closed.Load(), "source was not closed")
	assert.False(t, src.closedInRead.Load(), "source closed while a read was in flight")
	assert.True(t, slot.Closed())
	assert.Positive(t, ticks.Load())
	assert.Positive(t, src.reads.Load())
	assert.Positive(t, slot.Stats().Published)
}

func TestRunner_StopsFromTickHook(t *testing.T) {
	slot := frame.NewSlot()
	ctl := newRunnerController(t, slot)
	src := &slowStopSource{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var confirmed int
	hook := func(res TickResult) {
		mu.Lock()
		defer mu.Unlock()
		if res.Confirmed != nil {
			confirmed++
			cancel()
		}
	}

	done := make(chan error, 1)
	go func() { done <- NewRunner(src, ctl, slot, WithTickHook(hook)).Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop after confirmation")
	}
	mu.Lock()
	assert.Equal(t, 1, confirmed)
	mu.Unlock()
	assert.True(t, src.closed.Load())
}

func TestRunner_ReportsCloseError(t *testing.T) {
	slot := frame.NewSlot()
	ctl := newRunnerController(t, slot)
	src := &slowStopSource{closeErr: errors.New("device busy")}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := NewRunner(src, ctl, slot).Run(ctx)
	assert.ErrorContains(t, err, "device busy")
}

func TestRunner_TicksDuringCaptureStall(t *testing.T) {
	slot := frame.NewSlot()
	ctl := newRunnerController(t, slot)
	stalled := &stallSource{}

	var ticks atomic.Int64
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	cfgTick := ctl.cfg.IdleTick
	require.Equal(t, DefaultIdleTick, cfgTick)
	err := NewRunner(stalled, ctl, slot, WithTickHook(func(res TickResult) {
		assert.True(t, res.Skipped)
		ticks.Add(1)
	})).Run(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ticks.Load(), int64(2), "idle tick keeps the loop running")
}

// stallSource never yields a frame.
type stallSource struct{}

func (stallSource) Read(ctx context.Context) (frame.Frame, error) {
	<-ctx.Done()
	return frame.Frame{}, ctx.Err()
}

func (stallSource) Close() error { return nil }
