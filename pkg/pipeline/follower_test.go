package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-gaze/pkg/frame"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/landmarks"
)

func TestFollower_FeedsTracker(t *testing.T) {
	slot := frame.NewSlot()
	cfg := testConfig()
	tracker, err := gaze.NewTracker(cfg.Gaze, nil)
	require.NoError(t, err)

	var calls int
	provider := landmarks.Func(func(ctx context.Context, f frame.Frame) (landmarks.Set, error) {
		calls++
		if calls == 2 {
			return landmarks.Set{}, landmarks.ErrNoFace
		}
		if calls == 3 {
			return landmarks.Set{}, errors.New("sidecar down")
		}
		return faceLooking(0.75, 0.25), nil
	})

	var mu sync.Mutex
	var seqs []uint64
	hook := func(est gaze.Estimate, seq uint64) {
		mu.Lock()
		defer mu.Unlock()
		seqs = append(seqs, seq)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- NewFollower(slot, provider, tracker, WithSampleHook(hook)).Run(ctx) }()

	processed := func(n int) func() bool {
		return func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(seqs) == n
		}
	}
	for i := 1; i <= 3; i++ {
		slot.Publish(frame.Frame{Width: frameW, Height: frameH, Format: frame.FormatJPEG, Data: []byte{0xff}})
		require.Eventually(t, processed(i), time.Second, time.Millisecond)
	}

	cur := tracker.Current()
	assert.InDelta(t, 0.75, cur.X, 1e-9)
	assert.InDelta(t, 0.25, cur.Y, 1e-9)
	assert.Equal(t, uint64(1), tracker.Samples(), "no-face and errors do not move the tracker")
	assert.Equal(t, uint64(2), tracker.Misses())

	slot.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("follower did not stop when the slot closed")
	}
	mu.Lock()
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
	mu.Unlock()
}
