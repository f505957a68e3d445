package frame

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(b byte) Frame {
	return Frame{Data: []byte{b, b, b}, Width: 1, Height: 1, Format: FormatBGR}
}

func TestSlot_EmptyTake(t *testing.T) {
	t.Parallel()
	s := NewSlot()
	_, ok := s.TakeLatest()
	assert.False(t, ok, "empty slot must report no frame")
}

func TestSlot_RapidPublishesReturnLatest(t *testing.T) {
	t.Parallel()
	s := NewSlot()
	const n = 50
	for i := 1; i <= n; i++ {
		s.Publish(testFrame(byte(i)))
	}

	f, ok := s.TakeLatest()
	require.True(t, ok)
	assert.Equal(t, uint64(n), f.Seq)
	assert.Equal(t, byte(n), f.Data[0])

	st := s.Stats()
	assert.Equal(t, uint64(n), st.Published)
	assert.Equal(t, uint64(n-1), st.Dropped, "every overwritten frame counts as dropped")
}

func TestSlot_TakeDoesNotCountNextPublishAsDrop(t *testing.T) {
	t.Parallel()
	s := NewSlot()
	s.Publish(testFrame(1))
	_, ok := s.TakeLatest()
	require.True(t, ok)
	s.Publish(testFrame(2))
	assert.Equal(t, uint64(0), s.Stats().Dropped)
}

func TestSlot_RepeatTakeReturnsSameFrame(t *testing.T) {
	t.Parallel()
	s := NewSlot()
	s.Publish(testFrame(7))
	a, _ := s.TakeLatest()
	b, _ := s.TakeLatest()
	assert.Equal(t, a.Seq, b.Seq)
}

func TestSlot_NeverOlderThanLastPublished(t *testing.T) {
	t.Parallel()
	s := NewSlot()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			s.Publish(testFrame(byte(i)))
		}
	}()

	var last uint64
	for i := 0; i < 2000; i++ {
		if f, ok := s.TakeLatest(); ok {
			require.GreaterOrEqual(t, f.Seq, last, "slot went backwards")
			last = f.Seq
		}
	}
	wg.Wait()
	f, ok := s.TakeLatest()
	require.True(t, ok)
	assert.Equal(t, uint64(2000), f.Seq)
}

func TestSlot_WaitNewerWakesOnPublish(t *testing.T) {
	t.Parallel()
	s := NewSlot()
	done := make(chan bool, 1)
	go func() {
		done <- s.WaitNewer(context.Background(), 0)
	}()

	time.Sleep(10 * time.Millisecond)
	s.Publish(testFrame(1))

	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by publish")
	}
}

func TestSlot_WaitNewerReturnsImmediatelyWhenAlreadyNewer(t *testing.T) {
	t.Parallel()
	s := NewSlot()
	s.Publish(testFrame(1))
	s.Publish(testFrame(2))
	assert.True(t, s.WaitNewer(context.Background(), 1))
}

func TestSlot_WaitNewerHonoursCancellation(t *testing.T) {
	t.Parallel()
	s := NewSlot()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		done <- s.WaitNewer(ctx, 0)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("waiter missed cancellation")
	}
}

func TestSlot_WaitNewerAlreadyCancelled(t *testing.T) {
	t.Parallel()
	s := NewSlot()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, s.WaitNewer(ctx, 0))
}

func TestSlot_CloseWakesWaitersAndStopsPublishing(t *testing.T) {
	t.Parallel()
	s := NewSlot()
	s.Publish(testFrame(1))

	done := make(chan bool, 1)
	go func() {
		done <- s.WaitNewer(context.Background(), 1)
	}()
	time.Sleep(10 * time.Millisecond)
	s.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("close did not wake waiter")
	}

	assert.Equal(t, uint64(0), s.Publish(testFrame(2)))
	f, ok := s.TakeLatest()
	require.True(t, ok, "last frame stays readable after close")
	assert.Equal(t, uint64(1), f.Seq)
	assert.True(t, s.Closed())
}
