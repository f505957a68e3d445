package frame

import (
	"context"
	"sync"

	"github.com/teslashibe/go-gaze/internal/metrics"
)

// SlotStats is a snapshot of slot counters.
type SlotStats struct {
	Published uint64 `json:"published"` // Frames published
	Dropped   uint64 `json:"dropped"`   // Frames overwritten before anyone took them
	Taken     uint64 `json:"taken"`     // Successful TakeLatest calls that returned a frame
	LastSeq   uint64 `json:"last_seq"`  // Seq of the newest frame, 0 if none
}

// Slot is a single-slot, overwrite-on-write buffer between one producer and
// one consumer.
//
// The mutex guards only the swap of the frame header. Image bytes are never
// copied or inspected under the lock, and Publish never waits for the
// consumer.
type Slot struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  Frame
	seq    uint64
	taken  bool // Whether the current frame has been handed out
	closed bool

	published uint64
	dropped   uint64
	takes     uint64
}

// NewSlot returns an empty slot.
func NewSlot() *Slot {
	s := &Slot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Publish stores f as the latest frame, replacing any frame the consumer has
// not taken yet. It returns the sequence number assigned to f, or 0 if the
// slot is closed.
func (s *Slot) Publish(f Frame) uint64 {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	dropped := s.seq > 0 && !s.taken
	s.seq++
	f.Seq = s.seq
	s.frame = f
	s.taken = false
	s.published++
	if dropped {
		s.dropped++
	}
	s.cond.Broadcast()
	seq := s.seq
	s.mu.Unlock()

	metrics.FramesPublished.Inc()
	if dropped {
		metrics.FramesDropped.Inc()
	}
	return seq
}

// TakeLatest returns the most recently published frame. It reports false if
// nothing has ever been published. It never blocks.
//
// The same frame is returned again until a newer one is published; callers
// compare Seq to tell a fresh frame from a repeat.
func (s *Slot) TakeLatest() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == 0 {
		return Frame{}, false
	}
	s.taken = true
	s.takes++
	return s.frame, true
}

// WaitNewer blocks until a frame with Seq greater than seq is available, the
// slot is closed, or ctx is done. It reports whether a newer frame exists.
func (s *Slot) WaitNewer(ctx context.Context, seq uint64) bool {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	for s.seq <= seq && !s.closed && ctx.Err() == nil {
		s.cond.Wait()
	}
	return s.seq > seq && !s.closed && ctx.Err() == nil
}

// Close wakes every waiter and turns further publishes into no-ops.
// The last frame stays readable through TakeLatest.
func (s *Slot) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()
}

// Closed reports whether Close has been called.
func (s *Slot) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Stats returns a snapshot of the slot counters.
func (s *Slot) Stats() SlotStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SlotStats{
		Published: s.published,
		Dropped:   s.dropped,
		Taken:     s.takes,
		LastSeq:   s.seq,
	}
}
