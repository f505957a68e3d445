// Package frame hands camera frames from an acquisition loop to a processing
// loop through a single slot that always holds the freshest frame.
//
// The slot never queues. Publishing overwrites whatever the consumer has not
// taken yet, so memory stays bounded and processing always runs against the
// newest frame rather than a backlog.
package frame

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by readers that have been shut down.
var ErrClosed = errors.New("frame: closed")

// Format describes how Frame.Data is encoded.
type Format int

const (
	// FormatBGR is packed 8-bit BGR, Width*Height*3 bytes.
	FormatBGR Format = iota
	// FormatJPEG is a complete JPEG image.
	FormatJPEG
)

func (f Format) String() string {
	switch f {
	case FormatBGR:
		return "bgr"
	case FormatJPEG:
		return "jpeg"
	default:
		return "unknown"
	}
}

// Frame is one captured image.
//
// Data must not be modified once the frame is published; the consumer may
// still be reading it. Producers allocate a fresh buffer for every frame.
type Frame struct {
	Seq        uint64 // Assigned by Slot.Publish, starts at 1
	Data       []byte
	Width      int
	Height     int
	Format     Format
	CapturedAt time.Time // Monotonic capture time
}

// Empty reports whether the frame carries no image.
func (f Frame) Empty() bool {
	return len(f.Data) == 0 || f.Width <= 0 || f.Height <= 0
}

// Reader produces frames. Read blocks until a frame is captured, the source
// fails, or ctx is done.
type Reader interface {
	Read(ctx context.Context) (Frame, error)
}
