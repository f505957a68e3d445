// Package landmarks defines the facial landmark input of the gaze estimator
// and the providers that produce it.
//
// Landmark extraction itself is delegated: to OpenCV's YuNet detector
// (subpackage yunet) or to a remote face-mesh service (Remote).
package landmarks

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/go-gaze/pkg/frame"
)

// ErrNoFace is returned by providers when the frame contains no face.
var ErrNoFace = errors.New("landmarks: no face detected")

// Point is one named landmark in pixel coordinates of its frame.
type Point struct {
	Name string  `json:"name,omitempty"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Set is the ordered landmark list for one frame.
type Set struct {
	Points []Point
	Width  int // Frame width in pixels
	Height int // Frame height in pixels
}

// Len returns the number of points.
func (s Set) Len() int { return len(s.Points) }

// Layout names which indices of a Set form each iris.
type Layout struct {
	Left  []int
	Right []int
}

// MinIrisPoints is the smallest iris subset a layout may designate.
const MinIrisPoints = 3

// MediaPipeLayout matches the 478-point refined face mesh.
var MediaPipeLayout = Layout{
	Left:  []int{474, 475, 476, 477},
	Right: []int{469, 470, 471, 472},
}

// RingLayout matches providers that emit a 4-point ring per eye,
// left eye first.
var RingLayout = Layout{
	Left:  []int{0, 1, 2, 3},
	Right: []int{4, 5, 6, 7},
}

// Validate checks that both subsets are large enough and non-negative.
func (l Layout) Validate() error {
	if len(l.Left) < MinIrisPoints || len(l.Right) < MinIrisPoints {
		return fmt.Errorf("landmarks: iris subsets need at least %d points, got left=%d right=%d",
			MinIrisPoints, len(l.Left), len(l.Right))
	}
	for _, idx := range append(append([]int(nil), l.Left...), l.Right...) {
		if idx < 0 {
			return fmt.Errorf("landmarks: negative index %d in layout", idx)
		}
	}
	return nil
}

// LayoutByName resolves a layout from configuration.
func LayoutByName(name string) (Layout, error) {
	switch name {
	case "", "mediapipe":
		return MediaPipeLayout, nil
	case "ring":
		return RingLayout, nil
	default:
		return Layout{}, fmt.Errorf("landmarks: unknown layout %q", name)
	}
}

// Provider turns a frame into landmarks.
type Provider interface {
	// Landmarks returns the landmarks of the most prominent face, or
	// ErrNoFace when none was found.
	Landmarks(ctx context.Context, f frame.Frame) (Set, error)

	// Close releases resources.
	Close() error
}

// Static returns the same set for every frame. Tests and replays use it.
type Static struct {
	Set Set
	Err error
}

// Landmarks returns the configured set or error, ignoring the frame.
func (s *Static) Landmarks(ctx context.Context, f frame.Frame) (Set, error) {
	if s.Err != nil {
		return Set{}, s.Err
	}
	return s.Set, nil
}

// Close is a no-op.
func (s *Static) Close() error { return nil }

// Func adapts a function to Provider.
type Func func(ctx context.Context, f frame.Frame) (Set, error)

// Landmarks calls fn.
func (fn Func) Landmarks(ctx context.Context, f frame.Frame) (Set, error) {
	return fn(ctx, f)
}

// Close is a no-op.
func (fn Func) Close() error { return nil }

// Ring returns n points evenly placed on a circle, used to describe an iris
// when only its center and radius are known.
func Ring(name string, cx, cy, radius float64, n int) []Point {
	pts := make([]Point, n)
	for i := 0; i < n; i++ {
		// Axis-aligned for n=4: right, down, left, up.
		angle := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = Point{
			Name: fmt.Sprintf("%s_%d", name, i),
			X:    cx + math.Cos(angle)*radius,
			Y:    cy + math.Sin(angle)*radius,
		}
	}
	return pts
}

var (
	_ Provider = (*Static)(nil)
	_ Provider = Func(nil)
)
