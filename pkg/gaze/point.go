// Package gaze turns iris landmarks into a normalized, smoothed gaze point.
//
// Estimator and Smoother are the two stages; Tracker bundles them for
// deployments that only need the point and not the selection pipeline.
package gaze

import "math"

// Point is a normalized screen-relative gaze position with a confidence.
// X and Y are in [0,1]; (0,0) is the top-left corner.
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Confidence float64 `json:"confidence"`
}

// Sentinel is returned by the estimator on any failure.
var Sentinel = Point{X: 0.5, Y: 0.5, Confidence: 0}

// Center is the initial smoothed state.
var Center = Point{X: 0.5, Y: 0.5}

// Valid reports whether both coordinates are finite and inside the unit square.
func (p Point) Valid() bool {
	return finite(p.X) && finite(p.Y) && p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
