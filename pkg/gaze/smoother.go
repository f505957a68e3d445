package gaze

import "fmt"

// Reference smoothing parameters.
const (
	DefaultAlpha         = 0.8
	DefaultMinConfidence = 0.85
)

// SmootherConfig configures a Smoother.
type SmootherConfig struct {
	// Alpha is the weight of the previous state, in [0,1).
	// 0 passes samples straight through.
	Alpha float64
	// MinConfidence gates updates: samples at or below it are ignored.
	MinConfidence float64
}

// DefaultSmootherConfig returns the reference configuration.
func DefaultSmootherConfig() SmootherConfig {
	return SmootherConfig{Alpha: DefaultAlpha, MinConfidence: DefaultMinConfidence}
}

// Validate checks the configuration.
func (c SmootherConfig) Validate() error {
	if !(c.Alpha >= 0 && c.Alpha < 1) {
		return fmt.Errorf("gaze: smoothing alpha must be in [0,1), got %v", c.Alpha)
	}
	if !(c.MinConfidence >= 0 && c.MinConfidence <= 1) {
		return fmt.Errorf("gaze: min confidence must be in [0,1], got %v", c.MinConfidence)
	}
	return nil
}

// Smoother is an exponential moving average over gaze points.
// It is not safe for concurrent use; Tracker adds locking.
type Smoother struct {
	cfg   SmootherConfig
	state Point
}

// NewSmoother returns a smoother starting at the frame center.
func NewSmoother(cfg SmootherConfig) (*Smoother, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Smoother{cfg: cfg, state: Center}, nil
}

// Accepts reports whether a sample with this confidence would update state.
func (s *Smoother) Accepts(confidence float64) bool {
	return confidence > s.cfg.MinConfidence
}

// Observe blends p into the state if its confidence is above the threshold.
// It returns the resulting state and whether it changed.
func (s *Smoother) Observe(p Point) (Point, bool) {
	if !s.Accepts(p.Confidence) || !finite(p.X) || !finite(p.Y) {
		return s.state, false
	}
	a := s.cfg.Alpha
	s.state = Point{
		X:          a*s.state.X + (1-a)*p.X,
		Y:          a*s.state.Y + (1-a)*p.Y,
		Confidence: p.Confidence,
	}
	return s.state, true
}

// Current returns the smoothed point.
func (s *Smoother) Current() Point {
	return s.state
}

// Reset returns the state to the frame center.
func (s *Smoother) Reset() {
	s.state = Center
}
