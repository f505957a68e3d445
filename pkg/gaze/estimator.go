package gaze

import (
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"

	"github.com/teslashibe/go-gaze/internal/metrics"
	"github.com/teslashibe/go-gaze/pkg/landmarks"
)

// DefaultSensitivity is the reference gain around the frame center.
const DefaultSensitivity = 10.0

var errBadLandmarks = errors.New("gaze: landmarks out of range")

// EstimatorConfig configures an Estimator.
type EstimatorConfig struct {
	Layout      landmarks.Layout
	Sensitivity float64 // Gain k in norm = 0.5 + (raw/dim - 0.5) * k
}

// DefaultEstimatorConfig returns the reference configuration for the
// 478-point face mesh.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		Layout:      landmarks.MediaPipeLayout,
		Sensitivity: DefaultSensitivity,
	}
}

// Validate checks the configuration.
func (c EstimatorConfig) Validate() error {
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if !(c.Sensitivity > 0) || !finite(c.Sensitivity) {
		return fmt.Errorf("gaze: sensitivity must be positive, got %v", c.Sensitivity)
	}
	return nil
}

// Estimate is a gaze point plus the pixel-space geometry it came from.
// Renderers use the geometry for debug overlays.
type Estimate struct {
	Point     Point
	LeftIris  landmarks.Point // Centroid in pixels
	RightIris landmarks.Point
	Center    landmarks.Point // Midpoint of both centroids in pixels
}

// Estimator converts iris landmarks into a normalized gaze point.
type Estimator struct {
	cfg    EstimatorConfig
	logger *slog.Logger
}

// NewEstimator validates cfg and returns an estimator.
func NewEstimator(cfg EstimatorConfig, logger *slog.Logger) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{cfg: cfg, logger: logger.With("component", "gaze.estimator")}, nil
}

// Estimate returns the gaze point for set. It never fails: missing or
// malformed landmarks yield Sentinel.
func (e *Estimator) Estimate(set landmarks.Set) Point {
	return e.EstimateDetail(set).Point
}

// EstimateDetail is Estimate with the intermediate geometry.
func (e *Estimator) EstimateDetail(set landmarks.Set) (est Estimate) {
	defer func() {
		if r := recover(); r != nil {
			e.fail(fmt.Errorf("gaze: estimator panic: %v", r))
			est = Estimate{Point: Sentinel}
		}
	}()

	est, err := e.estimate(set)
	if err != nil {
		e.fail(err)
		return Estimate{Point: Sentinel}
	}
	return est
}

func (e *Estimator) fail(err error) {
	metrics.EstimationFailures.Inc()
	e.logger.Debug("gaze estimation failed", "error", err)
}

func (e *Estimator) estimate(set landmarks.Set) (Estimate, error) {
	if set.Width <= 0 || set.Height <= 0 {
		return Estimate{}, fmt.Errorf("%w: frame size %dx%d", errBadLandmarks, set.Width, set.Height)
	}
	w, h := float64(set.Width), float64(set.Height)

	left, err := centroid(set, e.cfg.Layout.Left)
	if err != nil {
		return Estimate{}, fmt.Errorf("left iris: %w", err)
	}
	right, err := centroid(set, e.cfg.Layout.Right)
	if err != nil {
		return Estimate{}, fmt.Errorf("right iris: %w", err)
	}

	cx := (left.X + right.X) / 2
	cy := (left.Y + right.Y) / 2

	k := e.cfg.Sensitivity
	nx := 0.5 + (cx/w-0.5)*k
	ny := 0.5 + (cy/h-0.5)*k
	if !finite(nx) || !finite(ny) {
		return Estimate{}, fmt.Errorf("%w: non-finite result", errBadLandmarks)
	}

	return Estimate{
		Point:     Point{X: clamp(nx, 0, 1), Y: clamp(ny, 0, 1), Confidence: 1},
		LeftIris:  left,
		RightIris: right,
		Center:    landmarks.Point{Name: "gaze_center", X: cx, Y: cy},
	}, nil
}

// centroid averages the points at idx, rejecting anything outside the frame.
func centroid(set landmarks.Set, idx []int) (landmarks.Point, error) {
	xs := make([]float64, len(idx))
	ys := make([]float64, len(idx))
	w, h := float64(set.Width), float64(set.Height)
	for i, j := range idx {
		if j < 0 || j >= len(set.Points) {
			return landmarks.Point{}, fmt.Errorf("%w: index %d of %d", errBadLandmarks, j, len(set.Points))
		}
		p := set.Points[j]
		if !finite(p.X) || !finite(p.Y) || p.X < 0 || p.X > w || p.Y < 0 || p.Y > h {
			return landmarks.Point{}, fmt.Errorf("%w: point %d at (%v, %v)", errBadLandmarks, j, p.X, p.Y)
		}
		xs[i], ys[i] = p.X, p.Y
	}
	return landmarks.Point{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}, nil
}
