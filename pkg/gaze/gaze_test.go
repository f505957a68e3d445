package gaze

import (
	"math"
	"testing"

	"github.com/teslashibe/go-gaze/pkg/landmarks"
)

// ringSet builds a RingLayout set with both irises at the given pixel centers.
func ringSet(w, h int, lx, ly, rx, ry float64) landmarks.Set {
	pts := append(landmarks.Ring("l", lx, ly, 2, 4), landmarks.Ring("r", rx, ry, 2, 4)...)
	return landmarks.Set{Points: pts, Width: w, Height: h}
}

func newRingEstimator(t *testing.T, k float64) *Estimator {
	t.Helper()
	e, err := NewEstimator(EstimatorConfig{Layout: landmarks.RingLayout, Sensitivity: k}, nil)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	return e
}

func TestEstimator_Normalization(t *testing.T) {
	tests := []struct {
		name   string
		k      float64
		lx, ly float64
		rx, ry float64
		wantX  float64
		wantY  float64
	}{
		{
			name: "centered eyes map to center",
			k:    10, lx: 90, ly: 50, rx: 110, ry: 50,
			wantX: 0.5, wantY: 0.5,
		},
		{
			name: "unit gain is identity",
			k:    1, lx: 40, ly: 20, rx: 60, ry: 20,
			wantX: 0.25, wantY: 0.2,
		},
		{
			name: "gain amplifies offset",
			k:    10, lx: 101, ly: 50, rx: 103, ry: 50,
			wantX: 0.5 + (102.0/200-0.5)*10, wantY: 0.5,
		},
		{
			name: "clipped high",
			k:    10, lx: 180, ly: 90, rx: 190, ry: 95,
			wantX: 1, wantY: 1,
		},
		{
			name: "clipped low",
			k:    10, lx: 5, ly: 5, rx: 10, ry: 5,
			wantX: 0, wantY: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newRingEstimator(t, tt.k)
			p := e.Estimate(ringSet(200, 100, tt.lx, tt.ly, tt.rx, tt.ry))
			if math.Abs(p.X-tt.wantX) > 1e-9 || math.Abs(p.Y-tt.wantY) > 1e-9 {
				t.Errorf("got (%v, %v), want (%v, %v)", p.X, p.Y, tt.wantX, tt.wantY)
			}
			if p.Confidence != 1 {
				t.Errorf("confidence = %v, want 1", p.Confidence)
			}
		})
	}
}

func TestEstimator_SentinelOnBadInput(t *testing.T) {
	e := newRingEstimator(t, 10)
	good := ringSet(200, 100, 90, 50, 110, 50)

	nan := ringSet(200, 100, 90, 50, 110, 50)
	nan.Points[2].X = math.NaN()

	outside := ringSet(200, 100, 90, 50, 110, 50)
	outside.Points[5].Y = 500

	zeroSize := good
	zeroSize.Width = 0

	tests := []struct {
		name string
		set  landmarks.Set
	}{
		{"empty set", landmarks.Set{Width: 200, Height: 100}},
		{"too few points", landmarks.Set{Points: good.Points[:5], Width: 200, Height: 100}},
		{"NaN coordinate", nan},
		{"point outside frame", outside},
		{"zero frame size", zeroSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := e.Estimate(tt.set)
			if p != Sentinel {
				t.Errorf("got %+v, want sentinel %+v", p, Sentinel)
			}
		})
	}
}

func TestEstimator_MediaPipeLayout(t *testing.T) {
	e, err := NewEstimator(DefaultEstimatorConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	pts := make([]landmarks.Point, 478)
	for i := range pts {
		pts[i] = landmarks.Point{X: 320, Y: 240}
	}
	p := e.Estimate(landmarks.Set{Points: pts, Width: 640, Height: 480})
	if p.X != 0.5 || p.Y != 0.5 || p.Confidence != 1 {
		t.Errorf("got %+v, want centered with confidence 1", p)
	}
}

func TestEstimatorConfig_Validate(t *testing.T) {
	bad := []EstimatorConfig{
		{Layout: landmarks.RingLayout, Sensitivity: 0},
		{Layout: landmarks.RingLayout, Sensitivity: -1},
		{Layout: landmarks.RingLayout, Sensitivity: math.NaN()},
		{Layout: landmarks.Layout{Left: []int{0}, Right: []int{1}}, Sensitivity: 10},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestSmoother_IgnoresLowConfidence(t *testing.T) {
	s, err := NewSmoother(DefaultSmootherConfig())
	if err != nil {
		t.Fatal(err)
	}
	s.Observe(Point{X: 0.9, Y: 0.1, Confidence: 1})
	before := s.Current()

	for _, c := range []float64{0, 0.5, DefaultMinConfidence} {
		after, changed := s.Observe(Point{X: 0, Y: 1, Confidence: c})
		if changed || after != before {
			t.Errorf("confidence %v changed state: %+v -> %+v", c, before, after)
		}
	}
}

func TestSmoother_ConvexCombination(t *testing.T) {
	s, err := NewSmoother(SmootherConfig{Alpha: 0.8, MinConfidence: 0.85})
	if err != nil {
		t.Fatal(err)
	}
	samples := []Point{
		{X: 1, Y: 0, Confidence: 1},
		{X: 0, Y: 1, Confidence: 1},
		{X: 0.3, Y: 0.7, Confidence: 0.9},
		{X: 1, Y: 1, Confidence: 1},
	}
	for _, sample := range samples {
		prev := s.Current()
		next, _ := s.Observe(sample)
		if next.X < math.Min(prev.X, sample.X)-1e-12 || next.X > math.Max(prev.X, sample.X)+1e-12 {
			t.Errorf("x %v outside [%v, %v]", next.X, prev.X, sample.X)
		}
		if next.Y < math.Min(prev.Y, sample.Y)-1e-12 || next.Y > math.Max(prev.Y, sample.Y)+1e-12 {
			t.Errorf("y %v outside [%v, %v]", next.Y, prev.Y, sample.Y)
		}
	}
}

func TestSmoother_Blend(t *testing.T) {
	s, _ := NewSmoother(SmootherConfig{Alpha: 0.8, MinConfidence: 0.85})
	got, _ := s.Observe(Point{X: 1, Y: 0, Confidence: 1})
	if math.Abs(got.X-0.6) > 1e-9 || math.Abs(got.Y-0.4) > 1e-9 {
		t.Errorf("got %+v, want (0.6, 0.4)", got)
	}
}

func TestSmoother_ZeroAlphaPassesThrough(t *testing.T) {
	s, err := NewSmoother(SmootherConfig{Alpha: 0, MinConfidence: 0.85})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := s.Observe(Point{X: 0.1, Y: 0.9, Confidence: 1})
	if got.X != 0.1 || got.Y != 0.9 {
		t.Errorf("got %+v", got)
	}
	s.Reset()
	if s.Current() != Center {
		t.Errorf("reset state = %+v", s.Current())
	}
}

func TestSmootherConfig_Validate(t *testing.T) {
	bad := []SmootherConfig{
		{Alpha: -0.1, MinConfidence: 0.5},
		{Alpha: 1, MinConfidence: 0.5},
		{Alpha: 0.5, MinConfidence: 1.5},
		{Alpha: math.NaN(), MinConfidence: 0.5},
	}
	for i, cfg := range bad {
		if err := cfg.Validate(); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestTracker_ProcessAndCurrent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Estimator.Layout = landmarks.RingLayout
	cfg.Smoother.Alpha = 0
	tr, err := NewTracker(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Current() != Center {
		t.Errorf("initial = %+v", tr.Current())
	}

	raw := tr.Process(ringSet(200, 100, 40, 20, 60, 20))
	if raw.Confidence != 1 {
		t.Fatalf("raw = %+v", raw)
	}
	if tr.Current().X != raw.X || tr.Samples() != 1 || tr.UpdatedAt().IsZero() {
		t.Errorf("tracker did not take the sample: %+v", tr.Current())
	}

	// Failed estimates leave the state alone.
	tr.Process(landmarks.Set{})
	if tr.Samples() != 1 || tr.Current().X != raw.X {
		t.Errorf("sentinel changed state: %+v", tr.Current())
	}
}

func TestTracker_ProcessNone(t *testing.T) {
	tr, err := NewTracker(DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := tr.ProcessNone(); got != Sentinel {
		t.Errorf("ProcessNone = %+v", got)
	}
	tr.ProcessNone()
	if tr.Current() != Center || tr.Samples() != 0 {
		t.Errorf("state changed: %+v", tr.Current())
	}
	if tr.Misses() != 2 {
		t.Errorf("expected 2 misses, got %d", tr.Misses())
	}
	if !tr.UpdatedAt().IsZero() {
		t.Error("a miss is not an update")
	}
}
