package yunet

import (
	"testing"

	"github.com/teslashibe/go-gaze/pkg/frame"
)

func TestSelectBest(t *testing.T) {
	tests := []struct {
		name      string
		faces     []face
		expectNil bool
		expectIdx int
	}{
		{name: "no faces", faces: nil, expectNil: true},
		{
			name:      "single face",
			faces:     []face{{w: 10, h: 10, score: 0.9}},
			expectIdx: 0,
		},
		{
			name: "high score beats larger area",
			faces: []face{
				{w: 40, h: 40, score: 0.5},
				{w: 20, h: 20, score: 0.95},
			},
			expectIdx: 1,
		},
		{
			name: "equal score picks larger",
			faces: []face{
				{w: 50, h: 50, score: 0.8},
				{w: 10, h: 10, score: 0.8},
			},
			expectIdx: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			best := selectBest(tc.faces)
			if tc.expectNil {
				if best != nil {
					t.Errorf("expected nil, got %+v", best)
				}
				return
			}
			if best != &tc.faces[tc.expectIdx] {
				t.Errorf("got %+v, want index %d", best, tc.expectIdx)
			}
		})
	}
}

func TestNew_MissingModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = "/nonexistent/path/model.onnx"
	if _, err := New(cfg); err == nil {
		t.Error("expected error for missing model")
	}
}

func TestToMat_BGR(t *testing.T) {
	f := frame.Frame{Data: make([]byte, 4*3*3), Width: 4, Height: 3, Format: frame.FormatBGR}
	m, err := ToMat(f)
	if err != nil {
		t.Fatalf("ToMat: %v", err)
	}
	defer m.Close()
	if m.Cols() != 4 || m.Rows() != 3 {
		t.Errorf("got %dx%d, want 4x3", m.Cols(), m.Rows())
	}
}

func TestToMat_Empty(t *testing.T) {
	m, err := ToMat(frame.Frame{})
	defer m.Close()
	if err == nil {
		t.Error("expected error for empty frame")
	}
}
