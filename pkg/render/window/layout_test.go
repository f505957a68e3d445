package window

import (
	"image"
	"math"
	"testing"

	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/landmarks"
)

func TestLayout_CellsTileCanvas(t *testing.T) {
	l := layout{w: 1281, h: 721, rows: 2, cols: 3}
	covered := 0
	for r := 0; r < l.rows; r++ {
		for c := 0; c < l.cols; c++ {
			covered += l.cell(r, c).Dx() * l.cell(r, c).Dy()
		}
	}
	if covered != l.w*l.h {
		t.Errorf("cells cover %d pixels, want %d", covered, l.w*l.h)
	}
	if got := l.cell(1, 2).Max; got != image.Pt(l.w, l.h) {
		t.Errorf("last cell ends at %v", got)
	}
}

func TestLayout_Cursor(t *testing.T) {
	l := layout{w: 1280, h: 720, rows: 2, cols: 2}
	tests := []struct {
		name string
		p    gaze.Point
		want image.Point
	}{
		{"center", gaze.Point{X: 0.5, Y: 0.5}, image.Pt(640, 360)},
		{"origin", gaze.Point{}, image.Pt(0, 0)},
		{"clamped", gaze.Point{X: 2, Y: -1}, image.Pt(1280, 0)},
		{"nan", gaze.Point{X: math.NaN(), Y: 1}, image.Pt(640, 720)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := l.cursor(tt.p); got != tt.want {
				t.Errorf("cursor(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestInPreview(t *testing.T) {
	box := image.Rect(10, 10, 210, 210)
	got := inPreview(landmarks.Point{X: 640, Y: 360}, 1280, 720, box)
	if got != image.Pt(110, 110) {
		t.Errorf("inPreview = %v", got)
	}
	if got := inPreview(landmarks.Point{X: 5}, 0, 0, box); got != box.Min {
		t.Errorf("zero frame size should map to the corner, got %v", got)
	}
}

func TestCentered(t *testing.T) {
	got := centered(image.Rect(0, 0, 100, 50), image.Pt(40, 10))
	if got != image.Pt(30, 30) {
		t.Errorf("centered = %v", got)
	}
}
