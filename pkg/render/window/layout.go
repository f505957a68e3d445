package window

import (
	"image"
	"image/color"
	"math"

	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/landmarks"
)

// Palette is the board's color scheme.
type Palette struct {
	Background color.RGBA
	Grid       color.RGBA
	Button     color.RGBA
	Selected   color.RGBA
	Text       color.RGBA
	Cursor     color.RGBA
	Cooldown   color.RGBA
	Debug      color.RGBA
}

// DefaultPalette is dark gray with a green highlight and a red cursor.
var DefaultPalette = Palette{
	Background: color.RGBA{40, 40, 40, 255},
	Grid:       color.RGBA{80, 80, 80, 255},
	Button:     color.RGBA{70, 70, 70, 255},
	Selected:   color.RGBA{0, 200, 0, 255},
	Text:       color.RGBA{255, 255, 255, 255},
	Cursor:     color.RGBA{255, 0, 0, 255},
	Cooldown:   color.RGBA{0, 0, 200, 255},
	Debug:      color.RGBA{255, 255, 0, 255},
}

// layout maps the normalized board onto a canvas of w x h pixels.
type layout struct {
	w, h       int
	rows, cols int
}

// cell returns the pixel rectangle of cell (r, c). The last row and column
// absorb the remainder so the cells tile the canvas exactly.
func (l layout) cell(r, c int) image.Rectangle {
	x0 := c * l.w / l.cols
	x1 := (c + 1) * l.w / l.cols
	y0 := r * l.h / l.rows
	y1 := (r + 1) * l.h / l.rows
	return image.Rect(x0, y0, x1, y1)
}

// cursor converts a normalized point to canvas pixels.
func (l layout) cursor(p gaze.Point) image.Point {
	x := clampUnit(p.X) * float64(l.w)
	y := clampUnit(p.Y) * float64(l.h)
	return image.Pt(int(math.Round(x)), int(math.Round(y)))
}

// inPreview maps a point in frame pixels into the preview rectangle.
func inPreview(p landmarks.Point, frameW, frameH int, preview image.Rectangle) image.Point {
	if frameW <= 0 || frameH <= 0 {
		return preview.Min
	}
	x := preview.Min.X + int(p.X*float64(preview.Dx())/float64(frameW))
	y := preview.Min.Y + int(p.Y*float64(preview.Dy())/float64(frameH))
	return image.Pt(x, y)
}

// centered returns the baseline origin that centers text of the given size in r.
func centered(r image.Rectangle, size image.Point) image.Point {
	return image.Pt(r.Min.X+(r.Dx()-size.X)/2, r.Min.Y+(r.Dy()+size.Y)/2)
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	return math.Max(0, math.Min(1, v))
}
