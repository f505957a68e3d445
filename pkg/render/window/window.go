// Package window draws the selection board in an OpenCV window.
package window

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-gaze/pkg/landmarks/yunet"
	"github.com/teslashibe/go-gaze/pkg/pipeline"
)

// Window defaults.
const (
	DefaultWidth   = 1280
	DefaultHeight  = 720
	DefaultPreview = 200
	CursorRadius   = 12
)

const (
	font          = gocv.FontHersheySimplex
	labelScale    = 2.0
	labelWeight   = 3
	statusScale   = 0.8
	statusWeight  = 2
	previewMargin = 10
)

// KeyHandler receives key presses from the window, already masked to a byte.
type KeyHandler func(key byte)

// Window renders the board, cursor, cooldown countdown and camera preview.
// It must be driven from the goroutine that created it; on macOS that is the
// main thread.
type Window struct {
	win     *gocv.Window
	canvas  gocv.Mat
	labels  [][]string
	layout  layout
	preview int
	palette Palette
	onKey   KeyHandler
	closed  bool
}

// Option configures a Window.
type Option func(*Window)

// WithSize sets the canvas size.
func WithSize(w, h int) Option {
	return func(win *Window) {
		if w > 0 && h > 0 {
			win.layout.w, win.layout.h = w, h
		}
	}
}

// WithPreviewSize sets the edge length of the square camera preview; 0 hides it.
func WithPreviewSize(px int) Option {
	return func(win *Window) {
		if px >= 0 {
			win.preview = px
		}
	}
}

// WithPalette overrides the colors.
func WithPalette(p Palette) Option {
	return func(win *Window) { win.palette = p }
}

// WithKeyHandler is called for every key pressed while the window has focus.
func WithKeyHandler(fn KeyHandler) Option {
	return func(win *Window) { win.onKey = fn }
}

// New opens a window for a board with the given labels. Without labels only
// the cursor and preview are drawn.
func New(title string, labels [][]string, opts ...Option) (*Window, error) {
	l := layout{w: DefaultWidth, h: DefaultHeight, rows: len(labels)}
	if len(labels) > 0 {
		l.cols = len(labels[0])
		if l.cols == 0 {
			return nil, fmt.Errorf("window: empty board row")
		}
	}
	w := &Window{
		labels:  labels,
		layout:  l,
		preview: DefaultPreview,
		palette: DefaultPalette,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.canvas = gocv.NewMatWithSize(w.layout.h, w.layout.w, gocv.MatTypeCV8UC3)
	w.win = gocv.NewWindow(title)
	return w, nil
}

// Render draws one tick and polls the keyboard.
func (w *Window) Render(s pipeline.RenderState) error {
	if w.closed {
		return nil
	}
	w.drawBoard(s)
	if err := w.drawPreview(s); err != nil {
		return err
	}

	p := w.palette
	l := w.layout
	if s.CoolingDown {
		text := fmt.Sprintf("Cooldown: %.1fs", s.CooldownRemaining.Seconds())
		gocv.PutText(&w.canvas, text, image.Pt(l.w-300, 40), font, statusScale, p.Cooldown, statusWeight)
	}
	if s.HasSelection && !s.CoolingDown {
		text := "Selected: " + s.Selection.Label
		gocv.PutText(&w.canvas, text, image.Pt(w.preview+3*previewMargin, 40), font, statusScale, p.Selected, statusWeight)
	}
	gocv.Circle(&w.canvas, l.cursor(s.Gaze), CursorRadius, p.Cursor, -1)

	w.win.IMShow(w.canvas)
	if key := w.win.WaitKey(1); key >= 0 && w.onKey != nil {
		w.onKey(byte(key & 0xff))
	}
	return nil
}

func (w *Window) drawBoard(s pipeline.RenderState) {
	p := w.palette
	l := w.layout
	gocv.Rectangle(&w.canvas, image.Rect(0, 0, l.w, l.h), p.Background, -1)

	for r, row := range w.labels {
		for c, label := range row {
			cell := l.cell(r, c)
			fill := p.Button
			if s.HasSelection && !s.CoolingDown && s.Selection.Row == r && s.Selection.Col == c {
				fill = p.Selected
			}
			gocv.Rectangle(&w.canvas, cell, fill, -1)
			size := gocv.GetTextSize(label, font, labelScale, labelWeight)
			gocv.PutText(&w.canvas, label, centered(cell, size), font, labelScale, p.Text, labelWeight)
		}
	}
	for c := 1; c < l.cols; c++ {
		x := l.cell(0, c).Min.X
		gocv.Line(&w.canvas, image.Pt(x, 0), image.Pt(x, l.h), p.Grid, 2)
	}
	for r := 1; r < l.rows; r++ {
		y := l.cell(r, 0).Min.Y
		gocv.Line(&w.canvas, image.Pt(0, y), image.Pt(l.w, y), p.Grid, 2)
	}
}

func (w *Window) drawPreview(s pipeline.RenderState) error {
	if w.preview == 0 || s.Frame == nil || s.Frame.Empty() {
		return nil
	}
	img, err := yunet.ToMat(*s.Frame)
	if err != nil {
		return fmt.Errorf("window: preview: %w", err)
	}
	defer img.Close()

	box := image.Rect(previewMargin, previewMargin, previewMargin+w.preview, previewMargin+w.preview)
	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(img, &small, box.Size(), 0, 0, gocv.InterpolationLinear)

	region := w.canvas.Region(box)
	small.CopyTo(&region)
	region.Close()
	gocv.Rectangle(&w.canvas, box, w.palette.Selected, 2)

	if s.Debug && s.Estimate != nil {
		fw, fh := s.Frame.Width, s.Frame.Height
		gocv.Circle(&w.canvas, inPreview(s.Estimate.LeftIris, fw, fh, box), 3, w.palette.Debug, -1)
		gocv.Circle(&w.canvas, inPreview(s.Estimate.RightIris, fw, fh, box), 3, w.palette.Debug, -1)
		gocv.Circle(&w.canvas, inPreview(s.Estimate.Center, fw, fh, box), 4, w.palette.Selected, -1)
	}
	return nil
}

// Close destroys the window and frees the canvas.
func (w *Window) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.canvas.Close()
	return w.win.Close()
}

var _ pipeline.RenderSink = (*Window)(nil)
