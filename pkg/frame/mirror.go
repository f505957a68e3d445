package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
)

// Mirror returns f flipped horizontally, so a user moving their eyes to the
// right sees the cursor move right. JPEG frames are decoded and come back
// as BGR. Seq and CapturedAt are kept.
func Mirror(f Frame) (Frame, error) {
	if f.Empty() {
		return Frame{}, fmt.Errorf("frame: mirror: empty frame")
	}
	switch f.Format {
	case FormatBGR:
		row := f.Width * 3
		if len(f.Data) < row*f.Height {
			return Frame{}, fmt.Errorf("frame: mirror: short BGR buffer: %d bytes for %dx%d", len(f.Data), f.Width, f.Height)
		}
		out := make([]byte, row*f.Height)
		for y := 0; y < f.Height; y++ {
			src := f.Data[y*row : (y+1)*row]
			dst := out[y*row : (y+1)*row]
			for x := 0; x < f.Width; x++ {
				copy(dst[(f.Width-1-x)*3:(f.Width-x)*3], src[x*3:x*3+3])
			}
		}
		f.Data = out
		return f, nil
	case FormatJPEG:
		img, err := jpeg.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return Frame{}, fmt.Errorf("frame: mirror: decode jpeg: %w", err)
		}
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		out := make([]byte, w*h*3)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl := rgbAt(img, b.Min.X+x, b.Min.Y+y)
				i := (y*w + (w - 1 - x)) * 3
				out[i], out[i+1], out[i+2] = bl, g, r
			}
		}
		return Frame{Seq: f.Seq, Data: out, Width: w, Height: h, Format: FormatBGR, CapturedAt: f.CapturedAt}, nil
	default:
		return Frame{}, fmt.Errorf("frame: mirror: unsupported format %s", f.Format)
	}
}

// rgbAt reads one pixel, skipping the color.Color interface for the
// YCbCr images every baseline JPEG decodes to.
func rgbAt(img image.Image, x, y int) (r, g, b uint8) {
	if yc, ok := img.(*image.YCbCr); ok {
		yi, ci := yc.YOffset(x, y), yc.COffset(x, y)
		return color.YCbCrToRGB(yc.Y[yi], yc.Cb[ci], yc.Cr[ci])
	}
	cr, cg, cb, _ := img.At(x, y).RGBA()
	return uint8(cr >> 8), uint8(cg >> 8), uint8(cb >> 8)
}
