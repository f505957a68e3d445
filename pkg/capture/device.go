package capture

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-gaze/pkg/frame"
)

// Device reads frames from a local camera, file or stream through OpenCV.
type Device struct {
	cfg    Config
	logger *slog.Logger

	mu  sync.Mutex
	cap *gocv.VideoCapture
	mat gocv.Mat
}

// OpenDevice opens the capture device named in cfg and requests its
// resolution and framerate. Devices that ignore the request keep their own.
func OpenDevice(cfg Config, logger *slog.Logger) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "capture.device", "device", cfg.Device)

	var (
		vc  *gocv.VideoCapture
		err error
	)
	if idx, convErr := strconv.Atoi(cfg.Device); convErr == nil {
		vc, err = gocv.OpenVideoCapture(idx)
	} else {
		vc, err = gocv.OpenVideoCapture(cfg.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("capture: open %q: %w", cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("capture: device %q not available", cfg.Device)
	}

	if cfg.Width > 0 && cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.Framerate > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	}
	logger.Info("capture device opened",
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight),
		"fps", vc.Get(gocv.VideoCaptureFPS))

	return &Device{cfg: cfg, logger: logger, cap: vc, mat: gocv.NewMat()}, nil
}

// Read grabs the next frame as BGR bytes. Every call returns a freshly
// allocated buffer.
func (d *Device) Read(ctx context.Context) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cap == nil {
		return frame.Frame{}, frame.ErrClosed
	}

	if ok := d.cap.Read(&d.mat); !ok || d.mat.Empty() {
		return frame.Frame{}, ErrReadFailed
	}
	at := time.Now()
	if d.mat.Type() != gocv.MatTypeCV8UC3 {
		return frame.Frame{}, fmt.Errorf("%w: unexpected mat type %v", ErrReadFailed, d.mat.Type())
	}
	if d.cfg.Mirror {
		gocv.Flip(d.mat, &d.mat, 1)
	}
	return frame.Frame{
		Data:       d.mat.ToBytes(),
		Width:      d.mat.Cols(),
		Height:     d.mat.Rows(),
		Format:     frame.FormatBGR,
		CapturedAt: at,
	}, nil
}

// Close releases the device. Callers must make sure no Read is in flight.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cap == nil {
		return nil
	}
	d.mat.Close()
	err := d.cap.Close()
	d.cap = nil
	d.logger.Info("capture device released")
	return err
}
