// Package capture provides frame sources for the acquisition loop.
package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/go-gaze/pkg/frame"
)

// ErrReadFailed is returned when a source produced no usable frame.
// The producer treats it like any other read error and retries.
var ErrReadFailed = errors.New("capture: read failed")

// Source yields frames until closed. Read may block; it must return
// promptly once ctx is done.
type Source interface {
	Read(ctx context.Context) (frame.Frame, error)
	Close() error
}

// Config holds capture settings.
type Config struct {
	// Device is a camera index ("0"), a file path or a stream URL.
	Device    string `json:"device" yaml:"device"`
	Width     int    `json:"width" yaml:"width"`
	Height    int    `json:"height" yaml:"height"`
	Framerate int    `json:"framerate" yaml:"framerate"`
	// Mirror flips frames horizontally so the preview behaves like a mirror.
	Mirror bool `json:"mirror" yaml:"mirror"`
}

// DefaultConfig returns the reference webcam settings.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     1280,
		Height:    720,
		Framerate: 60,
		Mirror:    true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Device == "" {
		errs = append(errs, errors.New("device is required"))
	}
	if c.Width < 0 || c.Height < 0 {
		errs = append(errs, fmt.Errorf("resolution %dx%d is negative", c.Width, c.Height))
	}
	if c.Framerate < 0 || c.Framerate > 240 {
		errs = append(errs, fmt.Errorf("framerate %d out of range (0-240)", c.Framerate))
	}
	if len(errs) > 0 {
		return fmt.Errorf("capture: %w", errors.Join(errs...))
	}
	return nil
}

// Func adapts a read function to Source. Close is a no-op.
type Func func(ctx context.Context) (frame.Frame, error)

// Read calls fn(ctx).
func (fn Func) Read(ctx context.Context) (frame.Frame, error) { return fn(ctx) }

// Close does nothing.
func (fn Func) Close() error { return nil }

// Mirrored flips every frame src yields horizontally. Device flips natively
// through Config.Mirror; this serves sources that cannot, such as WebRTC.
func Mirrored(src Source) Source { return mirrored{src} }

type mirrored struct{ Source }

func (m mirrored) Read(ctx context.Context) (frame.Frame, error) {
	f, err := m.Source.Read(ctx)
	if err != nil {
		return f, err
	}
	out, err := frame.Mirror(f)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	return out, nil
}
