package landmarks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teslashibe/go-gaze/internal/httpc"
	"github.com/teslashibe/go-gaze/pkg/frame"
)

// DefaultRemoteTimeout bounds one landmark request. It sits on the per-frame
// path, so it is far shorter than the shared client timeout.
const DefaultRemoteTimeout = 500 * time.Millisecond

// Remote asks a face-mesh sidecar for landmarks.
//
// The frame is POSTed as image/jpeg. The sidecar answers with
//
//	{"landmarks": [{"x": 0.41, "y": 0.37}, ...]}
//
// in normalized image coordinates, or 204 / an empty list when there is no
// face. Points are scaled to the frame's pixel space.
type Remote struct {
	url     string
	client  *http.Client
	quality int
	logger  *slog.Logger
}

// RemoteOption configures a Remote provider.
type RemoteOption func(*Remote)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) {
		if c != nil {
			r.client = c
		}
	}
}

// WithJPEGQuality sets the quality used when raw frames must be encoded.
func WithJPEGQuality(q int) RemoteOption {
	return func(r *Remote) {
		if q >= 1 && q <= 100 {
			r.quality = q
		}
	}
}

// WithRemoteLogger sets the logger.
func WithRemoteLogger(l *slog.Logger) RemoteOption {
	return func(r *Remote) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRemote creates a provider for the sidecar at url.
func NewRemote(url string, opts ...RemoteOption) (*Remote, error) {
	if url == "" {
		return nil, fmt.Errorf("landmarks: remote URL required")
	}
	r := &Remote{
		url:     url,
		client:  httpc.NewClient(DefaultRemoteTimeout),
		quality: 85,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "landmarks.remote")
	return r, nil
}

type remoteResponse struct {
	Landmarks []Point `json:"landmarks"`
}

// Landmarks sends f to the sidecar.
func (r *Remote) Landmarks(ctx context.Context, f frame.Frame) (Set, error) {
	if f.Empty() {
		return Set{}, fmt.Errorf("landmarks: empty frame")
	}
	body, err := EncodeJPEG(f, r.quality)
	if err != nil {
		return Set{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return Set{}, fmt.Errorf("landmarks: build request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := r.client.Do(req)
	if err != nil {
		return Set{}, fmt.Errorf("landmarks: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return Set{}, ErrNoFace
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Set{}, fmt.Errorf("landmarks: sidecar returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Set{}, fmt.Errorf("landmarks: decode response: %w", err)
	}
	if len(out.Landmarks) == 0 {
		return Set{}, ErrNoFace
	}

	w, h := float64(f.Width), float64(f.Height)
	for i := range out.Landmarks {
		out.Landmarks[i].X *= w
		out.Landmarks[i].Y *= h
	}
	return Set{Points: out.Landmarks, Width: f.Width, Height: f.Height}, nil
}

// Close is a no-op; the HTTP client is shared.
func (r *Remote) Close() error { return nil }

// EncodeJPEG returns f as JPEG bytes, passing JPEG frames through.
func EncodeJPEG(f frame.Frame, quality int) ([]byte, error) {
	switch f.Format {
	case frame.FormatJPEG:
		return f.Data, nil
	case frame.FormatBGR:
		if len(f.Data) < f.Width*f.Height*3 {
			return nil, fmt.Errorf("landmarks: short BGR buffer: %d bytes for %dx%d", len(f.Data), f.Width, f.Height)
		}
		img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
		for i, j := 0, 0; i < f.Width*f.Height*3; i, j = i+3, j+4 {
			img.Pix[j] = f.Data[i+2]
			img.Pix[j+1] = f.Data[i+1]
			img.Pix[j+2] = f.Data[i]
			img.Pix[j+3] = 0xff
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("landmarks: encode jpeg: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("landmarks: unsupported frame format %s", f.Format)
	}
}

var _ Provider = (*Remote)(nil)
