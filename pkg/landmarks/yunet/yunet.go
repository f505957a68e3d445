// Package yunet provides eye landmarks from OpenCV's YuNet face detector.
//
// YuNet reports eye centers, not iris contours. Each eye center is emitted as
// a 4-point ring (landmarks.RingLayout) whose centroid is the eye center, so
// the gaze estimator treats it like any other iris subset.
package yunet

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-gaze/pkg/frame"
	"github.com/teslashibe/go-gaze/pkg/landmarks"
)

// Config holds detector configuration.
type Config struct {
	ModelPath        string  // Path to ONNX model
	ConfidenceThresh float64 // Minimum face score
	NMSThresh        float64
	InputWidth       int // Initial model input size, updated per frame
	InputHeight      int
	RingScale        float64 // Ring radius as a fraction of the eye distance
}

// DefaultConfig returns production defaults for YuNet.
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.9,
		NMSThresh:        0.3,
		InputWidth:       320,
		InputHeight:      320,
		RingScale:        0.12,
	}
}

// face is one parsed YuNet row.
type face struct {
	x, y, w, h           float64
	rightEyeX, rightEyeY float64
	leftEyeX, leftEyeY   float64
	score                float64
}

func (f face) area() float64 { return f.w * f.h }

// Provider implements landmarks.Provider on top of gocv.FaceDetectorYN.
type Provider struct {
	detector gocv.FaceDetectorYN
	config   Config
	mu       sync.Mutex // Protects inference
}

// New loads the model.
func New(cfg Config) (*Provider, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("yunet: model file not found: %s", cfg.ModelPath)
	}
	if cfg.RingScale <= 0 {
		cfg.RingScale = DefaultConfig().RingScale
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ConfidenceThresh),
		float32(cfg.NMSThresh),
		5000,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &Provider{detector: detector, config: cfg}, nil
}

// Landmarks detects the best face in f and returns its eye rings.
func (p *Provider) Landmarks(ctx context.Context, f frame.Frame) (landmarks.Set, error) {
	if err := ctx.Err(); err != nil {
		return landmarks.Set{}, err
	}

	img, err := ToMat(f)
	if err != nil {
		return landmarks.Set{}, err
	}
	defer img.Close()

	faces := p.detect(img)
	best := selectBest(faces)
	if best == nil {
		return landmarks.Set{}, landmarks.ErrNoFace
	}

	eyeDist := math.Hypot(best.leftEyeX-best.rightEyeX, best.leftEyeY-best.rightEyeY)
	radius := eyeDist * p.config.RingScale

	points := make([]landmarks.Point, 0, 8)
	points = append(points, landmarks.Ring("left_iris", best.leftEyeX, best.leftEyeY, radius, 4)...)
	points = append(points, landmarks.Ring("right_iris", best.rightEyeX, best.rightEyeY, radius, 4)...)

	return landmarks.Set{Points: points, Width: img.Cols(), Height: img.Rows()}, nil
}

func (p *Provider) detect(img gocv.Mat) []face {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	out := gocv.NewMat()
	defer out.Close()
	p.detector.Detect(img, &out)

	// 15 columns per face: box (0-3), right eye (4,5), left eye (6,7),
	// nose, mouth corners, score (14).
	faces := make([]face, 0, out.Rows())
	for r := 0; r < out.Rows(); r++ {
		faces = append(faces, face{
			x:         float64(out.GetFloatAt(r, 0)),
			y:         float64(out.GetFloatAt(r, 1)),
			w:         float64(out.GetFloatAt(r, 2)),
			h:         float64(out.GetFloatAt(r, 3)),
			rightEyeX: float64(out.GetFloatAt(r, 4)),
			rightEyeY: float64(out.GetFloatAt(r, 5)),
			leftEyeX:  float64(out.GetFloatAt(r, 6)),
			leftEyeY:  float64(out.GetFloatAt(r, 7)),
			score:     float64(out.GetFloatAt(r, 14)),
		})
	}
	return faces
}

// Close releases the detector.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detector.Close()
	return nil
}

// selectBest picks the face with the best blend of score and size.
func selectBest(faces []face) *face {
	if len(faces) == 0 {
		return nil
	}
	maxArea := 0.0
	for _, f := range faces {
		maxArea = math.Max(maxArea, f.area())
	}
	if maxArea == 0 {
		maxArea = 1
	}

	var best *face
	bestScore := -1.0
	for i := range faces {
		s := faces[i].score*0.7 + (faces[i].area()/maxArea)*0.3
		if s > bestScore {
			bestScore = s
			best = &faces[i]
		}
	}
	return best
}

// ToMat converts a frame into a BGR Mat owned by the caller.
func ToMat(f frame.Frame) (gocv.Mat, error) {
	if f.Empty() {
		return gocv.NewMat(), fmt.Errorf("yunet: empty frame")
	}
	switch f.Format {
	case frame.FormatBGR:
		return gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Data)
	case frame.FormatJPEG:
		img, err := gocv.IMDecode(f.Data, gocv.IMReadColor)
		if err != nil {
			return img, fmt.Errorf("yunet: decode image: %w", err)
		}
		if img.Empty() {
			img.Close()
			return gocv.NewMat(), fmt.Errorf("yunet: undecodable image")
		}
		return img, nil
	default:
		return gocv.NewMat(), fmt.Errorf("yunet: unsupported frame format %s", f.Format)
	}
}

var _ landmarks.Provider = (*Provider)(nil)
