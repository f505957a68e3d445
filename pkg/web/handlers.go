package web

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-gaze/pkg/frame"
)

// UploadFrameRequest is the body of POST /upload_frame.
type UploadFrameRequest struct {
	Frame string `json:"frame"` // Base64 JPEG, optionally as a data URL
}

// GazeResponse is the body of GET /gaze.
type GazeResponse struct {
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Confidence float64    `json:"confidence"`
	Samples    uint64     `json:"samples"`
	Misses     uint64     `json:"misses"` // Frames with no usable face
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// DebugRequest is the optional body of POST /api/debug. Without Enabled the
// flag is toggled.
type DebugRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) handleUploadFrame(c *fiber.Ctx) error {
	if s.slot == nil {
		return fiber.NewError(fiber.StatusNotFound, "frame upload disabled")
	}
	var req UploadFrameRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if req.Frame == "" {
		return fiber.NewError(fiber.StatusBadRequest, "No frame data")
	}
	data, err := decodeBase64Image(req.Frame)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	seq, err := s.publishJPEG(data)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "Frame received", "seq": seq})
}

func (s *Server) handlePushFrame(c *fiber.Ctx) error {
	if s.slot == nil {
		return fiber.NewError(fiber.StatusNotFound, "frame upload disabled")
	}
	// fasthttp reuses the body buffer after the handler returns.
	data := bytes.Clone(c.Body())
	seq, err := s.publishJPEG(data)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"seq": seq})
}

// publishJPEG validates the image header and hands the frame to the slot.
func (s *Server) publishJPEG(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "empty frame")
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("frame is not a JPEG: %v", err))
	}
	f := frame.Frame{
		Data:       data,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Format:     frame.FormatJPEG,
		CapturedAt: time.Now(),
	}
	if s.cfg.Mirror {
		if f, err = frame.Mirror(f); err != nil {
			return 0, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	seq := s.slot.Publish(f)
	if seq == 0 {
		return 0, fiber.NewError(fiber.StatusServiceUnavailable, "shutting down")
	}
	return seq, nil
}

func decodeBase64Image(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, fmt.Errorf("malformed data URL")
		}
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 frame: %w", err)
	}
	return data, nil
}

func (s *Server) handleGaze(c *fiber.Ctx) error {
	if s.gaze == nil {
		return fiber.NewError(fiber.StatusNotFound, "gaze tracking disabled")
	}
	p := s.gaze.Current()
	resp := GazeResponse{X: p.X, Y: p.Y, Confidence: p.Confidence, Samples: s.gaze.Samples(), Misses: s.gaze.Misses()}
	if t := s.gaze.UpdatedAt(); !t.IsZero() {
		resp.UpdatedAt = &t
	}
	return c.JSON(resp)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	status := fiber.Map{
		"uptime": time.Since(s.started).Round(time.Second).String(),
		"clients": fiber.Map{
			"state":         s.stateHub.ClientCount(),
			"confirmations": s.confirmHub.ClientCount(),
			"camera":        s.cameraHub.ClientCount(),
		},
	}
	if s.slot != nil {
		status["frames"] = s.slot.Stats()
	}
	if s.debug != nil {
		status["debug"] = s.debug.Debug()
	}
	if s.status != nil {
		status["pipeline"] = s.status()
	}
	return c.JSON(status)
}

func (s *Server) handleDebug(c *fiber.Ctx) error {
	if s.debug == nil {
		return fiber.NewError(fiber.StatusNotFound, "debug control unavailable")
	}
	var req DebugRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
		}
	}
	var on bool
	if req.Enabled != nil {
		on = *req.Enabled
		s.debug.SetDebug(on)
	} else {
		on = s.debug.ToggleDebug()
	}
	s.logger.Info("debug overlay", "enabled", on)
	return c.JSON(fiber.Map{"debug": on})
}
