// Package config loads go-gaze settings from a YAML file and the environment.
//
// Precedence, lowest first: built-in defaults, the YAML file, environment
// variables, command-line flags (applied by each command).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/landmarks"
	"github.com/teslashibe/go-gaze/pkg/pipeline"
)

// Environment variables read by Load.
const (
	EnvConfig      = "GAZE_CONFIG"
	EnvCamera      = "GAZE_CAMERA"
	EnvWebRTCURL   = "GAZE_WEBRTC_URL"
	EnvLandmarkURL = "GAZE_LANDMARK_URL"
	EnvYuNetModel  = "GAZE_YUNET_MODEL"
	EnvHTTPAddr    = "GAZE_HTTP_ADDR"
	EnvLogLevel    = "GAZE_LOG_LEVEL"
	EnvDebug       = "GAZE_DEBUG"
	EnvOpenAIKey   = "OPENAI_API_KEY"
)

// App is the complete configuration.
type App struct {
	LogLevel  string    `yaml:"log_level"`
	Camera    Camera    `yaml:"camera"`
	Landmarks Landmarks `yaml:"landmarks"`
	Gaze      Gaze      `yaml:"gaze"`
	Selection Selection `yaml:"selection"`
	Server    Server    `yaml:"server"`
	Speech    Speech    `yaml:"speech"`
}

// Camera selects the frame source. WebRTCURL, when set, wins over Device.
type Camera struct {
	Device    string `yaml:"device"` // Index ("0") or a file/stream URL
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	Framerate int    `yaml:"framerate"`
	Mirror    bool   `yaml:"mirror"`
	WebRTCURL string `yaml:"webrtc_url"`
	Producer  string `yaml:"producer"`
}

// Landmarks selects the landmark provider.
type Landmarks struct {
	Provider string        `yaml:"provider"` // "yunet" or "remote"
	Model    string        `yaml:"model"`    // YuNet ONNX path
	URL      string        `yaml:"url"`      // Remote sidecar endpoint
	Layout   string        `yaml:"layout"`   // "mediapipe" or "ring"; empty picks by provider
	Timeout  time.Duration `yaml:"timeout"`
}

// Gaze holds estimator and smoothing settings.
type Gaze struct {
	Sensitivity   float64 `yaml:"sensitivity"`
	Alpha         float64 `yaml:"alpha"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// Selection holds board and decision settings.
type Selection struct {
	Labels   [][]string    `yaml:"labels"`
	Window   int           `yaml:"window"`
	Cooldown time.Duration `yaml:"cooldown"`
	IdleTick time.Duration `yaml:"idle_tick"`
	Debug    bool          `yaml:"debug"`
}

// Server configures the HTTP server.
type Server struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
	AccessLog bool   `yaml:"access_log"`
}

// Speech configures announcements.
type Speech struct {
	Provider string `yaml:"provider"` // "openai", "espeak", "chain" or "none"
	APIKey   string `yaml:"-"`        // Only from the environment
	Voice    string `yaml:"voice"`
	Model    string `yaml:"model"`
	Rate     int    `yaml:"rate"`
	Player   string `yaml:"player"` // Playback binary
}

// Default returns the reference configuration.
func Default() App {
	pc := pipeline.DefaultConfig()
	return App{
		LogLevel: "info",
		Camera: Camera{
			Device:    "0",
			Width:     1280,
			Height:    720,
			Framerate: 60,
			Mirror:    true,
			Producer:  "reachymini",
		},
		Landmarks: Landmarks{
			Provider: "yunet",
			Model:    "models/face_detection_yunet.onnx",
			Timeout:  landmarks.DefaultRemoteTimeout,
		},
		Gaze: Gaze{
			Sensitivity:   pc.Gaze.Estimator.Sensitivity,
			Alpha:         pc.Gaze.Smoother.Alpha,
			MinConfidence: pc.Gaze.Smoother.MinConfidence,
		},
		Selection: Selection{
			Labels:   pc.Labels,
			Window:   pc.Window,
			Cooldown: pc.Cooldown,
			IdleTick: pc.IdleTick,
		},
		Server: Server{Addr: ":5000"},
		Speech: Speech{
			Provider: "chain",
			Rate:     150,
			Player:   "ffplay",
		},
	}
}

// Load reads path (if non-empty) over the defaults and applies environment
// overrides. An empty path falls back to $GAZE_CONFIG.
func Load(path string) (App, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := Parse(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, keeping fields the document does not set.
// Unknown keys are an error.
func Parse(data []byte, cfg *App) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (a *App) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvCamera); v != "" {
		a.Camera.Device = v
	}
	if v := getenv(EnvWebRTCURL); v != "" {
		a.Camera.WebRTCURL = v
	}
	if v := getenv(EnvLandmarkURL); v != "" {
		a.Landmarks.URL = v
		a.Landmarks.Provider = "remote"
	}
	if v := getenv(EnvYuNetModel); v != "" {
		a.Landmarks.Model = v
	}
	if v := getenv(EnvHTTPAddr); v != "" {
		a.Server.Addr = v
		a.Server.Enabled = true
	}
	if v := getenv(EnvLogLevel); v != "" {
		a.LogLevel = v
	}
	if v := getenv(EnvDebug); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvDebug, err)
		}
		a.Selection.Debug = on
	}
	a.Speech.APIKey = getenv(EnvOpenAIKey)
	return nil
}

// Layout resolves the iris layout, defaulting by provider: YuNet emits
// rings, the remote sidecar emits the face mesh.
func (a App) Layout() (landmarks.Layout, error) {
	name := a.Landmarks.Layout
	if name == "" && a.Landmarks.Provider == "yunet" {
		name = "ring"
	}
	return landmarks.LayoutByName(name)
}

// GazeConfig converts the gaze section.
func (a App) GazeConfig() (gaze.Config, error) {
	layout, err := a.Layout()
	if err != nil {
		return gaze.Config{}, err
	}
	return gaze.Config{
		Estimator: gaze.EstimatorConfig{Layout: layout, Sensitivity: a.Gaze.Sensitivity},
		Smoother:  gaze.SmootherConfig{Alpha: a.Gaze.Alpha, MinConfidence: a.Gaze.MinConfidence},
	}, nil
}

// Pipeline converts the gaze and selection sections and validates the result.
func (a App) Pipeline() (pipeline.Config, error) {
	gc, err := a.GazeConfig()
	if err != nil {
		return pipeline.Config{}, err
	}
	pc := pipeline.Config{
		Gaze:     gc,
		Labels:   a.Selection.Labels,
		Window:   a.Selection.Window,
		Cooldown: a.Selection.Cooldown,
		IdleTick: a.Selection.IdleTick,
		Debug:    a.Selection.Debug,
	}
	if err := pc.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return pc, nil
}
