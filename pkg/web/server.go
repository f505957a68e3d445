// Package web serves the dashboard API, websocket feeds and the pushed-frame
// endpoints.
package web

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-gaze/pkg/frame"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/hub"
)

// DefaultBodyLimit accommodates a 1080p JPEG with room to spare.
const DefaultBodyLimit = 8 << 20

const shutdownTimeout = 5 * time.Second

// GazeSource is the smoothed point served by GET /gaze. *gaze.Tracker
// satisfies it.
type GazeSource interface {
	Current() gaze.Point
	UpdatedAt() time.Time
	Samples() uint64
	Misses() uint64
}

// DebugControl flips the debug overlay. *pipeline.Controller satisfies it.
type DebugControl interface {
	SetDebug(on bool)
	ToggleDebug() bool
	Debug() bool
}

// Config configures the server.
type Config struct {
	Addr      string // Listen address, e.g. ":5000"
	StaticDir string // Optional directory served at /
	AccessLog bool   // Log every request except frame uploads
	BodyLimit int
	// Mirror flips pushed frames horizontally before they reach the slot,
	// matching a mirrored local camera.
	Mirror bool
}

// DefaultConfig listens on :5000 like the original pushed-frame service.
func DefaultConfig() Config {
	return Config{Addr: ":5000", BodyLimit: DefaultBodyLimit}
}

// Server is the fiber application plus the hubs it feeds.
type Server struct {
	app    *fiber.App
	cfg    Config
	logger *slog.Logger

	slot    *frame.Slot
	gaze    GazeSource
	debug   DebugControl
	status  func() any
	started time.Time

	stateHub   *hub.Hub
	confirmHub *hub.Hub
	cameraHub  *hub.Hub
}

// Option configures a Server.
type Option func(*Server)

// WithSlot enables the frame upload endpoints, which publish into slot.
func WithSlot(slot *frame.Slot) Option {
	return func(s *Server) { s.slot = slot }
}

// WithGaze enables GET /gaze.
func WithGaze(g GazeSource) Option {
	return func(s *Server) { s.gaze = g }
}

// WithDebugControl enables POST /api/debug.
func WithDebugControl(d DebugControl) Option {
	return func(s *Server) { s.debug = d }
}

// WithStatus adds the result of fn to GET /api/status under "pipeline".
func WithStatus(fn func() any) Option {
	return func(s *Server) { s.status = fn }
}

// WithHubs makes the server serve hubs created by the caller, so sinks can
// be wired before the server exists. Nil hubs are created by New. The server
// runs all three hubs.
func WithHubs(state, confirmations, camera *hub.Hub) Option {
	return func(s *Server) {
		s.stateHub, s.confirmHub, s.cameraHub = state, confirmations, camera
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds the server and its routes. Call Run to serve.
func New(cfg Config, opts ...Option) *Server {
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultBodyLimit
	}
	s := &Server{
		cfg:     cfg,
		logger:  slog.Default(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")
	if s.stateHub == nil {
		s.stateHub = hub.New("state", s.logger)
	}
	if s.confirmHub == nil {
		s.confirmHub = hub.New("confirmations", s.logger)
	}
	if s.cameraHub == nil {
		s.cameraHub = hub.New("camera", s.logger)
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-gaze",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${status} ${method} ${path} ${latency}\n",
			Next:   isFrameUpload,
		}))
	}
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	app.Post("/upload_frame", s.handleUploadFrame)
	app.Get("/gaze", s.handleGaze)
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/frames", s.handlePushFrame)
	api.Post("/debug", s.handleDebug)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.serveHub(s.stateHub)))
	app.Get("/ws/confirmations", websocket.New(s.serveHub(s.confirmHub)))
	app.Get("/ws/camera", websocket.New(s.serveHub(s.cameraHub)))

	s.app = app
	return s
}

func isFrameUpload(c *fiber.Ctx) bool {
	p := c.Path()
	return p == "/upload_frame" || strings.HasPrefix(p, "/api/frames")
}

// Run starts the hubs and serves until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, h := range []*hub.Hub{s.stateHub, s.confirmHub, s.cameraHub} {
		h := h
		g.Go(func() error {
			h.Run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		if err := s.app.Listen(s.cfg.Addr); err != nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return s.app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// StateHub carries render state events.
func (s *Server) StateHub() *hub.Hub { return s.stateHub }

// ConfirmationHub carries confirmation events.
func (s *Server) ConfirmationHub() *hub.Hub { return s.confirmHub }

// CameraHub carries JPEG previews.
func (s *Server) CameraHub() *hub.Hub { return s.cameraHub }

func (s *Server) serveHub(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client := hub.NewClient(h, conn)
		if client == nil {
			conn.Close()
			return
		}
		client.Run()
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
