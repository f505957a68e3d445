// gazeboard runs the eye-gaze selection board: a 2x2 grid of needs chosen by
// looking at a cell, confirmed by holding the gaze and spoken aloud.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-gaze/internal/app"
	"github.com/teslashibe/go-gaze/internal/config"
	gazelog "github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/announce"
	"github.com/teslashibe/go-gaze/pkg/frame"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/pipeline"
	"github.com/teslashibe/go-gaze/pkg/render"
	"github.com/teslashibe/go-gaze/pkg/render/window"
	"github.com/teslashibe/go-gaze/pkg/web"
)

type flags struct {
	configPath string
	camera     string
	webrtc     string
	landmarks  string
	addr       string
	speech     string
	headless   bool
	debug      bool
}

func main() {
	f := parseFlags()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}
	f.apply(&cfg)
	gazelog.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, f.headless); err != nil {
		log.Fatalf("❌ Runtime error: %v", err)
	}
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "YAML config file (default $GAZE_CONFIG)")
	flag.StringVar(&f.camera, "camera", "", "Camera index, file or stream URL (overrides config)")
	flag.StringVar(&f.webrtc, "webrtc", "", "WebRTC signalling URL of a remote camera")
	flag.StringVar(&f.landmarks, "landmarks", "", "Landmark sidecar URL; uses YuNet when empty")
	flag.StringVar(&f.addr, "addr", "", "Serve the dashboard on this address, e.g. :5000")
	flag.StringVar(&f.speech, "speech", "", "Speech provider: openai, espeak, chain, none")
	flag.BoolVar(&f.headless, "headless", false, "Do not open a window")
	flag.BoolVar(&f.debug, "debug", false, "Start with the debug overlay and debug logging")
	flag.Parse()
	return f
}

func (f flags) apply(cfg *config.App) {
	if f.camera != "" {
		cfg.Camera.Device = f.camera
	}
	if f.webrtc != "" {
		cfg.Camera.WebRTCURL = f.webrtc
	}
	if f.landmarks != "" {
		cfg.Landmarks.Provider = "remote"
		cfg.Landmarks.URL = f.landmarks
	}
	if f.addr != "" {
		cfg.Server.Enabled = true
		cfg.Server.Addr = f.addr
	}
	if f.speech != "" {
		cfg.Speech.Provider = f.speech
	}
	if f.debug {
		cfg.Selection.Debug = true
		cfg.LogLevel = "debug"
	}
}

// status is what GET /api/status reports about the board. It is written by
// the tick hook and read by HTTP handlers.
type status struct {
	Selection string        `json:"selection"`
	Smoothed  [2]float64    `json:"smoothed"`
	Cooldown  time.Duration `json:"cooldown_remaining"`
	LastSeq   uint64        `json:"last_seq"`
	Outcome   string        `json:"last_outcome"`
	Confirmed uint64        `json:"confirmed"`
}

func run(ctx context.Context, cfg config.App, headless bool) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	logger := gazelog.Component("gazeboard")

	pc, err := cfg.Pipeline()
	if err != nil {
		return err
	}

	provider, err := app.OpenLandmarks(cfg.Landmarks, logger)
	if err != nil {
		return err
	}
	defer provider.Close()

	src, err := app.OpenCamera(ctx, cfg.Camera, logger)
	if err != nil {
		return err
	}

	announcers := announce.Multi{announce.NewLog(logger)}

	var (
		sinks    pipeline.MultiRender
		stateHub *hub.Hub
		confHub  *hub.Hub
		camHub   *hub.Hub
	)
	if cfg.Server.Enabled {
		stateHub = hub.New("state", logger)
		confHub = hub.New("confirmations", logger)
		camHub = hub.New("camera", logger)
		sinks = append(sinks, render.NewDashboard(stateHub, render.WithPreview(camHub)))
		announcers = append(announcers, announce.NewHub(confHub))
	}
	// Speech blocks until playback ends, so it goes after the quick sinks.
	speech, voice, err := app.OpenSpeech(cfg.Speech, logger)
	if err != nil {
		src.Close()
		return err
	}
	if speech != nil {
		defer voice.Close()
		announcers = append(announcers, speech)
	}

	// Set once the controller exists; the window's key handler needs it.
	var ctl *pipeline.Controller
	if !headless {
		win, err := window.New("Gaze Board", pc.Labels, window.WithKeyHandler(func(key byte) {
			switch key {
			case 'q':
				stop()
			case 'd':
				logger.Info("debug overlay", "enabled", ctl.ToggleDebug())
			}
		}))
		if err != nil {
			src.Close()
			return err
		}
		defer win.Close()
		sinks = append(sinks, win)
	}

	dispatcher := announce.NewDispatcher(announcers, announce.WithDispatcherLogger(logger))
	defer func() {
		drain, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := dispatcher.Close(drain); err != nil {
			logger.Warn("announcements not drained", "error", err)
		}
	}()

	slot := frame.NewSlot()
	ctl, err = pipeline.NewController(pc, slot, provider,
		pipeline.WithAnnouncer(dispatcher),
		pipeline.WithRenderSink(sinks),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		src.Close()
		return err
	}

	var (
		snapshot  atomic.Pointer[status]
		confirmed uint64
	)
	hook := func(res pipeline.TickResult) {
		if res.Skipped {
			return
		}
		if res.Confirmed != nil {
			confirmed++
		}
		snapshot.Store(&status{
			Selection: res.Selection.Label,
			Smoothed:  [2]float64{res.Smoothed.X, res.Smoothed.Y},
			Cooldown:  ctl.Cooldown(time.Now()),
			LastSeq:   res.Seq,
			Outcome:   res.Outcome,
			Confirmed: confirmed,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Server.Enabled {
		srv := web.New(web.Config{
			Addr:      cfg.Server.Addr,
			StaticDir: cfg.Server.StaticDir,
			AccessLog: cfg.Server.AccessLog,
		},
			web.WithHubs(stateHub, confHub, camHub),
			web.WithDebugControl(ctl),
			web.WithStatus(func() any { return snapshot.Load() }),
			web.WithLogger(logger),
		)
		g.Go(func() error { return srv.Run(gctx) })
		fmt.Printf("🌐 Dashboard: http://localhost%s\n", cfg.Server.Addr)
	}

	logger.Info("board ready", "labels", pc.Labels, "window", pc.Window, "cooldown", pc.Cooldown)
	runErr := pipeline.NewRunner(src, ctl, slot,
		pipeline.WithTickHook(hook),
		pipeline.WithRunnerLogger(logger),
	).Run(gctx)

	stop()
	if err := g.Wait(); err != nil {
		return err
	}
	return runErr
}
