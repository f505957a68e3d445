// gaze-cursor shows where the tracker thinks you are looking: a cursor over
// a blank canvas with the camera preview in the corner. Press q to quit and
// d to toggle the iris overlay.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-gaze/internal/app"
	"github.com/teslashibe/go-gaze/internal/config"
	gazelog "github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/frame"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/pipeline"
	"github.com/teslashibe/go-gaze/pkg/render/window"
)

const refresh = 16 * time.Millisecond

func main() {
	configPath := flag.String("config", "", "YAML config file (default $GAZE_CONFIG)")
	camera := flag.String("camera", "", "Camera index, file or stream URL")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}
	if *camera != "" {
		cfg.Camera.Device = *camera
	}
	gazelog.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("❌ Runtime error: %v", err)
	}
}

func run(ctx context.Context, cfg config.App) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()
	logger := gazelog.Component("gaze-cursor")

	gc, err := cfg.GazeConfig()
	if err != nil {
		return err
	}
	tracker, err := gaze.NewTracker(gc, logger)
	if err != nil {
		return err
	}
	provider, err := app.OpenLandmarks(cfg.Landmarks, logger)
	if err != nil {
		return err
	}
	defer provider.Close()

	var debug atomic.Bool
	debug.Store(cfg.Selection.Debug)
	win, err := window.New("Gaze Cursor", nil, window.WithKeyHandler(func(key byte) {
		switch key {
		case 'q':
			stop()
		case 'd':
			debug.Store(!debug.Load())
		}
	}))
	if err != nil {
		return err
	}
	defer win.Close()

	src, err := app.OpenCamera(ctx, cfg.Camera, logger)
	if err != nil {
		return err
	}

	slot := frame.NewSlot()
	var est atomic.Pointer[gaze.Estimate]
	follower := pipeline.NewFollower(slot, provider, tracker,
		pipeline.WithFollowerLogger(logger),
		pipeline.WithSampleHook(func(e gaze.Estimate, _ uint64) {
			if e.Point.Confidence > 0 {
				est.Store(&e)
			}
		}),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return frame.NewProducer(src, slot, frame.WithProducerLogger(logger)).Run(gctx) })
	g.Go(func() error { return follower.Run(gctx) })

	ticker := time.NewTicker(refresh)
	defer ticker.Stop()
	for loop := true; loop; {
		select {
		case <-gctx.Done():
			loop = false
		case <-ticker.C:
			state := pipeline.RenderState{Gaze: tracker.Current(), Debug: debug.Load(), At: time.Now()}
			if f, ok := slot.TakeLatest(); ok {
				state.Frame = &f
			}
			state.Estimate = est.Load()
			if err := win.Render(state); err != nil {
				logger.Warn("render failed", "error", err)
			}
		}
	}

	stop()
	slot.Close()
	err = g.Wait()
	// Release the camera only once the producer has returned.
	if cerr := src.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
