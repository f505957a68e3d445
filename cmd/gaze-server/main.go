// gaze-server tracks gaze on frames pushed over HTTP. Clients POST JPEG
// frames and poll GET /gaze for the smoothed point.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-gaze/internal/app"
	"github.com/teslashibe/go-gaze/internal/config"
	gazelog "github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/frame"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/pipeline"
	"github.com/teslashibe/go-gaze/pkg/web"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (default $GAZE_CONFIG)")
	addr := flag.String("addr", "", "Listen address (default from config, :5000)")
	landmarkURL := flag.String("landmarks", "", "Landmark sidecar URL; uses YuNet when empty")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Configuration error: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *landmarkURL != "" {
		cfg.Landmarks.Provider = "remote"
		cfg.Landmarks.URL = *landmarkURL
	}
	gazelog.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("❌ Runtime error: %v", err)
	}
}

func run(ctx context.Context, cfg config.App) error {
	logger := gazelog.Component("gaze-server")

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

	slot := frame.NewSlot()
	srv := web.New(web.Config{
		Addr:      cfg.Server.Addr,
		StaticDir: cfg.Server.StaticDir,
		AccessLog: cfg.Server.AccessLog,
		Mirror:    cfg.Camera.Mirror,
	},
		web.WithSlot(slot),
		web.WithGaze(tracker),
		web.WithLogger(logger),
	)
	follower := pipeline.NewFollower(slot, provider, tracker, pipeline.WithFollowerLogger(logger))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return follower.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		slot.Close()
		return nil
	})
	return g.Wait()
}
