// Package app assembles sources, providers and sinks from configuration.
// The commands share it so they build collaborators the same way.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-gaze/internal/config"
	"github.com/teslashibe/go-gaze/internal/httpc"
	"github.com/teslashibe/go-gaze/pkg/announce"
	"github.com/teslashibe/go-gaze/pkg/capture"
	"github.com/teslashibe/go-gaze/pkg/landmarks"
	"github.com/teslashibe/go-gaze/pkg/landmarks/yunet"
	"github.com/teslashibe/go-gaze/pkg/pipeline"
	"github.com/teslashibe/go-gaze/pkg/tts"
)

// OpenCamera opens the WebRTC camera when a signalling URL is configured
// and the local device otherwise. Both honour cfg.Mirror.
func OpenCamera(ctx context.Context, cfg config.Camera, logger *slog.Logger) (pipeline.Source, error) {
	if cfg.WebRTCURL != "" {
		wc := capture.DefaultWebRTCConfig(cfg.WebRTCURL)
		wc.ProducerName = cfg.Producer
		src, err := capture.DialWebRTC(ctx, wc, logger)
		if err != nil {
			return nil, err
		}
		if cfg.Mirror {
			return capture.Mirrored(src), nil
		}
		return src, nil
	}
	dev, err := capture.OpenDevice(capture.Config{
		Device:    cfg.Device,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Framerate: cfg.Framerate,
		Mirror:    cfg.Mirror,
	}, logger)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

// OpenLandmarks builds the configured landmark provider.
func OpenLandmarks(cfg config.Landmarks, logger *slog.Logger) (landmarks.Provider, error) {
	switch cfg.Provider {
	case "yunet":
		yc := yunet.DefaultConfig()
		if cfg.Model != "" {
			yc.ModelPath = cfg.Model
		}
		return yunet.New(yc)
	case "remote":
		opts := []landmarks.RemoteOption{landmarks.WithRemoteLogger(logger)}
		if cfg.Timeout > 0 {
			opts = append(opts, landmarks.WithHTTPClient(httpc.NewClient(cfg.Timeout)))
		}
		return landmarks.NewRemote(cfg.URL, opts...)
	default:
		return nil, fmt.Errorf("app: unknown landmark provider %q", cfg.Provider)
	}
}

// OpenSpeech returns the speech announcer and the provider to close on
// shutdown, or (nil, nil, nil) when speech is disabled.
func OpenSpeech(cfg config.Speech, logger *slog.Logger) (*announce.Speech, tts.Provider, error) {
	var providers []tts.Provider
	switch cfg.Provider {
	case "none", "":
		return nil, nil, nil
	case "openai", "chain":
		opts := append(voiceOptions(cfg, logger), tts.WithAPIKey(cfg.APIKey))
		if cfg.Model != "" {
			opts = append(opts, tts.WithModel(cfg.Model))
		}
		openai, err := tts.NewOpenAI(opts...)
		switch {
		case err == nil:
			providers = append(providers, openai)
		case cfg.Provider == "openai" || !errors.Is(err, tts.ErrNoAPIKey):
			return nil, nil, err
		default:
			logger.Info("no OpenAI key, speaking with espeak-ng only")
		}
		if cfg.Provider == "chain" {
			// OpenAI voice names mean nothing to espeak-ng.
			providers = append(providers, tts.NewEspeak(tts.WithRate(cfg.Rate), tts.WithLogger(logger)))
		}
	case "espeak":
		providers = append(providers, tts.NewEspeak(append(voiceOptions(cfg, logger), tts.WithRate(cfg.Rate))...))
	default:
		return nil, nil, fmt.Errorf("app: unknown speech provider %q", cfg.Provider)
	}

	provider, err := tts.NewChain(providers...)
	if err != nil {
		return nil, nil, err
	}
	player := tts.NewCommandPlayer()
	if cfg.Player != "" {
		player.Binary = cfg.Player
	}
	return announce.NewSpeech(provider, player), provider, nil
}

func voiceOptions(cfg config.Speech, logger *slog.Logger) []tts.Option {
	opts := []tts.Option{tts.WithLogger(logger)}
	if cfg.Voice != "" {
		opts = append(opts, tts.WithVoice(cfg.Voice))
	}
	return opts
}
