package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const providerEspeak = "espeak"

// Espeak synthesizes speech locally with espeak-ng. It needs no network and
// serves as the fallback voice.
type Espeak struct {
	binary string
	config *Config
	logger *slog.Logger
}

// NewEspeak creates a local provider. The binary is looked up on PATH when
// first used.
func NewEspeak(opts ...Option) *Espeak {
	cfg := DefaultConfig()
	cfg.Voice = "en"
	cfg.Apply(opts...)
	return &Espeak{
		binary: "espeak-ng",
		config: cfg,
		logger: cfg.Logger.With("component", "tts.espeak"),
	}
}

// Synthesize returns WAV audio for text.
func (e *Espeak) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, WrapError(providerEspeak, ErrEmptyText)
	}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	var out, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binary, e.args(text)...)
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, WrapError(providerEspeak, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}

	e.logger.Debug("synthesized audio", "chars", len(text), "bytes", out.Len())
	return &AudioResult{
		Audio:     out.Bytes(),
		Format:    AudioFormat{Encoding: EncodingWAV, Channels: 1},
		CharCount: len(text),
		Latency:   time.Since(start),
	}, nil
}

func (e *Espeak) args(text string) []string {
	return []string{"--stdout", "-v", e.config.Voice, "-s", strconv.Itoa(e.config.Rate), text}
}

// Health checks that the binary is installed.
func (e *Espeak) Health(ctx context.Context) error {
	if _, err := exec.LookPath(e.binary); err != nil {
		return WrapError(providerEspeak, err)
	}
	return nil
}

// Close does nothing.
func (e *Espeak) Close() error { return nil }

var _ Provider = (*Espeak)(nil)
