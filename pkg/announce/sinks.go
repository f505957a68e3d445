package announce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/pipeline"
	"github.com/teslashibe/go-gaze/pkg/selection"
	"github.com/teslashibe/go-gaze/pkg/tts"
)

// EventConfirmation is the hub event type for confirmations.
const EventConfirmation = "confirmation"

// Speech speaks the label of each confirmation.
type Speech struct {
	provider tts.Provider
	player   tts.Player
	phrase   func(selection.Selection) string
}

// SpeechOption configures Speech.
type SpeechOption func(*Speech)

// WithPhrase changes what is said for a selection. The default is the label.
func WithPhrase(fn func(selection.Selection) string) SpeechOption {
	return func(s *Speech) {
		if fn != nil {
			s.phrase = fn
		}
	}
}

// NewSpeech returns a speech announcer.
func NewSpeech(provider tts.Provider, player tts.Player, opts ...SpeechOption) *Speech {
	s := &Speech{
		provider: provider,
		player:   player,
		phrase:   func(sel selection.Selection) string { return sel.Label },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Announce synthesizes the phrase and blocks until it has been played.
// Wrap it in a Dispatcher to keep it off the processing loop.
func (s *Speech) Announce(ctx context.Context, c pipeline.Confirmation) error {
	text := s.phrase(c.Selection)
	audio, err := s.provider.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("announce: synthesize %q: %w", text, err)
	}
	if err := s.player.Play(ctx, audio); err != nil {
		return fmt.Errorf("announce: play %q: %w", text, err)
	}
	return nil
}

// Log writes each confirmation to a logger.
type Log struct {
	logger *slog.Logger
}

// NewLog returns a log announcer; nil uses slog.Default.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

// Announce logs c at info level.
func (l *Log) Announce(_ context.Context, c pipeline.Confirmation) error {
	l.logger.Info("selection confirmed",
		"label", c.Selection.Label,
		"row", c.Selection.Row,
		"col", c.Selection.Col,
		"id", c.ID,
	)
	return nil
}

// Hub broadcasts confirmations to websocket clients.
type Hub struct {
	hub *hub.Hub
}

// NewHub returns a hub announcer.
func NewHub(h *hub.Hub) *Hub {
	return &Hub{hub: h}
}

// Announce broadcasts a "confirmation" event.
func (h *Hub) Announce(_ context.Context, c pipeline.Confirmation) error {
	return h.hub.BroadcastEvent(EventConfirmation, c)
}

// Multi hands a confirmation to every announcer, even if one fails.
type Multi []pipeline.Announcer

// Announce calls each announcer in order and joins their errors.
func (m Multi) Announce(ctx context.Context, c pipeline.Confirmation) error {
	var errs []error
	for _, a := range m {
		if err := a.Announce(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
