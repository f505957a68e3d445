// Package tts turns short announcement text into playable audio.
//
// Providers implement Provider; Chain tries several in order so a hosted
// voice can fall back to a local one when the network is down.
//
//	openai, _ := tts.NewOpenAI(tts.WithAPIKey(key))
//	local := tts.NewEspeak()
//	provider, _ := tts.NewChain(openai, local)
//	result, _ := provider.Synthesize(ctx, "Food")
package tts

import (
	"context"
	"time"
)

// Provider synthesizes speech.
type Provider interface {
	// Synthesize converts text to a complete audio buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks that the provider can be used.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	Audio     []byte
	Format    AudioFormat
	CharCount int
	Latency   time.Duration
}

// AudioFormat describes the audio container and sample layout.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int // Hz, 0 when carried by the container
	Channels   int
}

// Encoding names an audio container or raw sample format.
type Encoding string

const (
	EncodingMP3   Encoding = "mp3"
	EncodingWAV   Encoding = "wav"
	EncodingPCM24 Encoding = "pcm_24000" // Raw 24kHz mono PCM16
)
