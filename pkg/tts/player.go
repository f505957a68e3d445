package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Player plays synthesized audio.
type Player interface {
	Play(ctx context.Context, audio *AudioResult) error
}

// CommandPlayer pipes audio into an external player, ffplay by default.
type CommandPlayer struct {
	Binary string
}

// NewCommandPlayer returns a player that uses ffplay.
func NewCommandPlayer() *CommandPlayer {
	return &CommandPlayer{Binary: "ffplay"}
}

// Play blocks until playback finishes or ctx is done.
func (p *CommandPlayer) Play(ctx context.Context, audio *AudioResult) error {
	if audio == nil || len(audio.Audio) == 0 {
		return nil
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.Binary, playerArgs(audio.Format)...)
	cmd.Stdin = bytes.NewReader(audio.Audio)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tts: play: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// playerArgs builds ffplay arguments. Raw PCM needs its layout spelled out;
// containers are probed.
func playerArgs(f AudioFormat) []string {
	args := []string{"-nodisp", "-autoexit", "-loglevel", "error"}
	if f.Encoding == EncodingPCM24 {
		rate := f.SampleRate
		if rate == 0 {
			rate = 24000
		}
		channels := f.Channels
		if channels == 0 {
			channels = 1
		}
		args = append(args, "-f", "s16le", "-ar", strconv.Itoa(rate), "-ch_layout", channelLayout(channels))
	}
	return append(args, "-i", "pipe:0")
}

func channelLayout(n int) string {
	if n == 2 {
		return "stereo"
	}
	return "mono"
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(ctx context.Context, audio *AudioResult) error

// Play calls fn.
func (fn PlayerFunc) Play(ctx context.Context, audio *AudioResult) error { return fn(ctx, audio) }
