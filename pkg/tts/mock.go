package tts

import (
	"context"
	"sync"
	"time"
)

// Mock implements Provider for tests and records every call.
type Mock struct {
	// SynthesizeFunc overrides Synthesize. If nil, returns silence.
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)
	// HealthFunc overrides Health. If nil, reports healthy.
	HealthFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records one method invocation.
type MockCall struct {
	Method string
	Text   string
	Time   time.Time
}

// NewMock returns a mock that produces ~20ms of silent PCM per character.
func NewMock() *Mock {
	return &Mock{}
}

// WithError returns a mock whose every method fails with err.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(context.Context, string) (*AudioResult, error) { return nil, err },
		HealthFunc:     func(context.Context) error { return err },
	}
}

// Synthesize records the call and returns SynthesizeFunc's result.
func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.record("Synthesize", text)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text)
	}
	if text == "" {
		return nil, WrapError("mock", ErrEmptyText)
	}
	const bytesPerChar = 960 // 20ms of 24kHz PCM16
	return &AudioResult{
		Audio:     make([]byte, len(text)*bytesPerChar),
		Format:    AudioFormat{Encoding: EncodingPCM24, SampleRate: 24000, Channels: 1},
		CharCount: len(text),
	}, nil
}

// Health records the call and returns HealthFunc's result.
func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", "")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close records the call.
func (m *Mock) Close() error {
	m.record("Close", "")
	return nil
}

func (m *Mock) record(method, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Text: text, Time: time.Now()})
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns how many times method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

var _ Provider = (*Mock)(nil)
