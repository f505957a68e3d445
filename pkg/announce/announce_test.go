package announce

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-gaze/pkg/pipeline"
	"github.com/teslashibe/go-gaze/pkg/selection"
	"github.com/teslashibe/go-gaze/pkg/tts"
)

type recorder struct {
	mu   sync.Mutex
	got  []pipeline.Confirmation
	gate chan struct{} // if set, Announce blocks until it is closed
	seen chan struct{}
	err  error
}

func (r *recorder) Announce(ctx context.Context, c pipeline.Confirmation) error {
	if r.seen != nil {
		r.seen <- struct{}{}
	}
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, c)
	return r.err
}

func (r *recorder) labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.got))
	for i, c := range r.got {
		out[i] = c.Selection.Label
	}
	return out
}

func confirmation(label string) pipeline.Confirmation {
	return pipeline.Confirmation{ID: uuid.New(), Selection: selection.Selection{Label: label}, At: time.Now()}
}

func closeDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
}

func TestDispatcher_DeliversEachOnceInOrder(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec)

	food := confirmation("Food")
	require.NoError(t, d.Announce(context.Background(), food))
	require.NoError(t, d.Announce(context.Background(), food), "duplicate is ignored, not an error")
	require.NoError(t, d.Announce(context.Background(), confirmation("Medicine")))
	closeDispatcher(t, d)

	assert.Equal(t, []string{"Food", "Medicine"}, rec.labels())
	assert.Equal(t, DispatcherStats{Delivered: 2}, d.Stats())
}

func TestDispatcher_QueueFull(t *testing.T) {
	rec := &recorder{gate: make(chan struct{}), seen: make(chan struct{}, 4)}
	d := NewDispatcher(rec, WithQueueSize(1))

	require.NoError(t, d.Announce(context.Background(), confirmation("Food")))
	<-rec.seen // worker holds the first one
	require.NoError(t, d.Announce(context.Background(), confirmation("Medicine")))
	err := d.Announce(context.Background(), confirmation("Other"))
	assert.ErrorIs(t, err, ErrQueueFull)

	close(rec.gate)
	closeDispatcher(t, d)
	assert.Equal(t, []string{"Food", "Medicine"}, rec.labels())
	assert.Equal(t, uint64(1), d.Stats().Dropped)
}

func TestDispatcher_FailureIsCounted(t *testing.T) {
	rec := &recorder{err: errors.New("speaker unplugged")}
	d := NewDispatcher(rec)
	require.NoError(t, d.Announce(context.Background(), confirmation("Washroom")))
	closeDispatcher(t, d)

	assert.Equal(t, DispatcherStats{Failed: 1}, d.Stats())
}

func TestDispatcher_RejectsAfterClose(t *testing.T) {
	d := NewDispatcher(&recorder{})
	closeDispatcher(t, d)
	assert.ErrorIs(t, d.Announce(context.Background(), confirmation("Food")), ErrClosed)
	closeDispatcher(t, d)
}

func TestDispatcher_CloseTimeoutCancelsDelivery(t *testing.T) {
	blocked := pipeline.AnnounceFunc(func(ctx context.Context, c pipeline.Confirmation) error {
		<-ctx.Done()
		return ctx.Err()
	})
	d := NewDispatcher(blocked)
	require.NoError(t, d.Announce(context.Background(), confirmation("Food")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)
	assert.Equal(t, uint64(1), d.Stats().Failed)
}

func TestSpeech_SpeaksLabel(t *testing.T) {
	provider := tts.NewMock()
	var played *tts.AudioResult
	player := tts.PlayerFunc(func(ctx context.Context, a *tts.AudioResult) error {
		played = a
		return nil
	})

	s := NewSpeech(provider, player)
	require.NoError(t, s.Announce(context.Background(), confirmation("Medicine")))

	calls := provider.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Medicine", calls[0].Text)
	require.NotNil(t, played)
	assert.Equal(t, 8, played.CharCount)
}

func TestSpeech_Phrase(t *testing.T) {
	provider := tts.NewMock()
	s := NewSpeech(provider, tts.PlayerFunc(func(context.Context, *tts.AudioResult) error { return nil }),
		WithPhrase(func(sel selection.Selection) string { return "I need " + sel.Label }))
	require.NoError(t, s.Announce(context.Background(), confirmation("Food")))
	assert.Equal(t, "I need Food", provider.Calls()[0].Text)
}

func TestSpeech_SynthesisError(t *testing.T) {
	cause := errors.New("quota exceeded")
	s := NewSpeech(tts.WithError(cause), tts.PlayerFunc(func(context.Context, *tts.AudioResult) error {
		t.Error("nothing should be played")
		return nil
	}))
	err := s.Announce(context.Background(), confirmation("Food"))
	assert.ErrorIs(t, err, cause)
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, l.Announce(context.Background(), confirmation("Other")))
	assert.Contains(t, buf.String(), "label=Other")
}

func TestMulti_CallsEveryAnnouncer(t *testing.T) {
	first := &recorder{err: errors.New("first failed")}
	second := &recorder{}
	err := Multi{first, second}.Announce(context.Background(), confirmation("Food"))
	assert.ErrorContains(t, err, "first failed")
	assert.Equal(t, []string{"Food"}, second.labels())
}

func TestMulti_EarlierSinksDoNotWaitForSlowOnes(t *testing.T) {
	fast := &recorder{}
	slow := &recorder{gate: make(chan struct{}), seen: make(chan struct{}, 1)}

	done := make(chan error, 1)
	go func() { done <- Multi{fast, slow}.Announce(context.Background(), confirmation("Food")) }()

	select {
	case <-slow.seen:
	case <-time.After(time.Second):
		t.Fatal("slow announcer was never called")
	}
	assert.Equal(t, []string{"Food"}, fast.labels(), "quick sink delivered while playback is still running")

	close(slow.gate)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"Food"}, slow.labels())
}
