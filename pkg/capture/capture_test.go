package capture

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-gaze/pkg/frame"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"file path", func(c *Config) { c.Device = "/tmp/clip.mp4" }, false},
		{"native resolution", func(c *Config) { c.Width, c.Height, c.Framerate = 0, 0, 0 }, false},
		{"missing device", func(c *Config) { c.Device = "" }, true},
		{"negative width", func(c *Config) { c.Width = -1 }, true},
		{"framerate too high", func(c *Config) { c.Framerate = 1000 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOpenDevice_RejectsInvalidConfig(t *testing.T) {
	_, err := OpenDevice(Config{}, nil)
	assert.Error(t, err)
}

func TestFunc(t *testing.T) {
	var calls int
	src := Func(func(ctx context.Context) (frame.Frame, error) {
		calls++
		return frame.Frame{Width: 1, Height: 1}, nil
	})
	f, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.Width)
	assert.Equal(t, 1, calls)
	assert.NoError(t, src.Close())
}

func TestMirrored(t *testing.T) {
	src := Mirrored(Func(func(ctx context.Context) (frame.Frame, error) {
		return frame.Frame{Data: []byte{1, 2, 3, 4, 5, 6}, Width: 2, Height: 1, Format: frame.FormatBGR}, nil
	}))
	f, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5, 6, 1, 2, 3}, f.Data)

	bad := Mirrored(Func(func(ctx context.Context) (frame.Frame, error) {
		return frame.Frame{Data: []byte{1}, Width: 2, Height: 1, Format: frame.FormatBGR}, nil
	}))
	_, err = bad.Read(context.Background())
	assert.ErrorIs(t, err, ErrReadFailed)

	failing := Mirrored(Func(func(ctx context.Context) (frame.Frame, error) {
		return frame.Frame{}, frame.ErrClosed
	}))
	_, err = failing.Read(context.Background())
	assert.ErrorIs(t, err, frame.ErrClosed)
	assert.NoError(t, src.Close())
}

func TestPickProducer(t *testing.T) {
	list := []producer{
		{ID: "a", Meta: map[string]string{"name": "front"}},
		{ID: "b", Meta: map[string]string{"name": "reachymini"}},
	}

	id, err := pickProducer(list, "reachymini")
	require.NoError(t, err)
	assert.Equal(t, "b", id)

	_, err = pickProducer(list, "")
	assert.Error(t, err, "ambiguous without a name")

	id, err = pickProducer(list[:1], "")
	require.NoError(t, err)
	assert.Equal(t, "a", id)

	_, err = pickProducer(nil, "reachymini")
	assert.Error(t, err)
}

func TestAppendNAL_SingleUnit(t *testing.T) {
	var (
		buf    bytes.Buffer
		depack codecs.H264Packet
	)
	payload := []byte{0x65, 0x88, 0x84, 0x00} // IDR slice
	require.NoError(t, appendNAL(&buf, &depack, &rtp.Packet{Payload: payload}))
	assert.Equal(t, append([]byte{0, 0, 0, 1}, payload...), buf.Bytes())
}

func TestDecodeH264_ShortInput(t *testing.T) {
	_, err := decodeH264(time.Second, []byte{0, 0, 0, 1})
	assert.Error(t, err)
}

// signallingServer answers welcome and list, then holds the socket open.
func signallingServer(t *testing.T, producers []producer) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		if err := ws.WriteJSON(signalMsg{Type: "welcome", PeerID: "peer-1"}); err != nil {
			return
		}
		var req signalMsg
		if err := ws.ReadJSON(&req); err != nil || req.Type != "list" {
			return
		}
		if err := ws.WriteJSON(signalMsg{Type: "list", Producers: producers}); err != nil {
			return
		}
		for {
			if err := ws.ReadJSON(&req); err != nil {
				return
			}
		}
	}))
}

func TestDialWebRTC_ProducerMissing(t *testing.T) {
	srv := signallingServer(t, []producer{{ID: "x", Meta: map[string]string{"name": "other"}}})
	defer srv.Close()

	cfg := DefaultWebRTCConfig("ws" + strings.TrimPrefix(srv.URL, "http"))
	cfg.ProducerName = "reachymini"
	cfg.ConnectTimeout = 2 * time.Second

	_, err := DialWebRTC(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `producer "reachymini" not found`)
}

func TestDialWebRTC_RequiresURL(t *testing.T) {
	_, err := DialWebRTC(context.Background(), WebRTCConfig{}, nil)
	assert.Error(t, err)
}

func TestWebRTC_ReadAfterClose(t *testing.T) {
	c := &WebRTC{notify: make(chan struct{}, 1), ready: make(chan struct{}), done: make(chan struct{})}
	require.NoError(t, c.Close())
	_, err := c.Read(context.Background())
	assert.ErrorIs(t, err, frame.ErrClosed)
}
