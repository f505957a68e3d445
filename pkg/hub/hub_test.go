package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records writes and blocks reads until closed.
type fakeConn struct {
	mu     sync.Mutex
	writes [][]byte
	types  []int
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn { return &fakeConn{closed: make(chan struct{})} }

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *fakeConn) WriteMessage(t int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, t)
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return h, cancel
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	h, _ := startHub(t)
	conns := []*fakeConn{newFakeConn(), newFakeConn()}
	for _, conn := range conns {
		c := NewClient(h, conn)
		require.NotNil(t, c)
		go c.Run()
	}
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.BroadcastEvent("confirmation", map[string]string{"label": "Food"}))

	for _, conn := range conns {
		require.Eventually(t, func() bool { return len(conn.written()) == 1 }, time.Second, 5*time.Millisecond)
		var ev struct {
			Type string            `json:"type"`
			Data map[string]string `json:"data"`
		}
		require.NoError(t, json.Unmarshal(conn.written()[0], &ev))
		assert.Equal(t, "confirmation", ev.Type)
		assert.Equal(t, "Food", ev.Data["label"])
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	h, _ := startHub(t)
	conn := newFakeConn()
	c := NewClient(h, conn)
	go c.Run()
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_DropsSlowClient(t *testing.T) {
	h, _ := startHub(t)
	// Registered but never pumped, so its buffer fills up.
	slow := NewClient(h, newFakeConn())
	require.NotNil(t, slow)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < sendBuffer+1; i++ {
		h.broadcast <- NewBinaryMessage([]byte{byte(i)})
	}
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), h.Dropped())
}

func TestHub_StopClosesClients(t *testing.T) {
	h := New("stop", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	c := NewClient(h, newFakeConn())
	require.NotNil(t, c)
	cancel()
	<-h.Done()

	_, ok := <-c.send
	assert.False(t, ok, "send channel should be closed on stop")
	assert.Nil(t, NewClient(h, newFakeConn()), "stopped hub accepts no clients")
}
