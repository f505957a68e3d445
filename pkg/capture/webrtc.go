package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-gaze/pkg/frame"
)

// WebRTCConfig configures a remote camera reached through GStreamer
// webrtcsink signalling.
type WebRTCConfig struct {
	SignallingURL  string        // e.g. ws://camera.local:8443
	ProducerName   string        // meta.name of the producer to attach to
	DecodeInterval time.Duration // Minimum time between H264 decodes
	DecodeTimeout  time.Duration // Per-decode ffmpeg deadline
	ConnectTimeout time.Duration
}

// DefaultWebRTCConfig returns settings for a GStreamer signalling server at url.
func DefaultWebRTCConfig(url string) WebRTCConfig {
	return WebRTCConfig{
		SignallingURL:  url,
		DecodeInterval: 50 * time.Millisecond,
		DecodeTimeout:  200 * time.Millisecond,
		ConnectTimeout: 15 * time.Second,
	}
}

// signalMsg covers every message exchanged with the signalling server.
type signalMsg struct {
	Type      string     `json:"type"`
	PeerID    string     `json:"peerId,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
	Producers []producer `json:"producers,omitempty"`
	SDP       *sdpMsg    `json:"sdp,omitempty"`
	ICE       *iceMsg    `json:"ice,omitempty"`
}

type producer struct {
	ID   string            `json:"id"`
	Meta map[string]string `json:"meta"`
}

type sdpMsg struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type iceMsg struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
}

// pickProducer returns the producer id whose meta name matches, or the only
// producer when name is empty.
func pickProducer(list []producer, name string) (string, error) {
	if name == "" && len(list) == 1 {
		return list[0].ID, nil
	}
	for _, p := range list {
		if p.Meta["name"] == name {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("capture: producer %q not found among %d producers", name, len(list))
}

// WebRTC receives an H264 track from a remote camera and decodes it into
// JPEG frames with ffmpeg.
type WebRTC struct {
	cfg    WebRTCConfig
	logger *slog.Logger

	ws   *websocket.Conn
	wsMu sync.Mutex
	pc   *webrtc.PeerConnection

	mu      sync.Mutex
	session string
	latest  []byte
	notify  chan struct{}

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

// DialWebRTC connects to the signalling server, negotiates a receive-only
// video session and waits until the first track arrives.
func DialWebRTC(ctx context.Context, cfg WebRTCConfig, logger *slog.Logger) (*WebRTC, error) {
	if cfg.SignallingURL == "" {
		return nil, errors.New("capture: signalling url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &WebRTC{
		cfg:    cfg,
		logger: logger.With("component", "capture.webrtc", "url", cfg.SignallingURL),
		notify: make(chan struct{}, 1),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := c.connect(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *WebRTC) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, c.cfg.SignallingURL, nil)
	if err != nil {
		return fmt.Errorf("capture: signalling connect: %w", err)
	}
	c.ws = ws

	deadline, _ := ctx.Deadline()
	welcome, err := c.readMsg(deadline)
	if err != nil {
		return fmt.Errorf("capture: waiting for welcome: %w", err)
	}
	if welcome.Type != "welcome" {
		return fmt.Errorf("capture: expected welcome, got %q", welcome.Type)
	}

	if err := c.send(signalMsg{Type: "list"}); err != nil {
		return err
	}
	list, err := c.readMsg(deadline)
	if err != nil {
		return fmt.Errorf("capture: listing producers: %w", err)
	}
	producerID, err := pickProducer(list.Producers, c.cfg.ProducerName)
	if err != nil {
		return err
	}

	if err := c.newPeerConnection(); err != nil {
		return fmt.Errorf("capture: peer connection: %w", err)
	}
	if err := c.send(signalMsg{Type: "startSession", PeerID: producerID}); err != nil {
		return err
	}
	go c.signalling()

	select {
	case <-c.ready:
		c.logger.Info("remote camera connected", "producer", producerID)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("capture: waiting for video track: %w", ctx.Err())
	}
}

func (c *WebRTC) sessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *WebRTC) readMsg(deadline time.Time) (signalMsg, error) {
	var msg signalMsg
	c.ws.SetReadDeadline(deadline)
	defer c.ws.SetReadDeadline(time.Time{})
	err := c.ws.ReadJSON(&msg)
	return msg, err
}

func (c *WebRTC) send(msg signalMsg) error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	return c.ws.WriteJSON(msg)
}

func (c *WebRTC) newPeerConnection() error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}
	c.pc = pc

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.logger.Info("track received", "kind", track.Kind(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go c.receive(track)
		}
	})
	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		session := c.sessionID()
		if cand == nil || session == "" {
			return
		}
		ci := cand.ToJSON()
		if err := c.send(signalMsg{
			Type:      "peer",
			SessionID: session,
			ICE:       &iceMsg{Candidate: ci.Candidate, SDPMid: ci.SDPMid, SDPMLineIndex: ci.SDPMLineIndex},
		}); err != nil {
			c.logger.Debug("send ice candidate failed", "error", err)
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		c.logger.Debug("connection state", "state", state.String())
	})
	return nil
}

func (c *WebRTC) signalling() {
	for {
		var msg signalMsg
		if err := c.ws.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("signalling stopped", "error", err)
			}
			return
		}
		switch msg.Type {
		case "sessionStarted":
			c.mu.Lock()
			c.session = msg.SessionID
			c.mu.Unlock()
		case "peer":
			if err := c.handlePeer(msg); err != nil {
				c.logger.Warn("peer message failed", "error", err)
			}
		case "endSession":
			c.logger.Info("session ended by remote")
			return
		}
	}
}

func (c *WebRTC) handlePeer(msg signalMsg) error {
	if msg.SDP != nil && msg.SDP.Type == "offer" {
		if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: msg.SDP.SDP}); err != nil {
			return fmt.Errorf("set remote description: %w", err)
		}
		answer, err := c.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		if err := c.pc.SetLocalDescription(answer); err != nil {
			return fmt.Errorf("set local description: %w", err)
		}
		if err := c.send(signalMsg{
			Type:      "peer",
			SessionID: c.sessionID(),
			SDP:       &sdpMsg{Type: answer.Type.String(), SDP: answer.SDP},
		}); err != nil {
			return err
		}
	}
	if msg.ICE != nil {
		if err := c.pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     msg.ICE.Candidate,
			SDPMid:        msg.ICE.SDPMid,
			SDPMLineIndex: msg.ICE.SDPMLineIndex,
		}); err != nil {
			return fmt.Errorf("add ice candidate: %w", err)
		}
	}
	return nil
}

// receive depacketizes RTP into an Annex-B H264 stream and decodes it
// periodically.
func (c *WebRTC) receive(track *webrtc.TrackRemote) {
	c.readyOnce.Do(func() { close(c.ready) })

	var (
		stream     bytes.Buffer
		depack     codecs.H264Packet
		lastDecode time.Time
	)
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		if err := appendNAL(&stream, &depack, pkt); err != nil {
			continue
		}
		if time.Since(lastDecode) < c.cfg.DecodeInterval {
			continue
		}
		lastDecode = time.Now()
		img, err := decodeH264(c.cfg.DecodeTimeout, stream.Bytes())
		stream.Reset()
		if err != nil {
			c.logger.Debug("h264 decode failed", "error", err)
			continue
		}
		c.store(img)
	}
}

func appendNAL(dst *bytes.Buffer, depack *codecs.H264Packet, pkt *rtp.Packet) error {
	nal, err := depack.Unmarshal(pkt.Payload)
	if err != nil {
		return err
	}
	dst.Write(nal)
	return nil
}

// decodeH264 runs ffmpeg over an Annex-B stream and returns the first frame
// as JPEG.
func decodeH264(timeout time.Duration, stream []byte) ([]byte, error) {
	if len(stream) < 100 {
		return nil, errors.New("not enough data")
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-loglevel", "error",
		"-f", "h264", "-i", "pipe:0",
		"-vframes", "1",
		"-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "3",
		"pipe:1",
	)
	var out bytes.Buffer
	cmd.Stdin = bytes.NewReader(stream)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}
	if out.Len() == 0 {
		return nil, errors.New("ffmpeg produced no frame")
	}
	return out.Bytes(), nil
}

func (c *WebRTC) store(img []byte) {
	c.mu.Lock()
	c.latest = img
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// Read blocks until a newly decoded frame is available.
func (c *WebRTC) Read(ctx context.Context) (frame.Frame, error) {
	select {
	case <-c.notify:
	case <-c.done:
		return frame.Frame{}, frame.ErrClosed
	case <-ctx.Done():
		return frame.Frame{}, ctx.Err()
	}

	c.mu.Lock()
	img := c.latest
	c.mu.Unlock()

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return frame.Frame{}, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	return frame.Frame{
		Data:       img,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Format:     frame.FormatJPEG,
		CapturedAt: time.Now(),
	}, nil
}

// Close tears down the peer connection and signalling socket.
func (c *WebRTC) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		close(c.done)
		if c.pc != nil {
			errs = append(errs, c.pc.Close())
		}
		if c.ws != nil {
			errs = append(errs, c.ws.Close())
		}
	})
	return errors.Join(errs...)
}
