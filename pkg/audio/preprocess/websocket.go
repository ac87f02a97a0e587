// ABOUTME: WebSocket preprocessor reading media from a stream server
// ABOUTME: Resolves mdns:// targets through discovery before dialing
package preprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audioserver/internal/discovery"
	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/gorilla/websocket"
)

const defaultResolveTimeout = 3 * time.Second

// WebSocket reads binary messages from a stream server
type WebSocket struct {
	mu          sync.Mutex
	conn        *websocket.Conn
	interrupted bool

	header  audio.StreamHeader
	pending []byte
	typ     string
}

// NewWebSocket creates a WebSocket preprocessor
func NewWebSocket() Preprocessor {
	return &WebSocket{header: audio.StreamHeader{Size: -1}}
}

// Init dials the server and reads the stream header
func (p *WebSocket) Init(cfg Config) error {
	target, err := resolveTarget(cfg)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.Timeout}
	conn, _, err := dialer.Dial(target, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	if cfg.Timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(cfg.Timeout))
	}
	msgType, data, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to read stream header: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	switch msgType {
	case websocket.TextMessage:
		if err := json.Unmarshal(data, &p.header); err != nil {
			conn.Close()
			return fmt.Errorf("failed to parse stream header: %w", err)
		}
	case websocket.BinaryMessage:
		// Headerless stream
		p.pending = data
	}

	p.mu.Lock()
	p.conn = conn
	if p.interrupted {
		conn.SetReadDeadline(time.Now())
	}
	p.mu.Unlock()

	p.typ = p.header.Type
	if p.typ == "" {
		if u, err := url.Parse(target); err == nil {
			p.typ = TypeFromPath(u.Path)
		}
	}

	slog.Debug("websocket source opened", "uri", target, "size", p.header.Size, "type", p.typ)
	return nil
}

func resolveTarget(cfg Config) (string, error) {
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return "", fmt.Errorf("failed to parse target: %w", err)
	}
	if u.Scheme != "mdns" {
		return cfg.URI, nil
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	server, err := discovery.Resolve(context.Background(), u.Host, timeout)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", u.Host, err)
	}

	resolved := url.URL{Scheme: "ws", Host: server.Addr(), Path: u.Path, RawQuery: u.RawQuery}
	return resolved.String(), nil
}

// Read returns media bytes; a normal close from the server is io.EOF
func (p *WebSocket) Read(b []byte) (int, error) {
	if p.conn == nil {
		return 0, io.ErrClosedPipe
	}

	for len(p.pending) == 0 {
		msgType, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("failed to read stream: %w", err)
		}
		if msgType == websocket.BinaryMessage {
			p.pending = data
		}
	}

	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Seek is not supported on a live stream
func (p *WebSocket) Seek(int64) error {
	return ErrSeekUnsupported
}

// Size returns the size announced by the server, or -1
func (p *WebSocket) Size() int64 { return p.header.Size }

// Type returns the announced type or the path extension hint
func (p *WebSocket) Type() string { return p.typ }

// Format returns the PCM format announced in the stream header
func (p *WebSocket) Format() audio.Format {
	return audio.Format{
		Codec:      p.header.Type,
		SampleRate: p.header.SampleRate,
		Channels:   p.header.Channels,
		BitDepth:   p.header.BitDepth,
	}
}

// Interrupt fails a blocked Read
func (p *WebSocket) Interrupt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interrupted = true
	if p.conn != nil {
		p.conn.SetReadDeadline(time.Now())
	}
}

// Destroy closes the connection
func (p *WebSocket) Destroy() {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.mu.Unlock()

	if conn == nil {
		return
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	conn.Close()
}
