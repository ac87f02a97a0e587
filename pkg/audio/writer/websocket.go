// ABOUTME: WebSocket writer streaming recordings to a stream server
// ABOUTME: Sends a JSON stream header and then one binary message per write
package writer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/gorilla/websocket"
)

const closeTimeout = 2 * time.Second

// WebSocket sends encoded bytes to a ws:// endpoint
type WebSocket struct {
	conn    *websocket.Conn
	written int64
}

// NewWebSocket creates a WebSocket writer
func NewWebSocket() Writer {
	return &WebSocket{}
}

// Init dials the endpoint and announces the stream
func (w *WebSocket) Init(cfg Config) error {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.Timeout}
	conn, _, err := dialer.Dial(cfg.Target, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	name := cfg.Target
	if u, err := url.Parse(cfg.Target); err == nil {
		name = path.Base(u.Path)
	}
	header, err := json.Marshal(audio.StreamHeader{
		Name:       name,
		Size:       -1,
		Type:       cfg.Type,
		SampleRate: cfg.Format.SampleRate,
		Channels:   cfg.Format.Channels,
		BitDepth:   cfg.Format.BitDepth,
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to encode stream header: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, header); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send stream header: %w", err)
	}

	w.conn = conn
	return nil
}

// Write sends p as one binary message
func (w *WebSocket) Write(p []byte) (int, error) {
	if w.conn == nil {
		return 0, ErrNotOpen
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, fmt.Errorf("failed to send audio: %w", err)
	}
	w.written += int64(len(p))
	return len(p), nil
}

// Destroy closes the stream and waits for the server to acknowledge
func (w *WebSocket) Destroy() error {
	if w.conn == nil {
		return nil
	}
	conn := w.conn
	w.conn = nil

	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeTimeout))
	if err == nil {
		conn.SetReadDeadline(time.Now().Add(closeTimeout))
		for {
			if _, _, rerr := conn.ReadMessage(); rerr != nil {
				if !websocket.IsCloseError(rerr, websocket.CloseNormalClosure) {
					slog.Debug("websocket writer close not acknowledged", "err", rerr)
				}
				break
			}
		}
	}
	closeErr := conn.Close()
	if err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return closeErr
}
