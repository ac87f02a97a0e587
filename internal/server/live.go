// ABOUTME: Live capture plumbing for the /live endpoint
// ABOUTME: Adapts a WebSocket connection to the recorder's writer interface
package server

import (
	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/capture"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/writer"
	"github.com/gorilla/websocket"
)

// liveTone is the /live source when no capture device is configured
var liveTone = capture.NewTone(true)

// connWriter sends recorder output over an accepted connection
type connWriter struct {
	ws   *websocket.Conn
	stat *Conn
}

// Init announces the PCM format before any audio
func (w *connWriter) Init(cfg writer.Config) error {
	return sendHeader(w.ws, audio.StreamHeader{
		Name:       "live",
		Size:       -1,
		Type:       cfg.Type,
		SampleRate: cfg.Format.SampleRate,
		Channels:   cfg.Format.Channels,
		BitDepth:   cfg.Format.BitDepth,
	})
}

func (w *connWriter) Write(p []byte) (int, error) {
	if err := w.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	w.stat.bytes.Add(int64(len(p)))
	return len(p), nil
}

// Destroy leaves closing to the handler, which owns the connection
func (w *connWriter) Destroy() error {
	return nil
}
