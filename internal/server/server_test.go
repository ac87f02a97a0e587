// ABOUTME: Tests for the WebSocket stream server
// ABOUTME: Drives the endpoints with the package's own preprocessor, writer and player
package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/output"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/preprocess"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/wav"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/writer"
	"github.com/Resonate-Protocol/audioserver/pkg/audioserver"
)

func makeWAV(rate, frames int) []byte {
	pcm := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(i%1000)))
	}
	h := wav.Init(rate, 16, 1)
	h.Complete(uint32(len(pcm)))
	return append(h.Marshal(), pcm...)
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, string) {
	t.Helper()

	root := t.TempDir()
	srv := New(Config{Name: "test", Root: root})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts, root
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func waitNoConns(t *testing.T, srv *Server) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for len(srv.Conns()) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected connections to finish, %d left", len(srv.Conns()))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStreamFile(t *testing.T) {
	_, ts, root := newTestServer(t)

	data := makeWAV(16000, 16000)
	if err := os.WriteFile(filepath.Join(root, "tone.wav"), data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	src := preprocess.NewWebSocket()
	if err := src.Init(preprocess.Config{URI: wsURL(ts, "/stream/tone.wav"), Timeout: 2 * time.Second}); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer src.Destroy()

	if src.Size() != int64(len(data)) {
		t.Errorf("expected size %d, got %d", len(data), src.Size())
	}
	if src.Type() != "wav" {
		t.Errorf("expected wav, got %s", src.Type())
	}

	got, err := io.ReadAll(readerFunc(src.Read))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("expected %d identical bytes, got %d", len(data), len(got))
	}
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

func TestStreamMissingFile(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/stream/missing.wav")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestResolvePath(t *testing.T) {
	srv := New(Config{Root: "/srv/media"})

	tests := []struct {
		name     string
		expected string
		wantErr  bool
	}{
		{"track.wav", "/srv/media/track.wav", false},
		{"albums/a/track.mp3", "/srv/media/albums/a/track.mp3", false},
		{"../etc/passwd", "/srv/media/etc/passwd", false},
		{"a/../../b.wav", "/srv/media/b.wav", false},
		{"", "", true},
		{"..", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := srv.resolvePath(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrBadPath) {
					t.Errorf("expected ErrBadPath, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != filepath.FromSlash(tt.expected) {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestRecordUpload(t *testing.T) {
	srv, ts, root := newTestServer(t)

	format := audio.Format{SampleRate: 16000, Channels: 1, BitDepth: 16}
	w := writer.NewWebSocket()
	err := w.Init(writer.Config{
		Target:  wsURL(ts, "/record/takes/first.wav"),
		Type:    "wav",
		Format:  format,
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	// Streamed WAV output starts with a zero-size header
	header := wav.Init(16000, 16, 1)
	if _, err := w.Write(header.Marshal()); err != nil {
		t.Fatalf("write header: %v", err)
	}
	pcm := make([]byte, 3200)
	for i := 0; i < 2; i++ {
		if _, err := w.Write(pcm[i*1600 : (i+1)*1600]); err != nil {
			t.Fatalf("write pcm: %v", err)
		}
	}
	if err := w.Destroy(); err != nil {
		t.Fatalf("destroy: %v", err)
	}
	waitNoConns(t, srv)

	data, err := os.ReadFile(filepath.Join(root, "takes", "first.wav"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) != wav.HeaderSize+3200 {
		t.Fatalf("expected %d bytes, got %d", wav.HeaderSize+3200, len(data))
	}
	h, err := wav.Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.Subchunk2Size != 3200 || h.ChunkSize != 36+3200 {
		t.Errorf("expected back-patched sizes, got %d/%d", h.Subchunk2Size, h.ChunkSize)
	}
}

func TestPlayerStreamsFromServer(t *testing.T) {
	_, ts, root := newTestServer(t)

	if err := os.WriteFile(filepath.Join(root, "one.wav"), makeWAV(16000, 16000), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	stopped := make(chan struct{}, 1)
	p, err := audioserver.NewPlayer(audioserver.PlayerConfig{
		Device: output.NewDiscard(false),
		Listener: func(_ *audioserver.Player, info audioserver.PlayInfo) {
			if info == audioserver.InfoStop {
				stopped <- struct{}{}
			}
		},
	})
	if err != nil {
		t.Fatalf("player: %v", err)
	}
	defer p.Destroy()

	err = p.Play(audioserver.PlayConfig{
		Target: audioserver.Borrowed(wsURL(ts, "/stream/one.wav")),
		Freq:   audioserver.FreqNet,
	})
	if err != nil {
		t.Fatalf("play: %v", err)
	}

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for playback to end")
	}
	if p.State() != audioserver.StateIdle {
		t.Errorf("expected idle, got %s", p.State())
	}
	if p.TotalTime() != time.Second {
		t.Errorf("expected 1s, got %v", p.TotalTime())
	}
	if p.FileLength() != 32044 {
		t.Errorf("expected announced size 32044, got %d", p.FileLength())
	}
}

func TestLiveStream(t *testing.T) {
	srv, ts, _ := newTestServer(t)

	decoded := make(chan struct{}, 1)
	p, err := audioserver.NewPlayer(audioserver.PlayerConfig{
		Device: output.NewDiscard(false),
		Listener: func(_ *audioserver.Player, info audioserver.PlayInfo) {
			if info == audioserver.InfoDecode {
				decoded <- struct{}{}
			}
		},
	})
	if err != nil {
		t.Fatalf("player: %v", err)
	}
	defer p.Destroy()

	if err := p.Play(audioserver.PlayConfig{Target: audioserver.Borrowed(wsURL(ts, "/live"))}); err != nil {
		t.Fatalf("play: %v", err)
	}
	select {
	case <-decoded:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the live format")
	}

	f := p.Format()
	if f.SampleRate != 48000 || f.Channels != 2 || f.BitDepth != 16 {
		t.Errorf("expected the announced live format, got %+v", f)
	}
	if p.TotalTime() != 0 {
		t.Errorf("expected unknown duration, got %v", p.TotalTime())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := p.WaitIdle(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	waitNoConns(t, srv)
}

func TestStatusSnapshot(t *testing.T) {
	srv := New(Config{Name: "snap", Port: 9000, Root: "/media"})
	req := httptest.NewRequest(http.MethodGet, "/stream/a.wav", nil)

	c := srv.track("stream", "a.wav", req)
	c.bytes.Add(2048)

	status := srv.status()
	if status.Name != "snap" || status.Port != 9000 {
		t.Errorf("unexpected status %+v", status)
	}
	if len(status.Transfers) != 1 || status.Transfers[0].Bytes != 2048 {
		t.Fatalf("expected one transfer of 2048 bytes, got %+v", status.Transfers)
	}

	srv.untrack(c)
	if len(srv.status().Transfers) != 0 {
		t.Error("expected no transfers after untrack")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n        int64
		expected string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{3 << 20, "3.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.expected {
			t.Errorf("expected %s, got %s", tt.expected, got)
		}
	}
}
