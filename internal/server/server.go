// ABOUTME: WebSocket stream server for audioserver players and recorders
// ABOUTME: Serves files for playback, stores uploaded recordings and streams a live capture
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/audioserver/internal/discovery"
	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/preprocess"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/writer"
	"github.com/Resonate-Protocol/audioserver/pkg/audioserver"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// streamChunk is the payload size of one binary message
	streamChunk = 16 * 1024

	closeTimeout = 2 * time.Second
)

// ErrBadPath is returned for names that escape the server root
var ErrBadPath = errors.New("invalid media path")

// Config holds server configuration
type Config struct {
	Port       int
	Name       string
	Root       string
	EnableMDNS bool
	UseTUI     bool

	// Live configures the recorder behind /live (default: a 440Hz tone)
	Live audioserver.RecorderConfig

	// LiveFormat is the PCM format of /live (default: 48kHz stereo 16-bit)
	LiveFormat audio.Format
}

// Server serves media over WebSocket
type Server struct {
	config   Config
	serverID string
	log      *slog.Logger

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	conns   map[string]*Conn
	connsMu sync.RWMutex

	mdnsManager *discovery.Manager
	tui         *ServerTUI

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// Conn describes one active transfer
type Conn struct {
	ID      string
	Kind    string
	Name    string
	Remote  string
	Started time.Time

	bytes atomic.Int64
}

// Bytes returns the bytes moved so far
func (c *Conn) Bytes() int64 {
	return c.bytes.Load()
}

// New creates a server instance
func New(config Config) *Server {
	if config.Root == "" {
		config.Root = "."
	}
	if !config.LiveFormat.Valid() {
		config.LiveFormat = audio.Format{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16}
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		log:      slog.Default().With("server", config.Name),
		mux:      http.NewServeMux(),
		conns:    make(map[string]*Conn),
		stopChan: make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// Local network service; browsers are accepted but logged
			if origin := r.Header.Get("Origin"); origin != "" {
				s.log.Warn("accepting websocket from origin", "origin", origin)
			}
			return true
		},
	}

	s.mux.HandleFunc("GET /stream/{name...}", s.handleStream)
	s.mux.HandleFunc("GET /record/{name...}", s.handleRecord)
	s.mux.HandleFunc("GET /live", s.handleLive)
	return s
}

// Handler returns the HTTP handler serving every endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the server until Stop, a TUI quit or a listener error
func (s *Server) Start() error {
	if s.config.UseTUI {
		s.tui = NewServerTUI()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(s.config.Name, s.config.Port, s.config.Root); err != nil {
				s.log.Error("tui failed", "err", err)
			}
		}()
		s.wg.Add(1)
		go s.statusLoop()
	}

	s.log.Info("server starting", "id", s.serverID, "root", s.config.Root)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			s.log.Warn("failed to start mdns advertisement", "err", err)
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()
	s.log.Info("websocket server listening", "addr", addr)

	var tuiQuit <-chan struct{}
	if s.tui != nil {
		tuiQuit = s.tui.QuitChan()
	}

	var serverErr error
	select {
	case <-s.stopChan:
		s.log.Info("server shutting down")
	case <-tuiQuit:
		s.log.Info("tui quit requested, shutting down")
	case err := <-errChan:
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	s.Stop()
	if s.tui != nil {
		s.tui.Stop()
	}
	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Warn("http server shutdown error", "err", err)
	}

	s.wg.Wait()
	s.log.Info("server stopped")

	if serverErr != nil {
		return fmt.Errorf("http server failed: %w", serverErr)
	}
	return nil
}

// Stop asks Start to return
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Conns returns the active transfers
func (s *Server) Conns() []*Conn {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()

	out := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

func (s *Server) accepting() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return !s.isShutdown
}

func (s *Server) track(kind, name string, r *http.Request) *Conn {
	c := &Conn{
		ID:      uuid.New().String(),
		Kind:    kind,
		Name:    name,
		Remote:  r.RemoteAddr,
		Started: time.Now(),
	}
	s.connsMu.Lock()
	s.conns[c.ID] = c
	s.connsMu.Unlock()
	return c
}

func (s *Server) untrack(c *Conn) {
	s.connsMu.Lock()
	delete(s.conns, c.ID)
	s.connsMu.Unlock()
}

// resolvePath maps a request name into the server root
func (s *Server) resolvePath(name string) (string, error) {
	if name == "" {
		return "", ErrBadPath
	}
	clean := filepath.Clean("/" + name)
	if clean == "/" {
		return "", ErrBadPath
	}
	return filepath.Join(s.config.Root, filepath.FromSlash(clean)), nil
}

// handleStream sends a file as a stream header followed by binary messages
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.accepting() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	name := r.PathValue("name")
	path, err := s.resolvePath(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade error", "err", err)
		return
	}
	defer conn.Close()

	c := s.track("stream", name, r)
	defer s.untrack(c)
	log := s.log.With("conn", c.ID, "name", name)
	log.Info("stream started", "remote", r.RemoteAddr, "size", info.Size())

	header := audio.StreamHeader{
		Name: filepath.Base(path),
		Size: info.Size(),
		Type: preprocess.TypeFromPath(path),
	}
	if err := sendHeader(conn, header); err != nil {
		log.Warn("failed to send stream header", "err", err)
		return
	}

	// The client only sends control frames; reading surfaces its close
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	buf := make([]byte, streamChunk)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if werr := conn.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				log.Info("stream ended by client", "err", werr)
				return
			}
			c.bytes.Add(int64(n))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error("failed to read media", "err", err)
			closeConn(conn, websocket.CloseInternalServerErr, gone)
			return
		}
	}

	closeConn(conn, websocket.CloseNormalClosure, gone)
	log.Info("stream complete", "bytes", c.Bytes())
}

// handleRecord stores an uploaded recording under the server root
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	if !s.accepting() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	name := r.PathValue("name")
	path, err := s.resolvePath(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		http.Error(w, "cannot create directory", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade error", "err", err)
		return
	}
	defer conn.Close()

	c := s.track("record", name, r)
	defer s.untrack(c)
	log := s.log.With("conn", c.ID, "name", name)

	msgType, data, err := conn.ReadMessage()
	if err != nil {
		log.Warn("failed to read recording header", "err", err)
		return
	}

	header := audio.StreamHeader{Type: preprocess.TypeFromPath(path)}
	var pending []byte
	if msgType == websocket.TextMessage {
		if err := json.Unmarshal(data, &header); err != nil {
			log.Warn("failed to parse recording header", "err", err)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "bad header"),
				time.Now().Add(closeTimeout))
			return
		}
	} else {
		pending = data
	}

	out := writer.NewFile()
	err = out.Init(writer.Config{
		Target: path,
		Type:   header.Type,
		Format: audio.Format{SampleRate: header.SampleRate, Channels: header.Channels, BitDepth: header.BitDepth},
	})
	if err != nil {
		log.Error("failed to open recording", "err", err)
		return
	}
	log.Info("recording started", "remote", r.RemoteAddr, "type", header.Type)

	write := func(p []byte) bool {
		if _, err := out.Write(p); err != nil {
			log.Error("failed to store recording", "err", err)
			return false
		}
		c.bytes.Add(int64(len(p)))
		return true
	}

	ok := len(pending) == 0 || write(pending)
	for ok {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("recording connection lost", "err", err)
			}
			break
		}
		if msgType == websocket.BinaryMessage {
			ok = write(data)
		}
	}

	if err := out.Destroy(); err != nil {
		log.Error("failed to finalize recording", "err", err)
		return
	}
	log.Info("recording stored", "path", path, "bytes", c.Bytes())
}

// handleLive streams a capture device as headerless PCM until the client leaves
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if !s.accepting() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade error", "err", err)
		return
	}
	defer conn.Close()

	c := s.track("live", "live", r)
	defer s.untrack(c)
	log := s.log.With("conn", c.ID)

	cfg := s.config.Live
	if cfg.Device == nil {
		cfg.Device = liveTone
	}
	rec, err := audioserver.NewRecorder(cfg)
	if err != nil {
		log.Error("failed to create live recorder", "err", err)
		return
	}
	defer rec.Destroy()

	err = rec.Record(audioserver.RecordConfig{
		Target: audioserver.Borrowed("live"),
		Writer: &connWriter{ws: conn, stat: c},
		Type:   "pcm",
		Format: s.config.LiveFormat,
	})
	if err != nil {
		log.Error("failed to start live capture", "err", err)
		return
	}
	log.Info("live stream started", "remote", r.RemoteAddr)

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-gone:
	case <-s.stopChan:
	}
	rec.Stop()
	closeConn(conn, websocket.CloseGoingAway, gone)
	log.Info("live stream ended", "bytes", c.Bytes())
}

func sendHeader(conn *websocket.Conn, header audio.StreamHeader) error {
	data, err := json.Marshal(header)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// closeConn sends a close frame and waits for the reader to see the reply
func closeConn(conn *websocket.Conn, code int, gone <-chan struct{}) {
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""), time.Now().Add(closeTimeout))
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) && !errors.Is(err, net.ErrClosed) {
		return
	}
	select {
	case <-gone:
	case <-time.After(closeTimeout):
	}
}
