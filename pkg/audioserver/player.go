// ABOUTME: Player state machine driving preprocess, decode and playback stages
// ABOUTME: Public control surface: play, pause, resume, stop, seek and device release
package audioserver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/decode"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/output"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/preprocess"
	"github.com/google/uuid"
)

const (
	defaultChunkSize        = 4096
	defaultPreprocessBuffer = 16
	defaultDecodeBuffer     = 64 * 1024
	defaultDeviceHold       = 5 * time.Second
	defaultSourceTimeout    = 10 * time.Second

	// netBufferFactor scales buffers for network sources
	netBufferFactor = 4
)

// Freq selects buffering for local or network sources
type Freq int

const (
	FreqLocal Freq = iota
	FreqNet
)

// PlayerConfig holds player configuration
type PlayerConfig struct {
	// Name identifies the player in logs
	Name string

	// PreprocessBuffer is the raw chunk queue capacity (default: 16)
	PreprocessBuffer int

	// DecodeBuffer is the PCM stream size in bytes (default: 64KiB)
	DecodeBuffer int

	// ChunkSize is the raw read size in bytes (default: 4096)
	ChunkSize int

	// Registry resolves decoder types (default: decode.DefaultRegistry())
	Registry *decode.Registry

	// Device creates playback devices (default: output.NewOto)
	Device output.Factory

	// Card selects the playback device
	Card string

	// ResampleRate fixes the device rate; 0 plays at the stream rate
	ResampleRate int

	// DeviceHold keeps the device open between sessions (default: 5s)
	DeviceHold time.Duration

	// Listener receives notifications in order on a dedicated goroutine
	Listener func(p *Player, info PlayInfo)

	// OnError is called after a session fails
	OnError func(error)
}

// PlayConfig describes one playback session
type PlayConfig struct {
	Target Target

	// Preprocessor overrides selection by target scheme
	Preprocessor preprocess.Preprocessor

	// Type overrides the decoder type hint from the source
	Type string

	// SampleRate, Bits and Channels describe headerless pcm input
	SampleRate int
	Bits       int
	Channels   int

	// StartTime starts playback at an offset into the stream
	StartTime time.Duration

	Freq         Freq
	EnableReverb bool
	EnableMix    bool

	// InfoOnly decodes the header, reports InfoDecode and stops without audio
	InfoOnly bool
}

// Player plays one session at a time through a held playback device
type Player struct {
	id     string
	config PlayerConfig
	log    *slog.Logger

	// ctl serializes control operations
	ctl sync.Mutex

	mu         sync.Mutex
	state      State
	sess       *session
	changed    chan struct{}
	lastPos    time.Duration
	totalTime  time.Duration
	format     audio.Format
	fileLength int64
	destroyed  bool

	notify *notifier

	// playback stage
	openCh   chan *openRequest
	devCtl   chan deviceRequest
	quit     chan struct{}
	quitDone chan struct{}

	devMu      sync.Mutex
	dev        output.Device
	devCfg     output.Config
	devAborted bool
	volume     int
	muted      bool
}

// NewPlayer creates a player and starts its playback stage
func NewPlayer(config PlayerConfig) (*Player, error) {
	if config.PreprocessBuffer <= 0 {
		config.PreprocessBuffer = defaultPreprocessBuffer
	}
	if config.DecodeBuffer <= 0 {
		config.DecodeBuffer = defaultDecodeBuffer
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaultChunkSize
	}
	if config.Registry == nil {
		config.Registry = decode.DefaultRegistry()
	}
	if config.Device == nil {
		config.Device = output.NewOto
	}
	if config.DeviceHold <= 0 {
		config.DeviceHold = defaultDeviceHold
	}
	if config.ResampleRate < 0 {
		return nil, fmt.Errorf("invalid resample rate: %d", config.ResampleRate)
	}

	id := uuid.New().String()
	if config.Name == "" {
		config.Name = "player-" + id[:8]
	}

	p := &Player{
		id:       id,
		config:   config,
		log:      slog.Default().With("player uuid", id, "name", config.Name),
		state:    StateIdle,
		changed:  make(chan struct{}),
		notify:   newNotifier(),
		openCh:   make(chan *openRequest),
		devCtl:   make(chan deviceRequest),
		quit:     make(chan struct{}),
		quitDone: make(chan struct{}),
		volume:   100,
	}
	go p.playbackLoop()

	p.log.Debug("player created")
	return p, nil
}

// ID returns the player's unique id
func (p *Player) ID() string {
	return p.id
}

// Play starts a session, stopping the current one first
func (p *Player) Play(cfg PlayConfig) error {
	p.ctl.Lock()
	defer p.ctl.Unlock()

	if cfg.Target.URI() == "" && cfg.Preprocessor == nil {
		cfg.Target.done()
		return ErrNoTarget
	}

	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		cfg.Target.done()
		return ErrDestroyed
	}
	prev := p.sess
	p.mu.Unlock()

	if prev != nil {
		p.log.Debug("stopping previous session before play")
		p.stopSession(prev)
	}

	pre := cfg.Preprocessor
	if pre == nil {
		var err error
		pre, err = preprocess.ForTarget(cfg.Target.URI())
		if err != nil {
			cfg.Target.done()
			return fmt.Errorf("failed to select source: %w", err)
		}
	}

	s, err := newSession(p, cfg, pre)
	if err != nil {
		cfg.Target.done()
		return err
	}

	p.mu.Lock()
	p.sess = s
	p.totalTime = 0
	p.format = audio.Format{}
	p.fileLength = -1
	p.lastPos = cfg.StartTime
	p.setStateLocked(StateRunning)
	p.mu.Unlock()

	p.log.Info("play", "target", cfg.Target.URI(), "session", s.id)
	s.start()
	return nil
}

// Pause stops feeding the device; upstream stages fill their buffers and block
func (p *Player) Pause() error {
	p.ctl.Lock()
	defer p.ctl.Unlock()

	p.mu.Lock()
	switch p.state {
	case StatePaused:
		p.mu.Unlock()
		return nil
	case StateRunning:
	default:
		p.mu.Unlock()
		return ErrNotRunning
	}
	s := p.sess
	p.setStateLocked(StatePaused)
	p.mu.Unlock()

	s.gate.pause()
	p.post(InfoPaused)
	return nil
}

// Resume continues a paused session; it is a no-op otherwise
func (p *Player) Resume() error {
	p.ctl.Lock()
	defer p.ctl.Unlock()

	p.mu.Lock()
	if p.state != StatePaused {
		p.mu.Unlock()
		return nil
	}
	s := p.sess
	p.setStateLocked(StateRunning)
	p.mu.Unlock()

	s.gate.resume()
	p.post(InfoResumed)
	return nil
}

// Stop ends the current session and waits for its stages to exit
func (p *Player) Stop() error {
	p.ctl.Lock()
	defer p.ctl.Unlock()

	p.mu.Lock()
	s := p.sess
	p.mu.Unlock()

	if s == nil {
		return nil
	}
	p.stopSession(s)
	return nil
}

func (p *Player) stopSession(s *session) {
	s.stopping.Store(true)
	s.abort()
	<-s.finished
}

// Seek moves playback to pos. The source and decoder must both support it.
func (p *Player) Seek(pos time.Duration) error {
	p.ctl.Lock()
	defer p.ctl.Unlock()

	p.mu.Lock()
	s := p.sess
	active := p.state.active()
	p.mu.Unlock()

	if s == nil || !active {
		return ErrNotRunning
	}
	return s.seek(pos)
}

// WaitIdle blocks until no session is active
func (p *Player) WaitIdle(ctx context.Context) error {
	for {
		p.mu.Lock()
		idle := p.sess == nil
		changed := p.changed
		p.mu.Unlock()

		if idle {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// DeviceStop releases the held playback device. wait drains it first.
func (p *Player) DeviceStop(wait bool) error {
	p.mu.Lock()
	busy := p.sess != nil
	destroyed := p.destroyed
	p.mu.Unlock()

	if destroyed {
		return ErrDestroyed
	}
	if busy {
		return ErrDeviceBusy
	}

	req := deviceRequest{wait: wait, done: make(chan error, 1)}
	select {
	case p.devCtl <- req:
		return <-req.done
	case <-p.quitDone:
		return ErrDestroyed
	}
}

// Close stops any session and releases the playback device
func (p *Player) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	err := p.DeviceStop(false)
	if err == ErrDestroyed {
		return nil
	}
	return err
}

// Destroy closes the player for good.
// It waits for pending notifications, so it must not be called from a Listener.
func (p *Player) Destroy() {
	p.ctl.Lock()
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		p.ctl.Unlock()
		return
	}
	p.destroyed = true
	s := p.sess
	p.mu.Unlock()

	if s != nil {
		p.stopSession(s)
	}
	close(p.quit)
	<-p.quitDone
	p.ctl.Unlock()

	p.notify.close()
	p.log.Debug("player destroyed")
}

// State returns the lifecycle state
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// CurrentTime returns the playing position
func (p *Player) CurrentTime() time.Duration {
	p.mu.Lock()
	s := p.sess
	last := p.lastPos
	p.mu.Unlock()

	if s == nil {
		return last
	}
	return s.position()
}

// TotalTime returns the stream duration, zero when unknown
func (p *Player) TotalTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalTime
}

// SetTotalTime overrides the stream duration, e.g. from external metadata
func (p *Player) SetTotalTime(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totalTime = d
}

// FileLength returns the source size in bytes, or -1 when unknown
func (p *Player) FileLength() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fileLength
}

// Format returns the format of the current or last stream
func (p *Player) Format() audio.Format {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.format
}

// SetVolume sets the software volume (0-100) of current and future devices
func (p *Player) SetVolume(level int) {
	p.devMu.Lock()
	defer p.devMu.Unlock()
	p.volume = max(0, min(100, level))
	p.applyVolumeLocked()
}

// SetMuted mutes or unmutes current and future devices
func (p *Player) SetMuted(muted bool) {
	p.devMu.Lock()
	defer p.devMu.Unlock()
	p.muted = muted
	p.applyVolumeLocked()
}

// Volume returns the volume level and mute state
func (p *Player) Volume() (int, bool) {
	p.devMu.Lock()
	defer p.devMu.Unlock()
	return p.volume, p.muted
}

// setStateLocked also wakes WaitIdle callers
func (p *Player) setStateLocked(state State) {
	if p.state != state {
		p.log.Debug("state change", "from", p.state, "to", state)
		p.state = state
	}
	close(p.changed)
	p.changed = make(chan struct{})
}

func (p *Player) post(info PlayInfo) {
	if p.config.Listener == nil {
		return
	}
	listener := p.config.Listener
	p.notify.post(func() { listener(p, info) })
}

func (p *Player) postError(err error) {
	if p.config.OnError == nil {
		return
	}
	onError := p.config.OnError
	p.notify.post(func() { onError(err) })
}

// finish records the end of s; called once per session after its stages exit
func (p *Player) finish(s *session, err error) {
	p.mu.Lock()
	if p.sess == s {
		p.lastPos = s.position()
		p.sess = nil
		switch {
		case s.stopping.Load():
			p.setStateLocked(StateStopped)
		case err != nil:
			p.setStateLocked(StateError)
		default:
			p.setStateLocked(StateIdle)
		}
	}
	p.mu.Unlock()

	if err != nil && !s.stopping.Load() {
		p.log.Error("session failed", "session", s.id, "err", err)
	} else {
		p.log.Info("session ended", "session", s.id, "stopped", s.stopping.Load())
	}

	p.post(InfoStop)
	if err != nil && !s.stopping.Load() {
		p.postError(err)
	}
}
