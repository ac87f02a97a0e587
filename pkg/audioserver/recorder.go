// ABOUTME: Recorder state machine driving capture, encode and write stages
// ABOUTME: A stopped take flushes the encoder and finalizes the writer before Stop returns
package audioserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/capture"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/encode"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/queue"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/stream"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/writer"
	"github.com/google/uuid"
)

const (
	defaultCaptureBuffer = 50
	defaultEncodeBuffer  = 64 * 1024
	defaultFramePeriod   = 20 * time.Millisecond
	writeChunk           = 4096
)

// DefaultRecordFormat is used when a record request carries no format
var DefaultRecordFormat = audio.Format{Codec: "pcm", SampleRate: 16000, Channels: 1, BitDepth: 16}

// RecorderConfig holds recorder configuration
type RecorderConfig struct {
	// Name identifies the recorder in logs
	Name string

	// Registry resolves encoder types (default: encode.DefaultRegistry())
	Registry *encode.Registry

	// Device creates capture devices (default: capture.NewMalgo)
	Device capture.Factory

	// Card selects the capture device
	Card string

	// CaptureBuffer is the captured frame queue capacity (default: 50)
	CaptureBuffer int

	// EncodeBuffer is the encoded stream size in bytes (default: 64KiB)
	EncodeBuffer int

	// FramePeriod is the audio length of one captured frame (default: 20ms)
	FramePeriod time.Duration

	// Listener receives notifications in order on a dedicated goroutine
	Listener func(r *Recorder, info RecordInfo)

	// OnError is called after a take fails
	OnError func(error)
}

// RecordConfig describes one take
type RecordConfig struct {
	Target Target

	// Writer overrides selection by target scheme
	Writer writer.Writer

	// Type is the encoder type (default: "wav")
	Type string

	// Format is the captured PCM format (default: DefaultRecordFormat)
	Format audio.Format

	// Duration ends the take automatically; zero records until Stop
	Duration time.Duration
}

// Recorder records one take at a time
type Recorder struct {
	id     string
	config RecorderConfig
	log    *slog.Logger

	ctl sync.Mutex

	mu        sync.Mutex
	state     State
	take      *take
	changed   chan struct{}
	lastTime  time.Duration
	destroyed bool

	notify *notifier
}

// NewRecorder creates a recorder
func NewRecorder(config RecorderConfig) (*Recorder, error) {
	if config.Registry == nil {
		config.Registry = encode.DefaultRegistry()
	}
	if config.Device == nil {
		config.Device = capture.NewMalgo
	}
	if config.CaptureBuffer <= 0 {
		config.CaptureBuffer = defaultCaptureBuffer
	}
	if config.EncodeBuffer <= 0 {
		config.EncodeBuffer = defaultEncodeBuffer
	}
	if config.FramePeriod <= 0 {
		config.FramePeriod = defaultFramePeriod
	}

	id := uuid.New().String()
	if config.Name == "" {
		config.Name = "recorder-" + id[:8]
	}

	return &Recorder{
		id:      id,
		config:  config,
		log:     slog.Default().With("recorder uuid", id, "name", config.Name),
		state:   StateIdle,
		changed: make(chan struct{}),
		notify:  newNotifier(),
	}, nil
}

// Record starts a take, stopping the current one first
func (r *Recorder) Record(cfg RecordConfig) error {
	r.ctl.Lock()
	defer r.ctl.Unlock()

	if cfg.Target.URI() == "" && cfg.Writer == nil {
		cfg.Target.done()
		return ErrNoTarget
	}
	if cfg.Type == "" {
		cfg.Type = "wav"
	}
	if cfg.Format.SampleRate == 0 && cfg.Format.Channels == 0 && cfg.Format.BitDepth == 0 {
		cfg.Format = DefaultRecordFormat
	}
	if !cfg.Format.Valid() {
		cfg.Target.done()
		return fmt.Errorf("unsupported record format: %dHz %dch %d-bit",
			cfg.Format.SampleRate, cfg.Format.Channels, cfg.Format.BitDepth)
	}

	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		cfg.Target.done()
		return ErrDestroyed
	}
	prev := r.take
	r.mu.Unlock()

	if prev != nil {
		prev.stop()
	}

	t, err := newTake(r, cfg)
	if err != nil {
		cfg.Target.done()
		return err
	}

	r.mu.Lock()
	r.take = t
	r.lastTime = 0
	r.setStateLocked(StateRunning)
	r.mu.Unlock()

	r.log.Info("record", "target", cfg.Target.URI(), "type", cfg.Type, "take", t.id)
	t.start()
	return nil
}

// Pause stops encoding; capture keeps filling its queue and then drops frames
func (r *Recorder) Pause() error {
	r.ctl.Lock()
	defer r.ctl.Unlock()

	r.mu.Lock()
	switch r.state {
	case StatePaused:
		r.mu.Unlock()
		return nil
	case StateRunning:
	default:
		r.mu.Unlock()
		return ErrNotRunning
	}
	t := r.take
	r.setStateLocked(StatePaused)
	r.mu.Unlock()

	t.gate.pause()
	r.post(RecordInfoPaused)
	return nil
}

// Resume continues a paused take; it is a no-op otherwise
func (r *Recorder) Resume() error {
	r.ctl.Lock()
	defer r.ctl.Unlock()

	r.mu.Lock()
	if r.state != StatePaused {
		r.mu.Unlock()
		return nil
	}
	t := r.take
	r.setStateLocked(StateRunning)
	r.mu.Unlock()

	t.gate.resume()
	r.post(RecordInfoResumed)
	return nil
}

// Stop ends the take; it returns once the output is finalized
func (r *Recorder) Stop() error {
	r.ctl.Lock()
	defer r.ctl.Unlock()

	r.mu.Lock()
	t := r.take
	r.mu.Unlock()

	if t == nil {
		return nil
	}
	t.stop()
	return nil
}

// WaitIdle blocks until no take is active
func (r *Recorder) WaitIdle(ctx context.Context) error {
	for {
		r.mu.Lock()
		idle := r.take == nil
		changed := r.changed
		r.mu.Unlock()

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

// Destroy stops any take and closes the recorder for good.
// It waits for pending notifications, so it must not be called from a Listener.
func (r *Recorder) Destroy() {
	r.ctl.Lock()
	r.mu.Lock()
	if r.destroyed {
		r.mu.Unlock()
		r.ctl.Unlock()
		return
	}
	r.destroyed = true
	t := r.take
	r.mu.Unlock()

	if t != nil {
		t.stop()
	}
	r.ctl.Unlock()
	r.notify.close()
}

// State returns the lifecycle state
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// CurrentTime returns the length of audio encoded so far
func (r *Recorder) CurrentTime() time.Duration {
	r.mu.Lock()
	t := r.take
	last := r.lastTime
	r.mu.Unlock()

	if t == nil {
		return last
	}
	return t.position()
}

func (r *Recorder) setStateLocked(state State) {
	if r.state != state {
		r.log.Debug("state change", "from", r.state, "to", state)
		r.state = state
	}
	close(r.changed)
	r.changed = make(chan struct{})
}

func (r *Recorder) post(info RecordInfo) {
	if r.config.Listener == nil {
		return
	}
	listener := r.config.Listener
	r.notify.post(func() { listener(r, info) })
}

func (r *Recorder) finish(t *take, err error) {
	r.mu.Lock()
	if r.take == t {
		r.lastTime = t.position()
		r.take = nil
		switch {
		case t.stopping.Load():
			r.setStateLocked(StateStopped)
		case err != nil:
			r.setStateLocked(StateError)
		default:
			r.setStateLocked(StateIdle)
		}
	}
	r.mu.Unlock()

	failed := err != nil && !t.stopping.Load()
	if failed {
		r.log.Error("take failed", "take", t.id, "err", err)
	} else {
		r.log.Info("take ended", "take", t.id, "length", t.position(), "dropped", t.dropped.Load())
	}

	r.post(RecordInfoStop)
	if failed && r.config.OnError != nil {
		onError := r.config.OnError
		r.notify.post(func() { onError(err) })
	}
}

// take is one recording session
type take struct {
	id  string
	r   *Recorder
	cfg RecordConfig
	log *slog.Logger

	dev    capture.Device
	enc    encode.Encoder
	w      writer.Writer
	frames *queue.Queue[[]byte]
	out    *stream.Stream
	gate   *gate

	consumed atomic.Int64
	dropped  atomic.Int64

	// encode stage only
	leftover []byte

	stopping  atomic.Bool
	stopReq   chan struct{}
	stopOnce  sync.Once
	abortOnce sync.Once
	aborted   chan struct{}

	errMu sync.Mutex
	err   error

	wg       sync.WaitGroup
	finished chan struct{}
}

func newTake(r *Recorder, cfg RecordConfig) (*take, error) {
	enc, err := r.config.Registry.New(cfg.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to select encoder: %w", err)
	}

	w := cfg.Writer
	if w == nil {
		w, err = writer.ForTarget(cfg.Target.URI())
		if err != nil {
			return nil, fmt.Errorf("failed to select writer: %w", err)
		}
	}

	dev, err := r.config.Device(r.config.Card)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture device: %w", err)
	}

	frames, err := queue.New[[]byte](r.config.CaptureBuffer)
	if err != nil {
		return nil, fmt.Errorf("failed to create frame queue: %w", err)
	}
	out, err := stream.New(r.config.EncodeBuffer)
	if err != nil {
		return nil, fmt.Errorf("failed to create encode stream: %w", err)
	}

	id := uuid.New().String()
	return &take{
		id:       id,
		r:        r,
		cfg:      cfg,
		log:      r.log.With("take", id),
		dev:      dev,
		enc:      enc,
		w:        w,
		frames:   frames,
		out:      out,
		gate:     newGate(),
		stopReq:  make(chan struct{}),
		aborted:  make(chan struct{}),
		finished: make(chan struct{}),
	}, nil
}

func (t *take) start() {
	t.wg.Add(2)
	go t.captureStage()
	go t.writeStage()
	go t.supervise()
}

// stop asks capture to end and waits for every stage to drain
func (t *take) stop() {
	t.stopping.Store(true)
	t.stopOnce.Do(func() { close(t.stopReq) })
	t.gate.resume()
	<-t.finished
}

func (t *take) supervise() {
	t.wg.Wait()

	t.errMu.Lock()
	err := t.err
	t.errMu.Unlock()

	t.r.finish(t, err)
	t.cfg.Target.done()
	close(t.finished)
}

func (t *take) fail(err error) {
	t.errMu.Lock()
	if t.err == nil {
		t.err = err
	}
	t.errMu.Unlock()
	t.abort()
}

func (t *take) abort() {
	t.abortOnce.Do(func() {
		close(t.aborted)
		t.frames.Stop()
		t.out.Stop()
		if err := t.dev.Abort(); err != nil {
			t.log.Warn("failed to abort capture device", "err", err)
		}
	})
}

func (t *take) isAborted() bool {
	select {
	case <-t.aborted:
		return true
	default:
		return false
	}
}

func (t *take) position() time.Duration {
	return t.cfg.Format.Duration(t.consumed.Load())
}

// captureStage reads frames from the device into the frame queue
func (t *take) captureStage() {
	defer t.wg.Done()
	defer t.dev.Close()

	f := t.cfg.Format
	err := t.dev.Open(capture.Config{
		SampleRate: f.SampleRate,
		Bits:       f.BitDepth,
		Channels:   f.Channels,
		FrameSize:  int(f.Bytes(t.r.config.FramePeriod)),
		Card:       t.r.config.Card,
	})
	if err != nil {
		t.fail(fmt.Errorf("failed to open capture device: %w", err))
		return
	}
	if err := t.dev.Start(); err != nil {
		t.fail(fmt.Errorf("failed to start capture device: %w", err))
		return
	}

	frameBytes := f.Bytes(t.r.config.FramePeriod)
	if frameBytes <= 0 {
		frameBytes = int64(f.FrameSize())
	}
	var limit int64
	if t.cfg.Duration > 0 {
		limit = f.Bytes(t.cfg.Duration)
	}

	var captured int64
	stopped := false
	stopDevice := func() {
		if stopped {
			return
		}
		stopped = true
		if err := t.dev.Stop(); err != nil {
			t.log.Warn("failed to stop capture device", "err", err)
		}
	}

	for {
		if t.isAborted() {
			return
		}
		select {
		case <-t.stopReq:
			stopDevice()
		default:
		}
		if limit > 0 && captured >= limit {
			stopDevice()
			break
		}

		size := frameBytes
		if limit > 0 {
			size = min(size, limit-captured)
		}
		buf := make([]byte, size)
		n, err := t.dev.Read(buf)
		if n > 0 {
			captured += int64(n)
			if t.gate.isPaused() && t.frames.IsFull() {
				t.dropped.Add(int64(n))
			} else if t.frames.Send(buf[:n]) != nil {
				return
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !t.isAborted() {
				t.fail(fmt.Errorf("failed to read capture device: %w", err))
			}
			return
		}
	}

	t.log.Debug("capture complete", "bytes", captured)
	t.frames.Finish()
}

// writeStage opens the writer, starts encoding and drains encoded bytes
func (t *take) writeStage() {
	defer t.wg.Done()

	err := t.w.Init(writer.Config{
		Target:  t.cfg.Target.URI(),
		Type:    t.enc.Type(),
		Format:  t.cfg.Format,
		Timeout: defaultSourceTimeout,
	})
	if err != nil {
		t.fail(fmt.Errorf("failed to open writer: %w", err))
		return
	}
	t.r.post(RecordInfoWriter)

	t.wg.Add(1)
	go t.encodeStage()

	buf := make([]byte, writeChunk)
	for {
		n, err := t.out.Read(buf)
		if n > 0 {
			if _, werr := t.w.Write(buf[:n]); werr != nil {
				t.fail(fmt.Errorf("failed to write output: %w", werr))
				break
			}
		}
		if err != nil {
			break
		}
	}

	if err := t.w.Destroy(); err != nil {
		t.fail(fmt.Errorf("failed to finalize output: %w", err))
	}
}

func (t *take) encodeStage() {
	defer t.wg.Done()
	defer t.enc.Destroy()

	err := t.enc.Init(encode.Config{
		Input:  t.input,
		Output: t.out.Write,
		Format: t.cfg.Format,
	})
	if err != nil {
		t.fail(fmt.Errorf("failed to init encoder: %w", err))
		return
	}
	t.r.post(RecordInfoEncode)

	for {
		if !t.gate.wait(t.aborted) {
			return
		}
		err := t.enc.Process()
		if err == nil {
			continue
		}
		if encode.IsEnd(err) {
			t.log.Debug("encode complete")
			t.out.Finish()
			return
		}
		if !t.isAborted() {
			t.fail(fmt.Errorf("failed to encode: %w", err))
		}
		return
	}
}

// input feeds the encoder from the frame queue
func (t *take) input(p []byte) (int, error) {
	for len(t.leftover) == 0 {
		frame, err := t.frames.Receive()
		if err != nil {
			return 0, err
		}
		t.leftover = frame
	}
	n := copy(p, t.leftover)
	t.leftover = t.leftover[n:]
	t.consumed.Add(int64(n))
	return n, nil
}
