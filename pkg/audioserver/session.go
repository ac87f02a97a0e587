// ABOUTME: One playback session: the preprocess and decode stages and their buffers
// ABOUTME: Stages talk through a chunk queue and a PCM stream; seeks use a marker handshake
package audioserver

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/decode"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/preprocess"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/queue"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/stream"
	"github.com/google/uuid"
)

// errProbeDone ends an InfoOnly session once the format is known
var errProbeDone = errors.New("probe complete")

// chunk is one raw read from the source. A marker is the first item after
// a source seek; eof and err end the input.
type chunk struct {
	data   []byte
	marker bool
	eof    bool
	err    error
}

type seekRequest struct {
	pos   time.Duration
	reply chan error
}

type session struct {
	id  string
	p   *Player
	cfg PlayConfig
	log *slog.Logger

	pre  preprocess.Preprocessor
	raw  *queue.Queue[chunk]
	pcm  *stream.Stream
	gate *gate

	mu     sync.Mutex
	dec    decode.Decoder
	format audio.Format
	base   time.Duration
	played int64
	// gen changes on every seek so reads from before it are not counted
	gen int

	seekReq chan seekRequest
	seekOff chan int64
	seeking atomic.Bool

	// decode stage only
	leftover []byte
	inputEnd error

	stopping  atomic.Bool
	handedOff atomic.Bool
	abortOnce sync.Once
	aborted   chan struct{}

	errMu sync.Mutex
	err   error

	wg           sync.WaitGroup
	decodeDone   chan struct{}
	playbackDone chan struct{}
	finished     chan struct{}
}

func newSession(p *Player, cfg PlayConfig, pre preprocess.Preprocessor) (*session, error) {
	rawCap := p.config.PreprocessBuffer
	pcmSize := p.config.DecodeBuffer
	if cfg.Freq == FreqNet {
		rawCap *= netBufferFactor
		pcmSize *= netBufferFactor
	}

	raw, err := queue.New[chunk](rawCap)
	if err != nil {
		return nil, fmt.Errorf("failed to create source queue: %w", err)
	}
	pcm, err := stream.New(pcmSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create pcm stream: %w", err)
	}

	id := uuid.New().String()
	return &session{
		id:           id,
		p:            p,
		cfg:          cfg,
		log:          p.log.With("session", id),
		pre:          pre,
		raw:          raw,
		pcm:          pcm,
		gate:         newGate(),
		base:         cfg.StartTime,
		seekReq:      make(chan seekRequest, 1),
		seekOff:      make(chan int64, 1),
		aborted:      make(chan struct{}),
		decodeDone:   make(chan struct{}),
		playbackDone: make(chan struct{}),
		finished:     make(chan struct{}),
	}, nil
}

func (s *session) start() {
	s.wg.Add(1)
	go s.preprocessStage()
	go s.supervise()
}

// supervise joins every stage and then publishes the outcome
func (s *session) supervise() {
	s.wg.Wait()
	if s.handedOff.Load() {
		<-s.playbackDone
	}

	s.errMu.Lock()
	err := s.err
	s.errMu.Unlock()

	s.p.finish(s, err)
	s.cfg.Target.done()
	close(s.finished)
}

// fail records the first stage error and tears the session down
func (s *session) fail(err error) {
	s.errMu.Lock()
	if s.err == nil && !s.stopping.Load() {
		s.err = err
	}
	s.errMu.Unlock()
	s.abort()
}

func (s *session) abort() {
	s.abortOnce.Do(func() {
		close(s.aborted)
		preprocess.Interrupt(s.pre)
		s.raw.Stop()
		s.pcm.Stop()
		if s.handedOff.Load() {
			s.p.abortDevice()
		}
	})
}

func (s *session) isAborted() bool {
	select {
	case <-s.aborted:
		return true
	default:
		return false
	}
}

func (s *session) position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base + s.format.Duration(s.played)
}

func (s *session) generation() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *session) advance(gen int, n int64) {
	s.mu.Lock()
	if s.gen == gen {
		s.played += n
	}
	s.mu.Unlock()
}

// preprocessStage opens the source, starts decoding and feeds raw chunks
func (s *session) preprocessStage() {
	defer s.wg.Done()
	defer s.pre.Destroy()

	uri := s.cfg.Target.URI()
	if err := s.pre.Init(preprocess.Config{URI: uri, Timeout: defaultSourceTimeout}); err != nil {
		s.fail(fmt.Errorf("failed to open source: %w", err))
		return
	}
	if s.isAborted() {
		return
	}
	s.p.setFileLength(s.pre.Size())
	s.p.post(InfoPreprocess)

	typ := s.cfg.Type
	if typ == "" {
		typ = s.pre.Type()
	}
	if typ == "" {
		typ = preprocess.TypeFromPath(uri)
	}
	dec, err := s.p.config.Registry.New(typ)
	if err != nil {
		s.fail(fmt.Errorf("failed to select decoder: %w", err))
		return
	}
	s.log.Debug("source open", "type", typ, "size", s.pre.Size())

	s.mu.Lock()
	s.dec = dec
	s.mu.Unlock()

	s.wg.Add(1)
	go s.decodeStage(dec)

	s.readSource()
}

func (s *session) readSource() {
	atEnd := false
	for {
		if atEnd {
			select {
			case off := <-s.seekOff:
				s.seekSource(off)
				atEnd = false
			case <-s.decodeDone:
				return
			case <-s.aborted:
				return
			}
			continue
		}

		select {
		case off := <-s.seekOff:
			s.seekSource(off)
			continue
		default:
		}

		buf := make([]byte, s.p.config.ChunkSize)
		n, err := s.pre.Read(buf)
		if n > 0 {
			if s.raw.Send(chunk{data: buf[:n]}) != nil {
				return
			}
		}
		switch {
		case err == io.EOF:
			if s.raw.Send(chunk{eof: true}) != nil {
				return
			}
			atEnd = true
		case err != nil:
			if s.isAborted() {
				return
			}
			if s.raw.Send(chunk{err: fmt.Errorf("failed to read source: %w", err)}) != nil {
				return
			}
			atEnd = true
		}
	}
}

// seekSource moves the source and replaces queued chunks with a marker
func (s *session) seekSource(off int64) {
	err := s.pre.Seek(off)
	for {
		if _, ok := s.raw.TryReceiveBack(); !ok {
			break
		}
	}
	s.raw.SendFront(chunk{marker: true, err: err})
}

func (s *session) decodeStage(dec decode.Decoder) {
	defer s.wg.Done()
	defer close(s.decodeDone)
	defer s.raw.Stop()
	defer dec.Destroy()

	size := s.pre.Size()
	if size < 0 {
		size = 0
	}
	err := dec.Init(decode.Config{
		Input:     s.input,
		Output:    s.output,
		Post:      s.post,
		StartTime: s.cfg.StartTime,
		Format:    s.pcmFormat(),
		Size:      size,
	})
	if err != nil {
		s.fail(fmt.Errorf("failed to init decoder: %w", err))
		return
	}

	for {
		select {
		case req := <-s.seekReq:
			s.handleSeek(dec, req)
		default:
		}

		err := dec.Process()
		if err == nil {
			continue
		}
		if decode.IsEnd(err) || errors.Is(err, errProbeDone) {
			s.log.Debug("decode complete")
			s.pcm.Finish()
			return
		}
		if s.isAborted() {
			return
		}
		s.fail(fmt.Errorf("failed to decode: %w", err))
		return
	}
}

// pcmFormat describes headerless input: the request wins over the source
func (s *session) pcmFormat() audio.Format {
	if s.cfg.SampleRate > 0 || s.cfg.Channels > 0 || s.cfg.Bits > 0 {
		return audio.Format{
			Codec:      "pcm",
			SampleRate: s.cfg.SampleRate,
			Channels:   s.cfg.Channels,
			BitDepth:   s.cfg.Bits,
		}
	}
	f := preprocess.FormatOf(s.pre)
	f.Codec = "pcm"
	return f
}

// input feeds the decoder from the chunk queue
func (s *session) input(p []byte) (int, error) {
	for len(s.leftover) == 0 {
		if s.inputEnd != nil {
			return 0, s.inputEnd
		}
		c, err := s.raw.Receive()
		if err != nil {
			return 0, err
		}
		switch {
		case c.marker:
		case c.eof:
			s.inputEnd = io.EOF
		case c.err != nil:
			s.inputEnd = c.err
		default:
			s.leftover = c.data
		}
	}
	n := copy(p, s.leftover)
	s.leftover = s.leftover[n:]
	return n, nil
}

// output hands PCM to playback; stale PCM is dropped while a seek is pending
func (s *session) output(p []byte) (int, error) {
	if s.seeking.Load() {
		return len(p), nil
	}
	return s.pcm.Write(p)
}

// post receives the stream format and opens the device through playback
func (s *session) post(info decode.StreamInfo) error {
	s.mu.Lock()
	s.format = info.Format
	s.mu.Unlock()
	s.p.setStreamInfo(info)
	s.log.Info("stream format", "format", info.Format, "duration", info.Duration)

	if s.cfg.InfoOnly {
		s.p.post(InfoDecode)
		return errProbeDone
	}

	req := &openRequest{s: s, format: info.Format, reply: make(chan error, 1)}
	select {
	case s.p.openCh <- req:
		s.handedOff.Store(true)
	case <-s.aborted:
		return audio.ErrAborted
	case <-s.p.quit:
		return ErrDestroyed
	}

	select {
	case err := <-req.reply:
		if err != nil {
			return fmt.Errorf("failed to open device: %w", err)
		}
	case <-s.aborted:
		return audio.ErrAborted
	}

	s.p.post(InfoDecode)
	return nil
}

// seek validates and forwards a seek to the decode stage, waiting for it
func (s *session) seek(pos time.Duration) error {
	s.mu.Lock()
	dec := s.dec
	s.mu.Unlock()

	if dec == nil {
		return ErrNotRunning
	}
	if !decode.SupportsSeek(dec) || !preprocess.Seekable(s.pre) {
		return ErrSeekUnsupported
	}
	if pos < 0 {
		pos = 0
	}

	req := seekRequest{pos: pos, reply: make(chan error, 1)}
	s.seeking.Store(true)
	select {
	case s.seekReq <- req:
	case <-s.decodeDone:
		s.seeking.Store(false)
		return ErrNotRunning
	case <-s.aborted:
		return ErrNotRunning
	}
	// Unblock a decoder waiting on a full stream
	s.pcm.Flush()

	select {
	case err := <-req.reply:
		return err
	case <-s.decodeDone:
		select {
		case err := <-req.reply:
			return err
		default:
		}
		s.seeking.Store(false)
		return ErrNotRunning
	case <-s.aborted:
		return ErrNotRunning
	}
}

// handleSeek runs on the decode stage between Process calls
func (s *session) handleSeek(dec decode.Decoder, req seekRequest) {
	seeker := dec.(decode.Seeker)

	off, err := seeker.SeekOffset(req.pos)
	if err != nil {
		s.seeking.Store(false)
		req.reply <- fmt.Errorf("failed to seek: %w", err)
		return
	}
	s.seekOff <- off

	for {
		c, err := s.raw.Receive()
		if err != nil {
			s.seeking.Store(false)
			req.reply <- ErrNotRunning
			return
		}
		if !c.marker {
			continue
		}
		if c.err != nil {
			s.seeking.Store(false)
			err := fmt.Errorf("failed to seek source: %w", c.err)
			req.reply <- err
			s.fail(err)
			return
		}
		break
	}

	seeker.Reposition(off)
	s.leftover = nil
	s.inputEnd = nil
	s.pcm.Flush()

	s.mu.Lock()
	s.base = req.pos
	s.played = 0
	s.gen++
	s.mu.Unlock()

	s.seeking.Store(false)
	s.log.Debug("seek", "pos", req.pos, "offset", off)
	req.reply <- nil
}
