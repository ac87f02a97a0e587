// ABOUTME: Decoder plug-in interface and the callbacks wiring it into a pipeline
// ABOUTME: Decoders pull encoded bytes, push PCM and announce the format once
package decode

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
)

var (
	// ErrInput means the upstream source was exhausted or failed
	ErrInput = errors.New("decoder input error")

	// ErrOutput means the downstream stage rejected decoded data
	ErrOutput = errors.New("decoder output error")

	// ErrDecode means the encoded payload is malformed
	ErrDecode = errors.New("decode error")
)

// StreamInfo is announced once the output format is known
type StreamInfo struct {
	Format   audio.Format
	Duration time.Duration // zero when unknown
}

// Config wires a decoder into its stage
type Config struct {
	// Input reads raw encoded bytes with io.Reader semantics
	Input func(p []byte) (int, error)

	// Output writes PCM, blocking until the downstream stage accepts it
	Output func(p []byte) (int, error)

	// Post is called exactly once, when the output format is first known
	Post func(info StreamInfo) error

	// StartTime skips decoded audio before this position
	StartTime time.Duration

	// Format describes headerless input (pcm)
	Format audio.Format

	// Size is the encoded source length in bytes, zero when unknown
	Size int64
}

// Decoder turns encoded bytes into PCM one unit of work at a time
type Decoder interface {
	// Type returns the registry key, e.g. "wav"
	Type() string

	// Init binds the decoder to its callbacks
	Init(cfg Config) error

	// Process decodes one unit. It returns nil while data remains and a
	// terminal error wrapping ErrInput, ErrOutput or ErrDecode otherwise.
	// A clean end of input wraps io.EOF.
	Process() error

	// PostDone reports whether the format has been announced
	PostDone() bool

	// Destroy releases decoder resources
	Destroy()
}

// Seeker is implemented by decoders that can restart at a byte offset
type Seeker interface {
	// SeekOffset maps a playing position to a source byte offset
	SeekOffset(pos time.Duration) (int64, error)

	// Reposition resynchronises after the source moved to offset
	Reposition(offset int64)
}

// SupportsSeek reports whether d can serve seek requests
func SupportsSeek(d Decoder) bool {
	_, ok := d.(Seeker)
	return ok
}

// IsEnd reports whether err is the clean end of a decode session
func IsEnd(err error) bool {
	return errors.Is(err, ErrInput) && errors.Is(err, io.EOF)
}

// base carries the plumbing every decoder shares
type base struct {
	cfg    Config
	in     *inputReader
	posted bool
	skip   int64 // PCM bytes still to drop for StartTime
}

func (b *base) init(cfg Config) error {
	if cfg.Input == nil || cfg.Output == nil || cfg.Post == nil {
		return fmt.Errorf("decoder config requires input, output and post callbacks")
	}
	b.cfg = cfg
	b.in = &inputReader{fn: cfg.Input}
	b.posted = false
	return nil
}

// post announces the format and arms the StartTime skip
func (b *base) post(info StreamInfo) error {
	if b.posted {
		return nil
	}
	b.posted = true
	if b.cfg.StartTime > 0 {
		b.skip = info.Format.Bytes(b.cfg.StartTime)
	}
	if err := b.cfg.Post(info); err != nil {
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	return nil
}

// write drops skipped bytes and pushes the rest downstream
func (b *base) write(pcm []byte) error {
	if b.skip > 0 {
		drop := min(b.skip, int64(len(pcm)))
		b.skip -= drop
		pcm = pcm[drop:]
	}
	if len(pcm) == 0 {
		return nil
	}
	if _, err := b.cfg.Output(pcm); err != nil {
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	return nil
}

// fail classifies an error raised while pulling or parsing input
func (b *base) fail(err error) error {
	if b.in.err != nil {
		return fmt.Errorf("%w: %w", ErrInput, b.in.err)
	}
	if err == io.EOF {
		return fmt.Errorf("%w: %w", ErrInput, io.EOF)
	}
	return fmt.Errorf("%w: %w", ErrDecode, err)
}

func (b *base) PostDone() bool {
	return b.posted
}

// inputReader adapts the Input callback to io.Reader and remembers
// failures that are not a clean end of data
type inputReader struct {
	fn  func([]byte) (int, error)
	err error
}

func (r *inputReader) Read(p []byte) (int, error) {
	n, err := r.fn(p)
	if err != nil && err != io.EOF {
		r.err = err
	}
	return n, err
}
