// ABOUTME: Encoder plug-in interface for the record pipeline
// ABOUTME: Encoders pull PCM, push encoded bytes and flush trailing frames at end of input
package encode

import (
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
)

var (
	// ErrInput means the capture side failed
	ErrInput = errors.New("encoder input error")

	// ErrOutput means the writer rejected encoded data
	ErrOutput = errors.New("encoder output error")

	// ErrEncode means the codec refused the PCM it was given
	ErrEncode = errors.New("encode error")
)

// Config wires an encoder into its stage
type Config struct {
	// Input reads PCM with io.Reader semantics; io.EOF ends the take
	Input func(p []byte) (int, error)

	// Output writes encoded bytes, blocking until the writer stage accepts them
	Output func(p []byte) (int, error)

	// Format describes the PCM delivered by Input
	Format audio.Format
}

// Encoder turns PCM into encoded bytes one unit of work at a time
type Encoder interface {
	// Type returns the registry key, e.g. "wav"
	Type() string

	// Init binds the encoder to its callbacks
	Init(cfg Config) error

	// Process encodes one unit. It returns nil while input remains. At end
	// of input it flushes trailing frames and returns an error wrapping
	// ErrInput and io.EOF; other failures wrap ErrInput, ErrOutput or ErrEncode.
	Process() error

	// Destroy releases encoder resources
	Destroy()
}

// IsEnd reports whether err is the clean end of an encode session
func IsEnd(err error) bool {
	return errors.Is(err, ErrInput) && errors.Is(err, io.EOF)
}

// base carries the plumbing every encoder shares
type base struct {
	cfg Config
}

func (b *base) init(cfg Config) error {
	if cfg.Input == nil || cfg.Output == nil {
		return fmt.Errorf("encoder config requires input and output callbacks")
	}
	if !cfg.Format.Valid() {
		return fmt.Errorf("unsupported pcm format: %dHz %dch %d-bit",
			cfg.Format.SampleRate, cfg.Format.Channels, cfg.Format.BitDepth)
	}
	b.cfg = cfg
	return nil
}

// read fills p from Input, tolerating a short final read
func (b *base) read(p []byte) (int, error) {
	n, err := io.ReadFull(readerFunc(b.cfg.Input), p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return n, err
}

func (b *base) write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if _, err := b.cfg.Output(p); err != nil {
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	return nil
}

func inputErr(err error) error {
	return fmt.Errorf("%w: %w", ErrInput, err)
}

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }
