// ABOUTME: Oto-based playback device
// ABOUTME: Streams PCM through a pipe into a persistent oto player with software volume
package output

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process
var (
	otoMu         sync.Mutex
	otoCtx        *oto.Context
	otoSampleRate int
	otoChannels   int
)

func sharedOtoContext(sampleRate, channels int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoSampleRate != sampleRate || otoChannels != channels {
			return nil, fmt.Errorf("oto context already running at %dHz/%dch, cannot switch to %dHz/%dch",
				otoSampleRate, otoChannels, sampleRate, channels)
		}
		return otoCtx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	otoCtx = ctx
	otoSampleRate = sampleRate
	otoChannels = channels
	return ctx, nil
}

// Oto plays audio through the ebitengine/oto library
type Oto struct {
	volume

	mu         sync.Mutex
	cfg        Config
	ctx        *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
}

// NewOto creates an oto device; oto always uses the system default card
func NewOto(card string) (Device, error) {
	if card != "" {
		slog.Warn("oto ignores card selection", "card", card)
	}
	return &Oto{volume: volume{level: 100}}, nil
}

// Open initializes the shared oto context for the format
func (o *Oto) Open(cfg Config) error {
	if cfg.Bits != 16 && cfg.Bits != 24 && cfg.Bits != 32 {
		return fmt.Errorf("unsupported bit depth: %d (supported: 16, 24, 32)", cfg.Bits)
	}
	ctx, err := sharedOtoContext(cfg.SampleRate, cfg.Channels)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg = cfg
	o.ctx = ctx
	slog.Info("oto output opened", "format", cfg.String())
	return nil
}

// Start creates the pipe-fed player
func (o *Oto) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctx == nil {
		return ErrNotOpen
	}
	if o.player != nil {
		return nil
	}
	if err := o.ctx.Resume(); err != nil {
		return fmt.Errorf("failed to resume oto context: %w", err)
	}
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.ctx.NewPlayer(o.pipeReader)
	o.player.Play()
	return nil
}

// Write converts p to 16-bit, applies volume and feeds the player
func (o *Oto) Write(p []byte) (int, error) {
	o.mu.Lock()
	w := o.pipeWriter
	bits := o.cfg.Bits
	o.mu.Unlock()

	if w == nil {
		return 0, ErrNotOpen
	}

	out := p
	if mult := o.multiplier(); bits != 16 || mult != 1.0 {
		samples := audio.Samples(p, bits)
		applyVolume(samples, mult)
		out = audio.PackSamples(samples, 16)
	}

	// Blocks until the player has pulled the data
	if _, err := w.Write(out); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	return len(p), nil
}

// Stop waits for the player buffer to drain, then releases the player
func (o *Oto) Stop() error {
	o.mu.Lock()
	player := o.player
	o.mu.Unlock()

	if player != nil {
		deadline := time.Now().Add(2 * time.Second)
		for player.IsPlaying() && player.BufferedSize() > 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
	}
	return o.release(nil)
}

// Abort drops buffered audio and fails any blocked Write
func (o *Oto) Abort() error {
	return o.release(ErrAborted)
}

// Close releases the player; the shared context is suspended
func (o *Oto) Close() error {
	if err := o.release(nil); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx != nil {
		if err := o.ctx.Suspend(); err != nil {
			slog.Warn("failed to suspend oto context", "err", err)
		}
		o.ctx = nil
	}
	return nil
}

func (o *Oto) release(cause error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pipeReader != nil {
		if cause != nil {
			o.pipeReader.CloseWithError(cause)
		} else {
			o.pipeReader.Close()
		}
		o.pipeReader = nil
	}
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		if err := o.player.Close(); err != nil {
			o.player = nil
			return fmt.Errorf("failed to close oto player: %w", err)
		}
		o.player = nil
	}
	return nil
}
