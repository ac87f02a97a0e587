// ABOUTME: Opus encoder producing length-prefixed packet streams
// ABOUTME: Encodes 20ms frames with libopus and pads the final frame with silence
package encode

import (
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

const opusFrameMs = 20

// OpusEncoder encodes 16-bit PCM to Opus packets
type OpusEncoder struct {
	base

	encoder   *opus.Encoder
	header    bool
	frameSize int // samples per channel per frame
	raw       []byte
	pcm       []int16
	packet    []byte
	out       []byte
}

// NewOpus creates an Opus encoder
func NewOpus() Encoder {
	return &OpusEncoder{}
}

// Type returns "opus"
func (e *OpusEncoder) Type() string { return "opus" }

// Init creates the libopus encoder for the configured format
func (e *OpusEncoder) Init(cfg Config) error {
	if err := e.base.init(cfg); err != nil {
		return err
	}
	f := cfg.Format
	if f.BitDepth != 16 {
		return fmt.Errorf("opus encoder requires 16-bit pcm, got %d-bit", f.BitDepth)
	}

	encoder, err := opus.NewEncoder(f.SampleRate, f.Channels, opus.AppAudio)
	if err != nil {
		return fmt.Errorf("failed to create opus encoder: %w", err)
	}

	// 64 kbps per channel
	if err := encoder.SetBitrate(64000 * f.Channels); err != nil {
		slog.Warn("failed to set opus bitrate", "err", err)
	}

	e.encoder = encoder
	e.header = true
	e.frameSize = f.SampleRate * opusFrameMs / 1000
	e.raw = make([]byte, e.frameSize*f.Channels*2)
	e.pcm = make([]int16, e.frameSize*f.Channels)
	e.packet = make([]byte, audio.MaxOpusPacket)
	return nil
}

// Process writes the stream header first and then one packet per call
func (e *OpusEncoder) Process() error {
	if e.header {
		e.header = false
		h := audio.OpusStreamHeader{
			SampleRate: e.cfg.Format.SampleRate,
			Channels:   e.cfg.Format.Channels,
			FrameMs:    opusFrameMs,
		}
		return e.write(h.Marshal())
	}

	n, err := e.read(e.raw)
	if n > 0 {
		// Trailing partial frame is padded with silence
		clear(e.raw[n:])
		for i := range e.pcm {
			e.pcm[i] = int16(binary.LittleEndian.Uint16(e.raw[i*2:]))
		}
		size, encErr := e.encoder.Encode(e.pcm, e.packet)
		if encErr != nil {
			return fmt.Errorf("%w: opus encode failed: %w", ErrEncode, encErr)
		}
		e.out = audio.AppendOpusPacket(e.out[:0], e.packet[:size])
		if werr := e.write(e.out); werr != nil {
			return werr
		}
	}
	if err != nil {
		return inputErr(err)
	}
	return nil
}

// Destroy releases encoder resources
func (e *OpusEncoder) Destroy() {
	e.encoder = nil
	e.raw = nil
	e.pcm = nil
	e.packet = nil
}
