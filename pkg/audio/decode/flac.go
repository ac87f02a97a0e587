// ABOUTME: FLAC decoder backed by mewkiz/flac
// ABOUTME: Emits 16-bit PCM for 16-bit sources and 24-bit PCM otherwise
package decode

import (
	"fmt"
	"io"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes FLAC audio
type FLACDecoder struct {
	base

	stream     *flac.Stream
	format     audio.Format
	sourceBits int
	samples    []int32
}

// NewFLAC creates a FLAC decoder
func NewFLAC() Decoder {
	return &FLACDecoder{}
}

// Type returns "flac"
func (d *FLACDecoder) Type() string { return "flac" }

// Init binds the decoder to its callbacks
func (d *FLACDecoder) Init(cfg Config) error {
	return d.base.init(cfg)
}

// Process parses stream info on the first call and one frame per call afterwards
func (d *FLACDecoder) Process() error {
	if d.stream == nil {
		stream, err := flac.New(d.in)
		if err != nil {
			return d.fail(fmt.Errorf("failed to decode FLAC: %w", err))
		}
		d.stream = stream

		info := stream.Info
		d.sourceBits = int(info.BitsPerSample)
		outBits := 24
		if d.sourceBits <= 16 {
			outBits = 16
		}
		d.format = audio.Format{
			Codec:      "pcm",
			SampleRate: int(info.SampleRate),
			Channels:   int(info.NChannels),
			BitDepth:   outBits,
		}

		var duration time.Duration
		if info.NSamples > 0 && info.SampleRate > 0 {
			duration = time.Duration(info.NSamples) * time.Second / time.Duration(info.SampleRate)
		}
		return d.post(StreamInfo{Format: d.format, Duration: duration})
	}

	frame, err := d.stream.ParseNext()
	if err == io.EOF {
		return fmt.Errorf("%w: %w", ErrInput, io.EOF)
	}
	if err != nil {
		return d.fail(fmt.Errorf("flac frame error: %w", err))
	}

	blockSize := int(frame.BlockSize)
	need := blockSize * d.format.Channels
	if cap(d.samples) < need {
		d.samples = make([]int32, need)
	}
	d.samples = d.samples[:need]

	// Interleave subframes, scaled to 24-bit range
	shift := d.sourceBits - 24
	for i := 0; i < blockSize; i++ {
		for ch := 0; ch < d.format.Channels; ch++ {
			sample := frame.Subframes[ch].Samples[i]
			if shift > 0 {
				sample >>= shift
			} else {
				sample <<= -shift
			}
			d.samples[i*d.format.Channels+ch] = sample
		}
	}

	return d.write(audio.PackSamples(d.samples, d.format.BitDepth))
}

// Destroy releases decoder resources
func (d *FLACDecoder) Destroy() {
	if d.stream != nil {
		d.stream.Close()
		d.stream = nil
	}
	d.samples = nil
}
