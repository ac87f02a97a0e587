// ABOUTME: Sample rate converter for interleaved PCM
// ABOUTME: Wraps the oov/audio speex-style resampler per channel
package resample

import (
	"fmt"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/oov/audio/resampler"
)

// quality is the resampler quality level (0-10)
const quality = 10

// Resampler converts interleaved PCM between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	bits       int

	r       *resampler.Resampler
	in      [][]float32
	out     [][]float32
	partial []byte
}

// New creates a resampler for PCM at the given channel count and bit depth
func New(inputRate, outputRate, channels, bits int) (*Resampler, error) {
	f := audio.Format{SampleRate: inputRate, Channels: channels, BitDepth: bits}
	if !f.Valid() || outputRate <= 0 {
		return nil, fmt.Errorf("invalid resampler config: %dHz->%dHz %dch %dbit", inputRate, outputRate, channels, bits)
	}
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		bits:       bits,
		r:          resampler.New(channels, inputRate, outputRate, quality),
		in:         make([][]float32, channels),
		out:        make([][]float32, channels),
	}, nil
}

// OutputRate returns the target sample rate
func (r *Resampler) OutputRate() int {
	return r.outputRate
}

// Process converts pcm and returns the resampled bytes. Trailing bytes
// that do not form a whole frame are held for the next call.
func (r *Resampler) Process(pcm []byte) []byte {
	frameSize := r.channels * r.bits / 8
	if len(r.partial) > 0 {
		pcm = append(r.partial, pcm...)
		r.partial = nil
	}
	whole := len(pcm) - len(pcm)%frameSize
	if whole < len(pcm) {
		r.partial = append([]byte(nil), pcm[whole:]...)
	}
	if whole == 0 {
		return nil
	}

	samples := audio.Samples(pcm[:whole], r.bits)
	frames := len(samples) / r.channels

	// Deinterleave into planar float32 in [-1, 1)
	for ch := 0; ch < r.channels; ch++ {
		r.in[ch] = grow(r.in[ch], frames)
		for i := 0; i < frames; i++ {
			r.in[ch][i] = float32(samples[i*r.channels+ch]) / (audio.Max24Bit + 1)
		}
	}

	outFrames := frames*r.outputRate/r.inputRate + 64
	written := 0
	for ch := 0; ch < r.channels; ch++ {
		r.out[ch] = grow(r.out[ch], outFrames)
		n := r.processChannel(ch, r.in[ch], r.out[ch])
		if ch == 0 || n < written {
			written = n
		}
	}

	out := make([]int32, written*r.channels)
	for i := 0; i < written; i++ {
		for ch := 0; ch < r.channels; ch++ {
			out[i*r.channels+ch] = toSample(r.out[ch][i])
		}
	}
	return audio.PackSamples(out, r.bits)
}

// processChannel feeds all of in, growing out until the resampler has
// consumed it
func (r *Resampler) processChannel(ch int, in, out []float32) int {
	written := 0
	for len(in) > 0 {
		read, n := r.r.ProcessFloat32(ch, in, out[written:])
		written += n
		in = in[read:]
		if read == 0 && n == 0 {
			break
		}
		if len(in) > 0 && written == len(out) {
			out = append(out, make([]float32, len(in)+64)...)
			r.out[ch] = out
		}
	}
	return written
}

// Reset drops resampler history and any held partial frame
func (r *Resampler) Reset() {
	r.r = resampler.New(r.channels, r.inputRate, r.outputRate, quality)
	r.partial = nil
}

func grow(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}

func toSample(f float32) int32 {
	v := int64(f * (audio.Max24Bit + 1))
	if v > audio.Max24Bit {
		return audio.Max24Bit
	}
	if v < audio.Min24Bit {
		return audio.Min24Bit
	}
	return int32(v)
}
