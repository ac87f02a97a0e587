// ABOUTME: Ogg Vorbis decoder backed by jfreymuth/oggvorbis
// ABOUTME: Converts interleaved float samples to 16-bit PCM
package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/jfreymuth/oggvorbis"
)

// OggDecoder decodes Ogg Vorbis audio
type OggDecoder struct {
	base

	reader *oggvorbis.Reader
	format audio.Format
	floats []float32
	pcm    []byte
}

// NewOgg creates an Ogg Vorbis decoder
func NewOgg() Decoder {
	return &OggDecoder{}
}

// Type returns "ogg"
func (d *OggDecoder) Type() string { return "ogg" }

// Init binds the decoder to its callbacks
func (d *OggDecoder) Init(cfg Config) error {
	return d.base.init(cfg)
}

// Process reads the identification header on the first call and decodes afterwards
func (d *OggDecoder) Process() error {
	if d.reader == nil {
		reader, err := oggvorbis.NewReader(d.in)
		if err != nil {
			return d.fail(fmt.Errorf("failed to open vorbis stream: %w", err))
		}
		d.reader = reader
		d.format = audio.Format{
			Codec:      "pcm",
			SampleRate: reader.SampleRate(),
			Channels:   reader.Channels(),
			BitDepth:   16,
		}
		d.floats = make([]float32, 2048*d.format.Channels)
		d.pcm = make([]byte, len(d.floats)*2)
		return d.post(StreamInfo{Format: d.format})
	}

	n, err := d.reader.Read(d.floats)
	n = min(n, len(d.floats))
	n -= n % d.format.Channels
	if n > 0 {
		for i, f := range d.floats[:n] {
			binary.LittleEndian.PutUint16(d.pcm[i*2:], uint16(floatToInt16(f)))
		}
		if werr := d.write(d.pcm[:n*2]); werr != nil {
			return werr
		}
	}
	if err == io.EOF {
		return fmt.Errorf("%w: %w", ErrInput, io.EOF)
	}
	if err != nil {
		return d.fail(fmt.Errorf("vorbis decode error: %w", err))
	}
	return nil
}

// Destroy releases decoder resources
func (d *OggDecoder) Destroy() {
	d.reader = nil
	d.floats = nil
	d.pcm = nil
}

func floatToInt16(f float32) int16 {
	v := math.Round(float64(f) * math.MaxInt16)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
