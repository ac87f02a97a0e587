// ABOUTME: PCM decoder for headerless little-endian sample streams
// ABOUTME: The format comes from the play request; the source is seekable
package decode

import (
	"fmt"
	"io"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
)

// DefaultPCMFormat is assumed when a play request carries no format
var DefaultPCMFormat = audio.Format{Codec: "pcm", SampleRate: 16000, Channels: 1, BitDepth: 16}

// PCMDecoder passes raw PCM through in frame-aligned chunks
type PCMDecoder struct {
	base

	format  audio.Format
	buf     []byte
	pending int
}

// NewPCM creates a PCM decoder
func NewPCM() Decoder {
	return &PCMDecoder{}
}

// Type returns "pcm"
func (d *PCMDecoder) Type() string { return "pcm" }

// Init binds the decoder to its callbacks
func (d *PCMDecoder) Init(cfg Config) error {
	if err := d.base.init(cfg); err != nil {
		return err
	}

	d.format = cfg.Format
	if d.format.SampleRate == 0 && d.format.Channels == 0 && d.format.BitDepth == 0 {
		d.format = DefaultPCMFormat
	}
	d.format.Codec = "pcm"
	if !d.format.Valid() {
		return fmt.Errorf("unsupported pcm format: %dHz %dch %d-bit",
			d.format.SampleRate, d.format.Channels, d.format.BitDepth)
	}

	d.buf = make([]byte, 4096-4096%d.format.FrameSize())
	d.pending = 0
	return nil
}

// Process announces the format first and then copies PCM through
func (d *PCMDecoder) Process() error {
	if !d.posted {
		var duration time.Duration
		if d.cfg.Size > 0 {
			duration = d.format.Duration(d.cfg.Size)
		}
		return d.post(StreamInfo{Format: d.format, Duration: duration})
	}

	n, err := d.in.Read(d.buf[d.pending:])
	total := d.pending + n
	aligned := total - total%d.format.FrameSize()
	if aligned > 0 {
		if werr := d.write(d.buf[:aligned]); werr != nil {
			return werr
		}
	}
	d.pending = copy(d.buf, d.buf[aligned:total])

	if err == io.EOF {
		return fmt.Errorf("%w: %w", ErrInput, io.EOF)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInput, err)
	}
	return nil
}

// SeekOffset maps pos to a frame-aligned byte offset
func (d *PCMDecoder) SeekOffset(pos time.Duration) (int64, error) {
	if pos < 0 {
		pos = 0
	}
	off := d.format.Bytes(pos)
	if d.cfg.Size > 0 && off > d.cfg.Size {
		off = d.cfg.Size - d.cfg.Size%int64(d.format.FrameSize())
	}
	return off, nil
}

// Reposition drops any partial frame read before the seek
func (d *PCMDecoder) Reposition(offset int64) {
	d.pending = 0
	d.skip = 0
}

// Destroy releases decoder resources
func (d *PCMDecoder) Destroy() {
	d.buf = nil
}
