// ABOUTME: MP3 decoder backed by go-mp3
// ABOUTME: Emits 16-bit stereo PCM at the stream's sample rate
package decode

import (
	"fmt"
	"io"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes MP3 audio
type MP3Decoder struct {
	base

	decoder *mp3.Decoder
	format  audio.Format
	buf     []byte
}

// NewMP3 creates an MP3 decoder
func NewMP3() Decoder {
	return &MP3Decoder{}
}

// Type returns "mp3"
func (d *MP3Decoder) Type() string { return "mp3" }

// Init binds the decoder to its callbacks
func (d *MP3Decoder) Init(cfg Config) error {
	if err := d.base.init(cfg); err != nil {
		return err
	}
	d.buf = make([]byte, 8192)
	return nil
}

// Process syncs to the first frame on the first call and decodes afterwards
func (d *MP3Decoder) Process() error {
	if d.decoder == nil {
		decoder, err := mp3.NewDecoder(d.in)
		if err != nil {
			return d.fail(fmt.Errorf("failed to create mp3 decoder: %w", err))
		}
		d.decoder = decoder
		d.format = audio.Format{
			Codec:      "pcm",
			SampleRate: decoder.SampleRate(),
			Channels:   2,
			BitDepth:   16,
		}

		var duration time.Duration
		if n := decoder.Length(); n > 0 {
			duration = d.format.Duration(n)
		}
		return d.post(StreamInfo{Format: d.format, Duration: duration})
	}

	n, err := d.decoder.Read(d.buf)
	if n > 0 {
		if werr := d.write(d.buf[:n]); werr != nil {
			return werr
		}
	}
	if err == io.EOF {
		return fmt.Errorf("%w: %w", ErrInput, io.EOF)
	}
	if err != nil {
		return d.fail(fmt.Errorf("mp3 decode error: %w", err))
	}
	return nil
}

// Destroy releases decoder resources
func (d *MP3Decoder) Destroy() {
	d.decoder = nil
	d.buf = nil
}
