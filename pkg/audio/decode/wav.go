// ABOUTME: WAV decoder for PCM RIFF/WAVE files
// ABOUTME: Walks the chunk list, streams the data chunk and supports seeking
package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/wav"
)

const wavChunkBytes = 4096

// WAVDecoder decodes PCM WAV streams
type WAVDecoder struct {
	base

	format    audio.Format
	dataStart int64 // source offset of the first PCM byte
	dataSize  int64 // -1 when the producer never patched the size
	consumed  int64 // PCM bytes read from the data chunk
	buf       []byte
	pending   int // bytes of a partial frame carried into buf
}

// NewWAV creates a WAV decoder
func NewWAV() Decoder {
	return &WAVDecoder{}
}

// Type returns "wav"
func (d *WAVDecoder) Type() string { return "wav" }

// Init binds the decoder to its callbacks
func (d *WAVDecoder) Init(cfg Config) error {
	if err := d.base.init(cfg); err != nil {
		return err
	}
	d.buf = make([]byte, wavChunkBytes)
	d.dataSize = -1
	d.consumed = 0
	d.pending = 0
	return nil
}

// Process parses the header on the first call and streams PCM afterwards
func (d *WAVDecoder) Process() error {
	if !d.posted {
		if err := d.readHeader(); err != nil {
			return err
		}
		var duration time.Duration
		if d.dataSize >= 0 {
			duration = d.format.Duration(d.dataSize)
		}
		return d.post(StreamInfo{Format: d.format, Duration: duration})
	}

	want := len(d.buf) - d.pending
	if d.dataSize >= 0 {
		remaining := d.dataSize - d.consumed
		if remaining == 0 {
			return fmt.Errorf("%w: %w", ErrInput, io.EOF)
		}
		want = int(min(int64(want), remaining))
	}

	n, err := io.ReadFull(d.in, d.buf[d.pending:d.pending+want])
	d.consumed += int64(n)
	total := d.pending + n
	frame := d.format.FrameSize()
	aligned := total - total%frame
	if aligned > 0 {
		if werr := d.write(d.buf[:aligned]); werr != nil {
			return werr
		}
	}
	d.pending = copy(d.buf, d.buf[aligned:total])

	switch {
	case err == nil:
		return nil
	case d.in.err != nil:
		return fmt.Errorf("%w: %w", ErrInput, d.in.err)
	case d.dataSize >= 0:
		return fmt.Errorf("%w: data chunk truncated at %d of %d bytes", ErrDecode, d.consumed, d.dataSize)
	default:
		// Streaming producers never patch the size; end of input ends the data.
		return fmt.Errorf("%w: %w", ErrInput, io.EOF)
	}
}

// readHeader walks RIFF chunks until the data chunk
func (d *WAVDecoder) readHeader() error {
	var riff [12]byte
	if _, err := io.ReadFull(d.in, riff[:]); err != nil {
		return d.headerErr(err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return fmt.Errorf("%w: %w", ErrDecode, wav.ErrInvalidHeader)
	}
	offset := int64(len(riff))

	haveFormat := false
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(d.in, chunk[:]); err != nil {
			return d.headerErr(err)
		}
		offset += int64(len(chunk))
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return fmt.Errorf("%w: fmt chunk too small (%d)", ErrDecode, size)
			}
			body := make([]byte, size+size%2)
			if _, err := io.ReadFull(d.in, body); err != nil {
				return d.headerErr(err)
			}
			offset += int64(len(body))
			if tag := binary.LittleEndian.Uint16(body[0:2]); tag != 1 && tag != 0xFFFE {
				return fmt.Errorf("%w: unsupported wav format tag %d", ErrDecode, tag)
			}
			d.format = audio.Format{
				Codec:      "pcm",
				Channels:   int(binary.LittleEndian.Uint16(body[2:4])),
				SampleRate: int(binary.LittleEndian.Uint32(body[4:8])),
				BitDepth:   int(binary.LittleEndian.Uint16(body[14:16])),
			}
			if !d.format.Valid() {
				return fmt.Errorf("%w: unsupported wav format %+v", ErrDecode, d.format)
			}
			haveFormat = true

		case "data":
			if !haveFormat {
				return fmt.Errorf("%w: data chunk before fmt chunk", ErrDecode)
			}
			d.dataStart = offset
			if size != 0 && size != wav.UnknownSize {
				d.dataSize = int64(size)
			}
			return nil

		default:
			skip := int64(size) + int64(size%2)
			if _, err := io.CopyN(io.Discard, d.in, skip); err != nil {
				return d.headerErr(err)
			}
			offset += skip
		}
	}
}

// headerErr treats any short read inside the header as a malformed file
func (d *WAVDecoder) headerErr(err error) error {
	if d.in.err != nil {
		return fmt.Errorf("%w: %w", ErrInput, d.in.err)
	}
	return fmt.Errorf("%w: truncated wav header: %w", ErrDecode, err)
}

// SeekOffset maps pos to the source offset of the matching PCM frame
func (d *WAVDecoder) SeekOffset(pos time.Duration) (int64, error) {
	if !d.posted {
		return 0, fmt.Errorf("wav header not parsed yet")
	}
	if pos < 0 {
		pos = 0
	}
	rel := d.format.Bytes(pos)
	if d.dataSize >= 0 && rel > d.dataSize {
		rel = d.dataSize
	}
	return d.dataStart + rel, nil
}

// Reposition resumes decoding at a source offset returned by SeekOffset
func (d *WAVDecoder) Reposition(offset int64) {
	d.consumed = max(0, offset-d.dataStart)
	d.pending = 0
	d.skip = 0
}

// Destroy releases decoder resources
func (d *WAVDecoder) Destroy() {
	d.buf = nil
}
