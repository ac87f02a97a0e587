// ABOUTME: Opus decoder for length-prefixed packet streams
// ABOUTME: Decodes each packet with libopus into 16-bit PCM
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// OpusDecoder decodes Opus packet streams
type OpusDecoder struct {
	base

	decoder *opus.Decoder
	format  audio.Format
	packet  []byte
	pcm16   []int16
	pcm     []byte
}

// NewOpus creates an Opus decoder
func NewOpus() Decoder {
	return &OpusDecoder{}
}

// Type returns "opus"
func (d *OpusDecoder) Type() string { return "opus" }

// Init binds the decoder to its callbacks
func (d *OpusDecoder) Init(cfg Config) error {
	if err := d.base.init(cfg); err != nil {
		return err
	}
	d.packet = make([]byte, audio.MaxOpusPacket)
	return nil
}

// Process reads the stream header on the first call and one packet per call afterwards
func (d *OpusDecoder) Process() error {
	if d.decoder == nil {
		header, err := audio.ReadOpusStreamHeader(d.in)
		if err != nil {
			return d.fail(fmt.Errorf("failed to read opus header: %w", err))
		}

		dec, err := opus.NewDecoder(header.SampleRate, header.Channels)
		if err != nil {
			return fmt.Errorf("%w: failed to create opus decoder: %w", ErrDecode, err)
		}
		d.decoder = dec
		d.format = audio.Format{
			Codec:      "pcm",
			SampleRate: header.SampleRate,
			Channels:   header.Channels,
			BitDepth:   16,
		}
		// 120ms is the longest Opus frame
		d.pcm16 = make([]int16, header.SampleRate*120/1000*header.Channels)
		d.pcm = make([]byte, len(d.pcm16)*2)
		return d.post(StreamInfo{Format: d.format})
	}

	packet, err := audio.ReadOpusPacket(d.in, d.packet)
	if err == io.EOF {
		return fmt.Errorf("%w: %w", ErrInput, io.EOF)
	}
	if err != nil {
		if errors.Is(err, audio.ErrOpusFraming) {
			return fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return d.fail(err)
	}

	n, err := d.decoder.Decode(packet, d.pcm16)
	if err != nil {
		return fmt.Errorf("%w: opus decode failed: %w", ErrDecode, err)
	}

	samples := n * d.format.Channels
	for i, s := range d.pcm16[:samples] {
		binary.LittleEndian.PutUint16(d.pcm[i*2:], uint16(s))
	}
	return d.write(d.pcm[:samples*2])
}

// Destroy releases decoder resources
func (d *OpusDecoder) Destroy() {
	d.decoder = nil
	d.packet = nil
	d.pcm16 = nil
	d.pcm = nil
}
