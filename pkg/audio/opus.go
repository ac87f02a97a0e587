// ABOUTME: Framing for Opus packet streams written by the recorder
// ABOUTME: A fixed stream header followed by length-prefixed packets
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// OpusHeaderSize is the size of the stream header preceding the packets
const OpusHeaderSize = 12

// MaxOpusPacket bounds a single packet in the stream
const MaxOpusPacket = 4000

var opusMagic = [4]byte{'O', 'P', 'S', 'F'}

// ErrOpusFraming is returned for malformed Opus packet streams
var ErrOpusFraming = errors.New("audio: malformed opus stream")

// OpusStreamHeader describes the PCM layout an Opus packet stream decodes to
type OpusStreamHeader struct {
	SampleRate int
	Channels   int
	FrameMs    int
}

// Marshal encodes the header
func (h OpusStreamHeader) Marshal() []byte {
	out := make([]byte, OpusHeaderSize)
	copy(out, opusMagic[:])
	binary.LittleEndian.PutUint32(out[4:], uint32(h.SampleRate))
	binary.LittleEndian.PutUint16(out[8:], uint16(h.Channels))
	binary.LittleEndian.PutUint16(out[10:], uint16(h.FrameMs))
	return out
}

// ReadOpusStreamHeader reads and validates a header from r
func ReadOpusStreamHeader(r io.Reader) (OpusStreamHeader, error) {
	var h OpusStreamHeader
	buf := make([]byte, OpusHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return h, err
	}
	if [4]byte(buf[:4]) != opusMagic {
		return h, fmt.Errorf("%w: bad magic %q", ErrOpusFraming, buf[:4])
	}
	h.SampleRate = int(binary.LittleEndian.Uint32(buf[4:]))
	h.Channels = int(binary.LittleEndian.Uint16(buf[8:]))
	h.FrameMs = int(binary.LittleEndian.Uint16(buf[10:]))
	if h.SampleRate <= 0 || h.Channels <= 0 || h.Channels > 2 {
		return h, fmt.Errorf("%w: bad format %dHz/%dch", ErrOpusFraming, h.SampleRate, h.Channels)
	}
	return h, nil
}

// AppendOpusPacket appends a length-prefixed packet to dst
func AppendOpusPacket(dst, packet []byte) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, uint16(len(packet)))
	return append(dst, packet...)
}

// ReadOpusPacket reads one length-prefixed packet into buf
func ReadOpusPacket(r io.Reader, buf []byte) ([]byte, error) {
	var size [2]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint16(size[:]))
	if n == 0 || n > MaxOpusPacket || n > len(buf) {
		return nil, fmt.Errorf("%w: packet size %d", ErrOpusFraming, n)
	}
	if _, err := io.ReadFull(r, buf[:n]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf[:n], nil
}
