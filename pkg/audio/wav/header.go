// ABOUTME: Canonical 44-byte RIFF/WAVE header helpers
// ABOUTME: Builds, parses and back-patches headers for PCM recordings
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the size of a canonical PCM WAV header
const HeaderSize = 44

// UnknownSize marks a data chunk written by a streaming producer
const UnknownSize = 0xFFFFFFFF

var (
	// ErrInvalidHeader is returned when bytes do not start a PCM WAV file
	ErrInvalidHeader = errors.New("wav: invalid header")
)

// Header mirrors the on-disk layout of a canonical PCM WAV header
type Header struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// Init builds a header for PCM data of unknown length
func Init(sampleRate, bits, channels int) Header {
	blockAlign := channels * bits / 8
	return Header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: uint16(bits),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
	}
}

// Complete patches the size fields once dataSize bytes of PCM were written
func (h *Header) Complete(dataSize uint32) {
	h.ChunkSize = 36 + dataSize
	h.Subchunk2Size = dataSize
}

// Marshal encodes the header in little-endian order
func (h Header) Marshal() []byte {
	var buf bytes.Buffer
	buf.Grow(HeaderSize)
	_ = binary.Write(&buf, binary.LittleEndian, h)
	return buf.Bytes()
}

// Parse decodes a canonical header from the first HeaderSize bytes of data
func Parse(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidHeader, HeaderSize, len(data))
	}
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if string(h.ChunkID[:]) != "RIFF" || string(h.Format[:]) != "WAVE" {
		return h, fmt.Errorf("%w: missing RIFF/WAVE tag", ErrInvalidHeader)
	}
	if string(h.Subchunk1ID[:]) != "fmt " {
		return h, fmt.Errorf("%w: missing fmt chunk", ErrInvalidHeader)
	}
	if h.AudioFormat != 1 {
		return h, fmt.Errorf("%w: unsupported audio format %d", ErrInvalidHeader, h.AudioFormat)
	}
	if h.NumChannels == 0 || h.SampleRate == 0 || h.BitsPerSample == 0 {
		return h, fmt.Errorf("%w: empty format fields", ErrInvalidHeader)
	}
	return h, nil
}
