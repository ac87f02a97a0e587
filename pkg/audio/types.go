// ABOUTME: Audio type definitions shared by every pipeline stage
// ABOUTME: Defines PCM formats, byte/time conversions and sample helpers
package audio

import (
	"encoding/binary"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// Format describes an interleaved little-endian PCM stream
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Valid reports whether the format can describe PCM data
func (f Format) Valid() bool {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return false
	}
	switch f.BitDepth {
	case 16, 24, 32:
		return true
	}
	return false
}

// BytesPerSample returns the size of one sample of one channel
func (f Format) BytesPerSample() int {
	return f.BitDepth / 8
}

// FrameSize returns the size of one sample across all channels
func (f Format) FrameSize() int {
	return f.BytesPerSample() * f.Channels
}

// ByteRate returns the number of PCM bytes per second
func (f Format) ByteRate() int {
	return f.SampleRate * f.FrameSize()
}

// Duration converts a PCM byte count to playing time
func (f Format) Duration(n int64) time.Duration {
	rate := int64(f.ByteRate())
	if rate == 0 {
		return 0
	}
	return time.Duration(n * int64(time.Second) / rate)
}

// Bytes converts playing time to a frame-aligned PCM byte count
func (f Format) Bytes(d time.Duration) int64 {
	frames := int64(d) * int64(f.SampleRate) / int64(time.Second)
	return frames * int64(f.FrameSize())
}

// SampleToInt16 converts int32 sample to int16 (for 16-bit playback)
func SampleToInt16(sample int32) int16 {
	return int16(sample >> 8)
}

// SampleFromInt16 converts int16 sample to int32 (left-justified in 24-bit)
func SampleFromInt16(sample int16) int32 {
	return int32(sample) << 8
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}

// Samples unpacks PCM bytes into int32 samples in 24-bit range
func Samples(data []byte, bitDepth int) []int32 {
	switch bitDepth {
	case 24:
		n := len(data) / 3
		out := make([]int32, n)
		for i := 0; i < n; i++ {
			out[i] = SampleFrom24Bit([3]byte{data[i*3], data[i*3+1], data[i*3+2]})
		}
		return out
	case 32:
		n := len(data) / 4
		out := make([]int32, n)
		for i := 0; i < n; i++ {
			out[i] = int32(binary.LittleEndian.Uint32(data[i*4:])) >> 8
		}
		return out
	default:
		n := len(data) / 2
		out := make([]int32, n)
		for i := 0; i < n; i++ {
			out[i] = SampleFromInt16(int16(binary.LittleEndian.Uint16(data[i*2:])))
		}
		return out
	}
}

// PackSamples packs int32 samples in 24-bit range into PCM bytes
func PackSamples(samples []int32, bitDepth int) []byte {
	switch bitDepth {
	case 24:
		out := make([]byte, len(samples)*3)
		for i, s := range samples {
			b := SampleTo24Bit(s)
			copy(out[i*3:], b[:])
		}
		return out
	case 32:
		out := make([]byte, len(samples)*4)
		for i, s := range samples {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(s<<8))
		}
		return out
	default:
		out := make([]byte, len(samples)*2)
		for i, s := range samples {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(SampleToInt16(s)))
		}
		return out
	}
}
