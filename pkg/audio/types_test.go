// ABOUTME: Tests for audio types
// ABOUTME: Tests format arithmetic and sample conversion functions
package audio

import (
	"testing"
	"time"
)

func TestFormatValid(t *testing.T) {
	tests := []struct {
		name     string
		format   Format
		expected bool
	}{
		{"16-bit mono", Format{SampleRate: 16000, Channels: 1, BitDepth: 16}, true},
		{"24-bit stereo", Format{SampleRate: 48000, Channels: 2, BitDepth: 24}, true},
		{"zero rate", Format{SampleRate: 0, Channels: 1, BitDepth: 16}, false},
		{"zero channels", Format{SampleRate: 16000, Channels: 0, BitDepth: 16}, false},
		{"8-bit", Format{SampleRate: 8000, Channels: 1, BitDepth: 8}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.Valid(); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	format := Format{SampleRate: 16000, Channels: 1, BitDepth: 16}

	if format.ByteRate() != 32000 {
		t.Fatalf("expected byte rate 32000, got %d", format.ByteRate())
	}
	if d := format.Duration(32000); d != time.Second {
		t.Errorf("expected 1s, got %v", d)
	}
	if n := format.Bytes(500 * time.Millisecond); n != 16000 {
		t.Errorf("expected 16000 bytes, got %d", n)
	}

	stereo := Format{SampleRate: 44100, Channels: 2, BitDepth: 16}
	if n := stereo.Bytes(time.Millisecond); n%int64(stereo.FrameSize()) != 0 {
		t.Errorf("expected frame-aligned byte count, got %d", n)
	}

	var zero Format
	if d := zero.Duration(100); d != 0 {
		t.Errorf("expected zero duration for empty format, got %v", d)
	}
}

func TestSampleFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected int32
	}{
		{"zero", 0, 0},
		{"positive", 100, 100 << 8},
		{"negative", -100, -100 << 8},
		{"min", -32768, -32768 << 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleFrom24Bit(t *testing.T) {
	tests := []struct {
		name     string
		input    [3]byte
		expected int32
	}{
		{"zero", [3]byte{0, 0, 0}, 0},
		{"positive", [3]byte{0x56, 0x34, 0x12}, 0x123456},
		{"negative", [3]byte{0x00, 0xFF, 0xFF}, -256},
		{"max negative", [3]byte{0x00, 0x00, 0x80}, Min24Bit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFrom24Bit(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestPackSamplesRoundTrip(t *testing.T) {
	samples := []int32{0, 100 << 8, -100 << 8, 32767 << 8, -32768 << 8}

	for _, depth := range []int{16, 24, 32} {
		data := PackSamples(samples, depth)
		if len(data) != len(samples)*depth/8 {
			t.Fatalf("%d-bit: expected %d bytes, got %d", depth, len(samples)*depth/8, len(data))
		}
		back := Samples(data, depth)
		for i := range samples {
			if back[i] != samples[i] {
				t.Errorf("%d-bit sample %d: expected %d, got %d", depth, i, samples[i], back[i])
			}
		}
	}
}
