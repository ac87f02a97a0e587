// ABOUTME: Tests for WAV header helpers
// ABOUTME: Verifies layout, back-patching and parse validation
package wav

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestInitLayout(t *testing.T) {
	h := Init(16000, 16, 1)
	data := h.Marshal()

	if len(data) != HeaderSize {
		t.Fatalf("expected %d bytes, got %d", HeaderSize, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Errorf("expected RIFF/WAVE tags, got %q %q", data[0:4], data[8:12])
	}
	if string(data[36:40]) != "data" {
		t.Errorf("expected data tag at 36, got %q", data[36:40])
	}
	if got := binary.LittleEndian.Uint32(data[28:32]); got != 32000 {
		t.Errorf("expected byte rate 32000, got %d", got)
	}
	if got := binary.LittleEndian.Uint16(data[32:34]); got != 2 {
		t.Errorf("expected block align 2, got %d", got)
	}
}

func TestComplete(t *testing.T) {
	h := Init(44100, 16, 2)
	h.Complete(1000)
	data := h.Marshal()

	if got := binary.LittleEndian.Uint32(data[4:8]); got != 1036 {
		t.Errorf("expected chunk size 1036, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != 1000 {
		t.Errorf("expected data size 1000, got %d", got)
	}
}

func TestParse(t *testing.T) {
	h := Init(22050, 24, 2)
	h.Complete(600)

	got, err := Parse(h.Marshal())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != h {
		t.Errorf("expected %+v, got %+v", h, got)
	}
}

func TestParseRejects(t *testing.T) {
	valid := Init(8000, 16, 1).Marshal()

	notRIFF := append([]byte(nil), valid...)
	copy(notRIFF, "RIFX")

	float := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint16(float[20:22], 3)

	tests := []struct {
		name string
		data []byte
	}{
		{"short", valid[:20]},
		{"not riff", notRIFF},
		{"float format", float},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.data); !errors.Is(err, ErrInvalidHeader) {
				t.Errorf("expected ErrInvalidHeader, got %v", err)
			}
		})
	}
}
