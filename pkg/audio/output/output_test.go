// ABOUTME: Playback device tests
// ABOUTME: Covers interface conformance, volume, ring buffer and the discard device
package output

import (
	"errors"
	"testing"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
)

func TestDevicesImplementInterfaces(t *testing.T) {
	var _ Device = (*Oto)(nil)
	var _ Device = (*Malgo)(nil)
	var _ Device = (*Discard)(nil)
	var _ VolumeControl = (*Oto)(nil)
	var _ VolumeControl = (*Malgo)(nil)
}

func TestApplyVolume(t *testing.T) {
	tests := []struct {
		name     string
		level    int
		muted    bool
		input    int32
		expected int32
	}{
		{"full volume", 100, false, 1000, 1000},
		{"half volume", 50, false, 1000, 500},
		{"muted", 100, true, 1000, 0},
		{"clipped", 100, false, audio.Max24Bit, audio.Max24Bit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := []int32{tt.input}
			applyVolume(samples, getVolumeMultiplier(tt.level, tt.muted))
			if samples[0] != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, samples[0])
			}
		})
	}
}

func TestVolumeClamps(t *testing.T) {
	v := &volume{level: 100}
	v.SetVolume(150)
	if v.Volume() != 100 {
		t.Errorf("expected 100, got %d", v.Volume())
	}
	v.SetVolume(-5)
	if v.Volume() != 0 {
		t.Errorf("expected 0, got %d", v.Volume())
	}
	v.SetMuted(true)
	if !v.Muted() || v.multiplier() != 0 {
		t.Error("expected muted volume to silence output")
	}
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(4)

	if n := rb.Write([]int32{1, 2, 3, 4, 5}); n != 4 {
		t.Fatalf("expected 4 written, got %d", n)
	}
	if rb.Free() != 0 {
		t.Errorf("expected full buffer, got %d free", rb.Free())
	}

	out := make([]int32, 6)
	if n := rb.Read(out); n != 4 {
		t.Fatalf("expected 4 read, got %d", n)
	}
	if out[0] != 1 || out[3] != 4 || out[4] != 0 || out[5] != 0 {
		t.Errorf("expected data then zero fill, got %v", out)
	}

	rb.Write([]int32{9})
	rb.Reset()
	if rb.Available() != 0 {
		t.Errorf("expected reset to drop samples, got %d", rb.Available())
	}
}

func TestDiscardDevice(t *testing.T) {
	dev, err := NewDiscard(false)("")
	if err != nil {
		t.Fatalf("factory: %v", err)
	}

	if _, err := dev.Write([]byte{1}); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen before open, got %v", err)
	}

	_ = dev.Open(Config{SampleRate: 8000, Bits: 16, Channels: 1})
	_ = dev.Start()
	n, err := dev.Write(make([]byte, 100))
	if err != nil || n != 100 {
		t.Fatalf("expected 100 bytes accepted, got %d (%v)", n, err)
	}
	if got := dev.(*Discard).Written(); got != 100 {
		t.Errorf("expected 100 written, got %d", got)
	}
}

func TestDiscardRealtimeAbort(t *testing.T) {
	dev, _ := NewDiscard(true)("")
	_ = dev.Open(Config{SampleRate: 8000, Bits: 16, Channels: 1})
	_ = dev.Start()

	done := make(chan error, 1)
	go func() {
		// Ten seconds of audio
		_, err := dev.Write(make([]byte, 160000))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	_ = dev.Abort()

	select {
	case err := <-done:
		if !errors.Is(err, ErrAborted) {
			t.Errorf("expected ErrAborted, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("abort did not release the paced writer")
	}

	_ = dev.Start()
	start := time.Now()
	if _, err := dev.Write(make([]byte, 1600)); err != nil {
		t.Fatalf("write after restart: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected ~100ms of pacing, got %v", elapsed)
	}
}
