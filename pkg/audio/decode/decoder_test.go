// ABOUTME: Shared helpers and interface-level tests for decoders
// ABOUTME: Runs decoders against in-memory input and collects their output
package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/wav"
)

// run drives dec to completion over src and returns the PCM, posts and final error
func run(t *testing.T, dec Decoder, src []byte, cfg Config) ([]byte, []StreamInfo, error) {
	t.Helper()

	var out bytes.Buffer
	var posts []StreamInfo
	r := bytes.NewReader(src)
	cfg.Input = r.Read
	cfg.Output = out.Write
	cfg.Post = func(info StreamInfo) error {
		posts = append(posts, info)
		return nil
	}
	if err := dec.Init(cfg); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	defer dec.Destroy()

	for i := 0; i < 100000; i++ {
		if err := dec.Process(); err != nil {
			return out.Bytes(), posts, err
		}
	}
	t.Fatal("decoder never terminated")
	return nil, nil, nil
}

// makeWAV builds a canonical WAV file holding a ramp of 16-bit samples
func makeWAV(rate, channels int, frames int) []byte {
	pcm := make([]byte, frames*channels*2)
	for i := 0; i < frames*channels; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(i%2000-1000)))
	}
	h := wav.Init(rate, 16, channels)
	h.Complete(uint32(len(pcm)))
	return append(h.Marshal(), pcm...)
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()
	expected := []string{"flac", "mp3", "ogg", "opus", "pcm", "wav"}

	types := r.Types()
	if len(types) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, types)
	}
	for i := range expected {
		if types[i] != expected[i] {
			t.Errorf("expected %s at %d, got %s", expected[i], i, types[i])
		}
	}

	for _, typ := range expected {
		dec, err := r.New(typ)
		if err != nil {
			t.Fatalf("new %s: %v", typ, err)
		}
		if dec.Type() != typ {
			t.Errorf("expected type %s, got %s", typ, dec.Type())
		}
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := DefaultRegistry()
	r.Unregister("mp3")

	if _, ok := r.Get("mp3"); ok {
		t.Error("expected mp3 to be unregistered")
	}
	if _, err := r.New("mp3"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}

	r.Register("mp3", NewWAV)
	dec, err := r.New("mp3")
	if err != nil {
		t.Fatalf("new after re-register: %v", err)
	}
	if dec.Type() != "wav" {
		t.Errorf("expected replacement factory, got %s", dec.Type())
	}
}

func TestSupportsSeek(t *testing.T) {
	tests := []struct {
		dec      Decoder
		expected bool
	}{
		{NewWAV(), true},
		{NewPCM(), true},
		{NewMP3(), false},
		{NewFLAC(), false},
		{NewOgg(), false},
		{NewOpus(), false},
	}

	for _, tt := range tests {
		t.Run(tt.dec.Type(), func(t *testing.T) {
			if got := SupportsSeek(tt.dec); got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestInitRequiresCallbacks(t *testing.T) {
	if err := NewWAV().Init(Config{}); err == nil {
		t.Error("expected error for missing callbacks")
	}
}

func TestMalformedInputIsDecodeError(t *testing.T) {
	garbage := bytes.Repeat([]byte{0x13, 0x37}, 64)

	for _, typ := range []string{"wav", "mp3", "flac", "ogg", "opus"} {
		t.Run(typ, func(t *testing.T) {
			dec, _ := DefaultRegistry().New(typ)
			_, posts, err := run(t, dec, garbage, Config{})
			if !errors.Is(err, ErrDecode) {
				t.Errorf("expected ErrDecode, got %v", err)
			}
			if len(posts) != 0 {
				t.Errorf("expected no format announcement, got %d", len(posts))
			}
		})
	}
}

func TestInputFailureIsInputError(t *testing.T) {
	dec := NewWAV()
	boom := errors.New("network gone")
	src := makeWAV(8000, 1, 100)
	calls := 0

	err := dec.Init(Config{
		Input: func(p []byte) (int, error) {
			calls++
			if calls > 1 {
				return 0, boom
			}
			return copy(p, src[:20]), nil
		},
		Output: io.Discard.Write,
		Post:   func(StreamInfo) error { return nil },
	})
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	err = dec.Process()
	if !errors.Is(err, ErrInput) || !errors.Is(err, boom) {
		t.Errorf("expected ErrInput wrapping cause, got %v", err)
	}
}

func TestPostFailureIsOutputError(t *testing.T) {
	dec := NewWAV()
	r := bytes.NewReader(makeWAV(8000, 1, 100))
	refused := errors.New("device busy")

	_ = dec.Init(Config{
		Input:  r.Read,
		Output: io.Discard.Write,
		Post:   func(StreamInfo) error { return refused },
	})
	err := dec.Process()
	if !errors.Is(err, ErrOutput) || !errors.Is(err, refused) {
		t.Errorf("expected ErrOutput wrapping cause, got %v", err)
	}
	if !dec.PostDone() {
		t.Error("expected post to be recorded as done")
	}
}

func TestPCMDecoder(t *testing.T) {
	format := audio.Format{SampleRate: 8000, Channels: 2, BitDepth: 16}
	src := make([]byte, 8000*4+3) // one second plus a partial frame

	out, posts, err := run(t, NewPCM(), src, Config{Format: format, Size: int64(len(src))})
	if !IsEnd(err) {
		t.Fatalf("expected clean end, got %v", err)
	}
	if len(posts) != 1 || posts[0].Format.SampleRate != 8000 || posts[0].Format.Codec != "pcm" {
		t.Fatalf("unexpected posts: %+v", posts)
	}
	if len(out) != 8000*4 {
		t.Errorf("expected %d frame-aligned bytes, got %d", 8000*4, len(out))
	}
}

func TestPCMDecoderDefaultsAndValidation(t *testing.T) {
	_, posts, _ := run(t, NewPCM(), nil, Config{})
	if len(posts) != 1 || posts[0].Format != DefaultPCMFormat {
		t.Errorf("expected default format, got %+v", posts)
	}

	err := NewPCM().Init(Config{
		Input:  bytes.NewReader(nil).Read,
		Output: io.Discard.Write,
		Post:   func(StreamInfo) error { return nil },
		Format: audio.Format{SampleRate: 8000, Channels: 1, BitDepth: 12},
	})
	if err == nil {
		t.Error("expected error for 12-bit pcm")
	}
}
