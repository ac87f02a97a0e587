// ABOUTME: Tests for the WAV decoder
// ABOUTME: Covers header walking, truncation, start offsets and seeking
package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio/wav"
)

func TestWAVDecodeOneSecond(t *testing.T) {
	src := makeWAV(16000, 1, 16000)

	out, posts, err := run(t, NewWAV(), src, Config{})
	if !IsEnd(err) {
		t.Fatalf("expected clean end, got %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected exactly one post, got %d", len(posts))
	}
	info := posts[0]
	if info.Format.SampleRate != 16000 || info.Format.Channels != 1 || info.Format.BitDepth != 16 {
		t.Errorf("unexpected format %+v", info.Format)
	}
	if info.Duration != time.Second {
		t.Errorf("expected 1s duration, got %v", info.Duration)
	}
	if !bytes.Equal(out, src[wav.HeaderSize:]) {
		t.Errorf("expected %d PCM bytes, got %d", len(src)-wav.HeaderSize, len(out))
	}
}

func TestWAVTruncatedData(t *testing.T) {
	src := makeWAV(16000, 1, 16000)
	truncated := src[:len(src)/2]

	out, posts, err := run(t, NewWAV(), truncated, Config{})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if len(posts) != 1 {
		t.Errorf("expected header to be announced before truncation, got %d posts", len(posts))
	}
	if len(out) == 0 {
		t.Error("expected the readable part to be decoded")
	}
}

func TestWAVTruncatedHeader(t *testing.T) {
	src := makeWAV(16000, 1, 10)

	_, posts, err := run(t, NewWAV(), src[:30], Config{})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if len(posts) != 0 {
		t.Errorf("expected no post, got %d", len(posts))
	}
}

func TestWAVSkipsUnknownChunks(t *testing.T) {
	src := makeWAV(8000, 2, 800)

	// Insert a LIST chunk between fmt and data
	list := []byte("LIST")
	list = binary.LittleEndian.AppendUint32(list, 5)
	list = append(list, 'a', 'b', 'c', 'd', 'e', 0) // odd size gets a pad byte

	withList := append([]byte(nil), src[:36]...)
	withList = append(withList, list...)
	withList = append(withList, src[36:]...)

	out, posts, err := run(t, NewWAV(), withList, Config{})
	if !IsEnd(err) {
		t.Fatalf("expected clean end, got %v", err)
	}
	if posts[0].Format.Channels != 2 {
		t.Errorf("expected stereo, got %d channels", posts[0].Format.Channels)
	}
	if len(out) != 800*4 {
		t.Errorf("expected %d bytes, got %d", 800*4, len(out))
	}
}

func TestWAVUnknownSizeRunsToEnd(t *testing.T) {
	src := makeWAV(8000, 1, 1000)
	binary.LittleEndian.PutUint32(src[40:44], 0)

	out, posts, err := run(t, NewWAV(), src, Config{})
	if !IsEnd(err) {
		t.Fatalf("expected clean end, got %v", err)
	}
	if posts[0].Duration != 0 {
		t.Errorf("expected unknown duration, got %v", posts[0].Duration)
	}
	if len(out) != 2000 {
		t.Errorf("expected 2000 bytes, got %d", len(out))
	}
}

func TestWAVStartTime(t *testing.T) {
	src := makeWAV(16000, 1, 16000)

	out, _, err := run(t, NewWAV(), src, Config{StartTime: 250 * time.Millisecond})
	if !IsEnd(err) {
		t.Fatalf("expected clean end, got %v", err)
	}
	skipped := 16000 * 2 / 4
	if len(out) != 32000-skipped {
		t.Fatalf("expected %d bytes after start offset, got %d", 32000-skipped, len(out))
	}
	if !bytes.Equal(out, src[wav.HeaderSize+skipped:]) {
		t.Error("expected output to start at the requested position")
	}
}

func TestWAVSeek(t *testing.T) {
	src := makeWAV(16000, 1, 16000)
	r := bytes.NewReader(src)
	var out bytes.Buffer

	dec := NewWAV()
	_ = dec.Init(Config{
		Input:  r.Read,
		Output: out.Write,
		Post:   func(StreamInfo) error { return nil },
	})
	defer dec.Destroy()

	seeker := dec.(Seeker)
	if _, err := seeker.SeekOffset(time.Second); err == nil {
		t.Error("expected seek before header to fail")
	}

	if err := dec.Process(); err != nil {
		t.Fatalf("header: %v", err)
	}

	offset, err := seeker.SeekOffset(500 * time.Millisecond)
	if err != nil {
		t.Fatalf("seek offset: %v", err)
	}
	if offset != int64(wav.HeaderSize+16000) {
		t.Fatalf("expected offset %d, got %d", wav.HeaderSize+16000, offset)
	}

	if _, err := r.Seek(offset, 0); err != nil {
		t.Fatalf("source seek: %v", err)
	}
	seeker.Reposition(offset)

	for err == nil {
		err = dec.Process()
	}
	if !IsEnd(err) {
		t.Fatalf("expected clean end, got %v", err)
	}
	if !bytes.Equal(out.Bytes(), src[offset:]) {
		t.Errorf("expected %d bytes from the seek point, got %d", len(src)-int(offset), out.Len())
	}

	beyond, _ := seeker.SeekOffset(10 * time.Second)
	if beyond != int64(len(src)) {
		t.Errorf("expected seek past end to clamp to %d, got %d", len(src), beyond)
	}
}
