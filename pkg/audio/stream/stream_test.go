// ABOUTME: Tests for the byte stream
// ABOUTME: Covers round trips, blocking behaviour, finish, stop and reuse
package stream

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
)

func TestNewRejectsInvalidSize(t *testing.T) {
	if _, err := New(0); !errors.Is(err, audio.ErrAlloc) {
		t.Errorf("expected ErrAlloc, got %v", err)
	}
}

func TestRoundTripChunkSizes(t *testing.T) {
	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte(i)
	}

	tests := []struct {
		name      string
		writeSize int
		readSize  int
	}{
		{"equal chunks", 8, 8},
		{"small writes large reads", 3, 16},
		{"large writes small reads", 16, 5},
		{"single shot", 64, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(64)
			if err != nil {
				t.Fatalf("failed to create stream: %v", err)
			}
			for off := 0; off < len(payload); off += tt.writeSize {
				end := min(off+tt.writeSize, len(payload))
				if _, err := s.Write(payload[off:end]); err != nil {
					t.Fatalf("write: %v", err)
				}
			}
			s.Finish()

			var got bytes.Buffer
			chunk := make([]byte, tt.readSize)
			for {
				n, err := s.Read(chunk)
				got.Write(chunk[:n])
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("read: %v", err)
				}
			}
			if !bytes.Equal(got.Bytes(), payload) {
				t.Errorf("expected %v, got %v", payload, got.Bytes())
			}
		})
	}
}

func TestWrapAroundConcurrent(t *testing.T) {
	s, _ := New(7)
	payload := bytes.Repeat([]byte("abcdefghij"), 100)

	go func() {
		for off := 0; off < len(payload); off += 13 {
			end := min(off+13, len(payload))
			if _, err := s.Write(payload[off:end]); err != nil {
				return
			}
		}
		s.Finish()
	}()

	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload corrupted through wrap-around: got %d bytes", len(got))
	}
}

func TestTryWriteAndTryRead(t *testing.T) {
	s, _ := New(4)

	if _, err := s.TryRead(make([]byte, 2)); !errors.Is(err, audio.ErrWouldBlock) {
		t.Errorf("expected ErrWouldBlock on empty stream, got %v", err)
	}

	n, err := s.TryWrite([]byte{1, 2, 3, 4, 5, 6})
	if err != nil || n != 4 {
		t.Fatalf("expected partial write of 4, got %d (%v)", n, err)
	}
	if _, err := s.TryWrite([]byte{7}); !errors.Is(err, audio.ErrWouldBlock) {
		t.Errorf("expected ErrWouldBlock on full stream, got %v", err)
	}

	buf := make([]byte, 3)
	n, err = s.TryRead(buf)
	if err != nil || n != 3 {
		t.Fatalf("expected to read 3, got %d (%v)", n, err)
	}
	if s.Len() != 1 || s.Free() != 3 {
		t.Errorf("expected len=1 free=3, got len=%d free=%d", s.Len(), s.Free())
	}

	s.Finish()
	n, _ = s.TryRead(buf)
	if n != 1 {
		t.Errorf("expected final byte, got %d", n)
	}
	if _, err := s.TryRead(buf); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestWriteAfterFinishFails(t *testing.T) {
	s, _ := New(4)
	s.Finish()
	if _, err := s.Write([]byte{1}); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("expected io.ErrClosedPipe, got %v", err)
	}
}

func TestStopUnblocksReaderAndWriter(t *testing.T) {
	empty, _ := New(4)
	full, _ := New(2)
	_, _ = full.Write([]byte{1, 2})

	errs := make(chan error, 2)
	go func() {
		_, err := empty.Read(make([]byte, 1))
		errs <- err
	}()
	go func() {
		_, err := full.Write([]byte{3})
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	empty.Stop()
	full.Stop()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, audio.ErrAborted) {
				t.Errorf("expected ErrAborted, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("blocked caller was not released by Stop")
		}
	}
}

func TestStopBlocksDeliveryUntilResume(t *testing.T) {
	s, _ := New(8)
	_, _ = s.Write([]byte{1, 2, 3})
	s.Stop()

	if _, err := s.Read(make([]byte, 3)); !errors.Is(err, audio.ErrAborted) {
		t.Fatalf("expected ErrAborted after stop, got %v", err)
	}

	s.Resume()
	buf := make([]byte, 3)
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("read after resume: %v", err)
	}
	if !bytes.Equal(buf, []byte{1, 2, 3}) {
		t.Errorf("expected buffered bytes to survive resume, got %v", buf)
	}
}

func TestStopDiscardDropsData(t *testing.T) {
	s, _ := New(8)
	_, _ = s.Write([]byte{1, 2, 3})
	s.StopDiscard()
	s.Resume()

	if s.Len() != 0 {
		t.Errorf("expected no buffered bytes, got %d", s.Len())
	}
}

func TestResetAndFlush(t *testing.T) {
	s, _ := New(8)
	_, _ = s.Write([]byte{1, 2, 3})
	s.Flush()
	if s.Len() != 0 {
		t.Errorf("expected flush to empty stream, got %d", s.Len())
	}
	if _, err := s.TryWrite([]byte{4}); err != nil {
		t.Errorf("expected flush to keep stream usable, got %v", err)
	}

	s.Finish()
	s.Reset()
	if _, err := s.Write([]byte{5, 6}); err != nil {
		t.Fatalf("write after reset: %v", err)
	}
	buf := make([]byte, 2)
	if _, err := s.Read(buf); err != nil || !bytes.Equal(buf, []byte{5, 6}) {
		t.Errorf("expected [5 6], got %v (%v)", buf, err)
	}

	s.Stop()
	s.Start()
	if _, err := s.TryWrite([]byte{1}); err != nil {
		t.Errorf("expected start to clear stop, got %v", err)
	}
}
