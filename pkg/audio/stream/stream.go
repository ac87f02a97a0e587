// ABOUTME: Fixed-capacity byte pipe between the decode and playback stages
// ABOUTME: Blocking and non-blocking read/write with finish, stop, reset and resume
package stream

import (
	"io"
	"sync"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
)

// Stream is a ring buffer of bytes with one writer and one reader
type Stream struct {
	mu       sync.Mutex
	readable *sync.Cond
	writable *sync.Cond

	buf      []byte
	rpos     int
	used     int
	stopped  bool
	finished bool
}

// New creates a stream with a backing buffer of size bytes
func New(size int) (*Stream, error) {
	if size <= 0 {
		return nil, audio.ErrAlloc
	}
	s := &Stream{buf: make([]byte, size)}
	s.readable = sync.NewCond(&s.mu)
	s.writable = sync.NewCond(&s.mu)
	return s, nil
}

// Start rewinds the cursors and clears stop and finish
func (s *Stream) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rpos = 0
	s.used = 0
	s.stopped = false
	s.finished = false
	s.writable.Broadcast()
}

// Write copies all of p into the stream, blocking while it is full
func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for written < len(p) {
		for !s.stopped && !s.finished && s.used == len(s.buf) {
			s.writable.Wait()
		}
		if s.stopped {
			return written, audio.ErrAborted
		}
		if s.finished {
			return written, io.ErrClosedPipe
		}
		written += s.put(p[written:])
		s.readable.Broadcast()
	}
	return written, nil
}

// TryWrite copies as much of p as fits without waiting
func (s *Stream) TryWrite(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.stopped:
		return 0, audio.ErrAborted
	case s.finished:
		return 0, io.ErrClosedPipe
	case len(p) == 0:
		return 0, nil
	case s.used == len(s.buf):
		return 0, audio.ErrWouldBlock
	}
	n := s.put(p)
	s.readable.Broadcast()
	return n, nil
}

// Read fills p, blocking until it is full. A finished stream returns
// what is left and then io.EOF; a stopped stream returns ErrAborted.
func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	read := 0
	for read < len(p) {
		for !s.stopped && !s.finished && s.used == 0 {
			s.readable.Wait()
		}
		if s.stopped {
			return read, audio.ErrAborted
		}
		if s.used == 0 {
			if read > 0 {
				return read, nil
			}
			return 0, io.EOF
		}
		read += s.take(p[read:])
		s.writable.Broadcast()
	}
	return read, nil
}

// TryRead copies whatever is buffered into p without waiting
func (s *Stream) TryRead(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.stopped:
		return 0, audio.ErrAborted
	case len(p) == 0:
		return 0, nil
	case s.used == 0 && s.finished:
		return 0, io.EOF
	case s.used == 0:
		return 0, audio.ErrWouldBlock
	}
	n := s.take(p)
	s.writable.Broadcast()
	return n, nil
}

// Finish marks the end of data; readers drain what is buffered
func (s *Stream) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finished = true
	s.readable.Broadcast()
	s.writable.Broadcast()
}

// Stop aborts every blocked and future call until Resume or Reset
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	s.readable.Broadcast()
	s.writable.Broadcast()
}

// StopDiscard stops the stream and drops buffered bytes
func (s *Stream) StopDiscard() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	s.rpos = 0
	s.used = 0
	s.readable.Broadcast()
	s.writable.Broadcast()
}

// Resume clears a previous Stop, keeping buffered bytes
func (s *Stream) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = false
	s.readable.Broadcast()
	s.writable.Broadcast()
}

// Reset returns the stream to its freshly created state
func (s *Stream) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.buf)
	s.rpos = 0
	s.used = 0
	s.stopped = false
	s.finished = false
	s.writable.Broadcast()
}

// Flush drops buffered bytes without aborting the reader or writer
func (s *Stream) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rpos = 0
	s.used = 0
	s.writable.Broadcast()
}

// Len returns the number of buffered bytes
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// Free returns the number of bytes that can be written without blocking
func (s *Stream) Free() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf) - s.used
}

// Cap returns the size of the backing buffer
func (s *Stream) Cap() int {
	return len(s.buf)
}

func (s *Stream) put(p []byte) int {
	n := min(len(p), len(s.buf)-s.used)
	wpos := (s.rpos + s.used) % len(s.buf)
	first := copy(s.buf[wpos:], p[:n])
	copy(s.buf, p[first:n])
	s.used += n
	return n
}

func (s *Stream) take(p []byte) int {
	n := min(len(p), s.used)
	first := copy(p[:n], s.buf[s.rpos:])
	copy(p[first:n], s.buf)
	s.rpos = (s.rpos + n) % len(s.buf)
	s.used -= n
	return n
}
