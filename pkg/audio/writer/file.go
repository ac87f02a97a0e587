// ABOUTME: File writer for recordings
// ABOUTME: Back-patches the WAV header sizes when the recording is closed
package writer

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/wav"
)

// File writes to a local file
type File struct {
	f       *os.File
	typ     string
	format  audio.Format
	written int64
}

// NewFile creates a file writer
func NewFile() Writer {
	return &File{}
}

// Init creates or truncates the target file
func (w *File) Init(cfg Config) error {
	f, err := os.Create(filePath(cfg.Target))
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	w.f = f
	w.typ = cfg.Type
	w.format = cfg.Format
	w.written = 0
	return nil
}

// Write appends p
func (w *File) Write(p []byte) (int, error) {
	if w.f == nil {
		return 0, ErrNotOpen
	}
	n, err := w.f.Write(p)
	w.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("failed to write output: %w", err)
	}
	return n, nil
}

// Written returns the bytes written so far, headers included
func (w *File) Written() int64 {
	return w.written
}

// Destroy completes a WAV header and closes the file
func (w *File) Destroy() error {
	if w.f == nil {
		return nil
	}
	var patchErr error
	if w.typ == "wav" {
		patchErr = w.patchHeader()
	}
	closeErr := w.f.Close()
	w.f = nil
	return errors.Join(patchErr, closeErr)
}

func (w *File) patchHeader() error {
	if w.written < wav.HeaderSize {
		return fmt.Errorf("failed to finalize wav: only %d bytes written", w.written)
	}
	h := wav.Init(w.format.SampleRate, w.format.BitDepth, w.format.Channels)
	h.Complete(uint32(w.written - wav.HeaderSize))

	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek output: %w", err)
	}
	if _, err := w.f.Write(h.Marshal()); err != nil {
		return fmt.Errorf("failed to write wav header: %w", err)
	}
	return nil
}
