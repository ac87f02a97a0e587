// ABOUTME: Local file preprocessor
// ABOUTME: Seekable source backed by os.File
package preprocess

import (
	"fmt"
	"io"
	"os"
)

// File reads a local file
type File struct {
	f    *os.File
	size int64
	typ  string
}

// NewFile creates a file preprocessor
func NewFile() Preprocessor {
	return &File{size: -1}
}

// Init opens the file
func (p *File) Init(cfg Config) error {
	name := filePath(cfg.URI)
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat source: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return fmt.Errorf("source is a directory: %s", name)
	}

	p.f = f
	p.size = info.Size()
	p.typ = TypeFromPath(name)
	return nil
}

// Read reads from the file
func (p *File) Read(b []byte) (int, error) {
	if p.f == nil {
		return 0, os.ErrClosed
	}
	return p.f.Read(b)
}

// Seek moves to offset bytes from the start
func (p *File) Seek(offset int64) error {
	if p.f == nil {
		return os.ErrClosed
	}
	if _, err := p.f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek source: %w", err)
	}
	return nil
}

// CanSeek is always true for files
func (p *File) CanSeek() bool { return true }

// Size returns the file length
func (p *File) Size() int64 { return p.size }

// Type returns the hint derived from the extension
func (p *File) Type() string { return p.typ }

// Destroy closes the file
func (p *File) Destroy() {
	if p.f != nil {
		p.f.Close()
		p.f = nil
	}
}
