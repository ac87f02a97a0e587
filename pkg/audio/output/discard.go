// ABOUTME: Playback device that throws audio away
// ABOUTME: Optionally paced at the stream's real-time rate for headless runs
package output

import (
	"sync"
	"time"
)

// Discard accepts PCM without playing it
type Discard struct {
	realtime bool

	mu      sync.Mutex
	cfg     Config
	open    bool
	written int64
	aborted chan struct{}
}

// NewDiscard returns a factory for discard devices; realtime paces writes
// at the byte rate of the opened format
func NewDiscard(realtime bool) Factory {
	return func(string) (Device, error) {
		return &Discard{realtime: realtime, aborted: make(chan struct{})}, nil
	}
}

// Open records the format
func (d *Discard) Open(cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
	d.open = true
	return nil
}

// Start re-arms the device after an abort
func (d *Discard) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return ErrNotOpen
	}
	select {
	case <-d.aborted:
		d.aborted = make(chan struct{})
	default:
	}
	return nil
}

// Write counts p and, when paced, blocks for its playing time
func (d *Discard) Write(p []byte) (int, error) {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return 0, ErrNotOpen
	}
	cfg, aborted := d.cfg, d.aborted
	d.mu.Unlock()

	if d.realtime {
		select {
		case <-time.After(cfg.duration(len(p))):
		case <-aborted:
			return 0, ErrAborted
		}
	}

	d.mu.Lock()
	d.written += int64(len(p))
	d.mu.Unlock()
	return len(p), nil
}

// Stop is immediate; nothing is buffered
func (d *Discard) Stop() error {
	return nil
}

// Abort releases a paced writer
func (d *Discard) Abort() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	select {
	case <-d.aborted:
	default:
		close(d.aborted)
	}
	return nil
}

// Close marks the device closed
func (d *Discard) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}

// Written returns the number of bytes accepted so far
func (d *Discard) Written() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written
}
