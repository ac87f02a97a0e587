// ABOUTME: Capture device that replays a WAV file
// ABOUTME: Uses go-audio/wav to read samples and converts them to the opened bit depth
package capture

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// File replays a WAV file; the card name is the file path
type File struct {
	path string

	mu      sync.Mutex
	f       *os.File
	dec     *gowav.Decoder
	cfg     Config
	buf     *goaudio.IntBuffer
	shift   int
	started bool
	stopped bool
}

// NewFile creates a WAV replay device for path
func NewFile(path string) (Device, error) {
	if path == "" {
		return nil, fmt.Errorf("file capture needs a path")
	}
	return &File{path: path}, nil
}

// Open checks the file matches the requested rate and channel count
func (d *File) Open(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	f, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("failed to open capture file: %w", err)
	}
	dec := gowav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return fmt.Errorf("invalid WAV file: %s", d.path)
	}
	if int(dec.SampleRate) != cfg.SampleRate || int(dec.NumChans) != cfg.Channels {
		f.Close()
		return fmt.Errorf("capture file is %dHz/%dch, want %s", dec.SampleRate, dec.NumChans, cfg)
	}

	var shift int
	switch dec.BitDepth {
	case 16:
		shift = 8
	case 24:
		shift = 0
	case 32:
		shift = -8
	default:
		f.Close()
		return fmt.Errorf("unsupported WAV bit depth: %d", dec.BitDepth)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.f = f
	d.dec = dec
	d.cfg = cfg
	d.shift = shift
	return nil
}

// Start arms reading; PCM starts where the previous run stopped
func (d *File) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dec == nil {
		return ErrNotOpen
	}
	d.started = true
	d.stopped = false
	return nil
}

// Read returns whole frames converted to the opened bit depth
func (d *File) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return 0, ErrNotOpen
	}
	if d.stopped {
		return 0, io.EOF
	}

	want := len(p) / d.cfg.frameBytes() * d.cfg.Channels
	if want == 0 {
		return 0, nil
	}
	if d.buf == nil || len(d.buf.Data) != want {
		d.buf = &goaudio.IntBuffer{
			Format: &goaudio.Format{NumChannels: d.cfg.Channels, SampleRate: d.cfg.SampleRate},
			Data:   make([]int, want),
		}
	}

	n, err := d.dec.PCMBuffer(d.buf)
	n -= n % d.cfg.Channels
	if n == 0 {
		if err != nil {
			return 0, fmt.Errorf("failed to read capture file: %w", err)
		}
		d.stopped = true
		return 0, io.EOF
	}

	samples := make([]int32, n)
	for i, v := range d.buf.Data[:n] {
		if d.shift >= 0 {
			samples[i] = int32(v) << d.shift
		} else {
			samples[i] = int32(v) >> -d.shift
		}
	}
	return copy(p, audio.PackSamples(samples, d.cfg.Bits)), nil
}

// Stop ends the replay
func (d *File) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	return nil
}

// Abort ends the replay; reads never block
func (d *File) Abort() error {
	return d.Stop()
}

// Close closes the file
func (d *File) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	d.dec = nil
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
