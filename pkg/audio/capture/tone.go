// ABOUTME: Test tone capture device
// ABOUTME: Generates a 440Hz sine wave, optionally paced at real time
package capture

import (
	"io"
	"math"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
)

// Tone generates a sine wave as if it were captured from a microphone
type Tone struct {
	frequency float64
	realtime  bool

	mu          sync.Mutex
	cfg         Config
	open        bool
	started     bool
	stopped     bool
	aborted     chan struct{}
	sampleIndex uint64
	startTime   time.Time
}

// NewTone returns a factory for 440Hz tone devices; realtime paces reads at
// the byte rate of the opened format
func NewTone(realtime bool) Factory {
	return func(string) (Device, error) {
		return &Tone{
			frequency: 440.0, // A4 note
			realtime:  realtime,
			aborted:   make(chan struct{}),
		}, nil
	}
}

// Open records the format
func (t *Tone) Open(cfg Config) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = cfg
	t.open = true
	return nil
}

// Start begins generating from phase zero
func (t *Tone) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return ErrNotOpen
	}
	select {
	case <-t.aborted:
		t.aborted = make(chan struct{})
	default:
	}
	t.started = true
	t.stopped = false
	t.sampleIndex = 0
	t.startTime = time.Now()
	return nil
}

// Read fills p with whole frames of the tone
func (t *Tone) Read(p []byte) (int, error) {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return 0, ErrNotOpen
	}
	if t.stopped {
		t.mu.Unlock()
		return 0, io.EOF
	}
	cfg, aborted := t.cfg, t.aborted
	frame := cfg.frameBytes()
	numFrames := len(p) / frame
	first := t.sampleIndex
	t.sampleIndex += uint64(numFrames)
	due := t.startTime.Add(time.Duration(t.sampleIndex) * time.Second / time.Duration(cfg.SampleRate))
	t.mu.Unlock()

	if t.realtime {
		select {
		case <-time.After(time.Until(due)):
		case <-aborted:
			return 0, ErrAborted
		}
	}

	samples := make([]int32, numFrames*cfg.Channels)
	for i := 0; i < numFrames; i++ {
		ts := float64(first+uint64(i)) / float64(cfg.SampleRate)
		sample := math.Sin(2 * math.Pi * t.frequency * ts)

		// 50% volume to avoid clipping
		pcmValue := int32(sample * audio.Max24Bit * 0.5)

		for ch := 0; ch < cfg.Channels; ch++ {
			samples[i*cfg.Channels+ch] = pcmValue
		}
	}
	return copy(p, audio.PackSamples(samples, cfg.Bits)), nil
}

// Stop makes subsequent reads return io.EOF
func (t *Tone) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	return nil
}

// Abort releases a paced reader
func (t *Tone) Abort() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	select {
	case <-t.aborted:
	default:
		close(t.aborted)
	}
	return nil
}

// Close marks the device closed
func (t *Tone) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = false
	t.started = false
	return nil
}
