// ABOUTME: Capture device interface used by the recorder's capture stage
// ABOUTME: Devices deliver interleaved PCM bytes in the format they were opened with
package capture

import (
	"errors"
	"fmt"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
)

var (
	// ErrNotOpen is returned when reading from a device that is not started
	ErrNotOpen = errors.New("capture device not open")

	// ErrAborted is returned to a reader blocked when the device was aborted
	ErrAborted = errors.New("capture device aborted")
)

// Config describes the PCM a device should capture
type Config struct {
	SampleRate int
	Bits       int
	Channels   int

	// FrameSize is the preferred read size in bytes (0 = device default)
	FrameSize int

	// Card selects a device; empty means the system default
	Card string
}

// String formats the config for logs
func (c Config) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", c.SampleRate, c.Channels, c.Bits)
}

func (c Config) validate() error {
	f := audio.Format{SampleRate: c.SampleRate, Channels: c.Channels, BitDepth: c.Bits}
	if !f.Valid() {
		return fmt.Errorf("unsupported capture format %s", c)
	}
	return nil
}

func (c Config) frameBytes() int {
	return c.Channels * c.Bits / 8
}

// Device is an audio source
type Device interface {
	// Open configures the device for a PCM format
	Open(cfg Config) error

	// Start begins capturing
	Start() error

	// Read blocks until PCM is available. After Stop it drains what was
	// captured and then returns io.EOF.
	Read(p []byte) (int, error)

	// Stop ends capturing gracefully
	Stop() error

	// Abort discards captured audio and releases blocked readers
	Abort() error

	// Close releases the device
	Close() error
}

// Factory creates a device for a card name
type Factory func(card string) (Device, error)
