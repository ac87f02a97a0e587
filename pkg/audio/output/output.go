// ABOUTME: Playback device interface used by the player's playback stage
// ABOUTME: Devices accept interleaved PCM bytes in the format they were opened with
package output

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotOpen is returned when writing to a device that is not open
	ErrNotOpen = errors.New("output device not open")

	// ErrAborted is returned to a writer blocked when the device was aborted
	ErrAborted = errors.New("output device aborted")
)

// Config describes the PCM stream a device is opened for
type Config struct {
	SampleRate int
	Bits       int
	Channels   int

	// FrameSize is the preferred write size in bytes (0 = device default)
	FrameSize int

	// Card selects a device; empty means the system default
	Card string

	// Reverb and Mix are feature flags passed through to capable devices
	Reverb bool
	Mix    bool
}

// String formats the config for logs
func (c Config) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", c.SampleRate, c.Channels, c.Bits)
}

// bytesPerSecond returns the PCM byte rate of the config
func (c Config) bytesPerSecond() int {
	return c.SampleRate * c.Channels * c.Bits / 8
}

// duration returns how long n bytes play for
func (c Config) duration(n int) time.Duration {
	rate := c.bytesPerSecond()
	if rate == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}

// Device is an audio sink
type Device interface {
	// Open configures the device for a PCM format
	Open(cfg Config) error

	// Start begins playback
	Start() error

	// Write blocks until p has been accepted and returns the bytes taken
	Write(p []byte) (int, error)

	// Stop drains queued audio and stops playback
	Stop() error

	// Abort discards queued audio immediately and releases blocked writers
	Abort() error

	// Close releases the device
	Close() error
}

// Factory creates a device for a card name
type Factory func(card string) (Device, error)

// VolumeControl is implemented by devices with software volume
type VolumeControl interface {
	SetVolume(volume int)
	SetMuted(muted bool)
	Volume() int
	Muted() bool
}
