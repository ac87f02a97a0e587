// ABOUTME: Writer plug-in interface for encoded recording output
// ABOUTME: Selects file or WebSocket sinks from a target URI
package writer

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
)

var (
	// ErrNotOpen is returned when writing before Init or after Destroy
	ErrNotOpen = errors.New("writer not open")

	// ErrUnsupportedScheme is returned for target URIs no writer handles
	ErrUnsupportedScheme = errors.New("unsupported target scheme")
)

// Config describes the sink to open
type Config struct {
	// Target is a path, file:// or ws(s):// URI
	Target string

	// Type is the encoder type producing the bytes, e.g. "wav"
	Type string

	// Format is the PCM format the encoder consumes
	Format audio.Format

	// Timeout bounds connection setup for network sinks
	Timeout time.Duration
}

// Writer consumes encoded bytes
type Writer interface {
	Init(cfg Config) error
	Write(p []byte) (int, error)

	// Destroy flushes and closes the sink
	Destroy() error
}

// Factory creates an uninitialized writer
type Factory func() Writer

// ForTarget returns a writer for the URI's scheme
func ForTarget(uri string) (Writer, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "", "file":
		return NewFile(), nil
	case "ws", "wss":
		return NewWebSocket(), nil
	default:
		if len(u.Scheme) == 1 {
			return NewFile(), nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

func filePath(uri string) string {
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" {
		return u.Path
	}
	return uri
}
