// ABOUTME: Preprocessor plug-in interface for raw media sources
// ABOUTME: Selects file, HTTP or WebSocket sources from a target URI
package preprocess

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
)

var (
	// ErrSeekUnsupported is returned by sources that cannot reposition
	ErrSeekUnsupported = errors.New("source does not support seeking")

	// ErrUnsupportedScheme is returned for target URIs no preprocessor handles
	ErrUnsupportedScheme = errors.New("unsupported target scheme")
)

// Config describes the source to open
type Config struct {
	// URI is a path, file://, http(s)://, ws(s):// or mdns:// target
	URI string

	// Timeout bounds connection setup for network sources
	Timeout time.Duration
}

// Preprocessor reads raw media bytes for a decoder
type Preprocessor interface {
	Init(cfg Config) error

	// Read returns raw bytes; io.EOF marks the end of the source
	Read(p []byte) (int, error)

	// Seek moves the read position to a byte offset from the start
	Seek(offset int64) error

	// Size returns the source length in bytes, or -1 when unknown
	Size() int64

	// Type returns a decoder type hint, or "" when unknown
	Type() string

	Destroy()
}

// Factory creates an uninitialized preprocessor
type Factory func() Preprocessor

type seekable interface {
	CanSeek() bool
}

// Seekable reports whether Seek can succeed on p
func Seekable(p Preprocessor) bool {
	s, ok := p.(seekable)
	return ok && s.CanSeek()
}

type formatter interface {
	Format() audio.Format
}

// FormatOf returns the PCM format a source announces, if any
func FormatOf(p Preprocessor) audio.Format {
	if f, ok := p.(formatter); ok {
		return f.Format()
	}
	return audio.Format{}
}

type interrupter interface {
	Interrupt()
}

// Interrupt unblocks a Read in progress on p when the source supports it.
// It may be called from any goroutine; the source is unusable afterwards.
func Interrupt(p Preprocessor) {
	if i, ok := p.(interrupter); ok {
		i.Interrupt()
	}
}

// ForTarget returns a preprocessor for the URI's scheme
func ForTarget(uri string) (Preprocessor, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "", "file":
		return NewFile(), nil
	case "http", "https":
		return NewHTTP(), nil
	case "ws", "wss", "mdns":
		return NewWebSocket(), nil
	default:
		// Windows drive letters parse as a scheme
		if len(u.Scheme) == 1 {
			return NewFile(), nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

// TypeFromPath maps a file extension to a decoder type
func TypeFromPath(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".wav", ".wave":
		return "wav"
	case ".mp3":
		return "mp3"
	case ".flac":
		return "flac"
	case ".ogg", ".oga":
		return "ogg"
	case ".opus", ".ops":
		return "opus"
	case ".pcm", ".raw":
		return "pcm"
	}
	return ""
}

// TypeFromContentType maps an HTTP media type to a decoder type
func TypeFromContentType(ct string) string {
	mt, _, _ := strings.Cut(strings.ToLower(ct), ";")
	switch strings.TrimSpace(mt) {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return "wav"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/flac", "audio/x-flac":
		return "flac"
	case "audio/ogg", "audio/vorbis":
		return "ogg"
	case "audio/opus":
		return "opus"
	case "audio/l16", "audio/pcm":
		return "pcm"
	}
	return ""
}

// filePath strips a file:// prefix
func filePath(uri string) string {
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" {
		return u.Path
	}
	return uri
}
