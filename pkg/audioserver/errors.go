// ABOUTME: Sentinel errors returned by the player and recorder
// ABOUTME: Compared with errors.Is; stage failures wrap the plug-in errors
package audioserver

import (
	"errors"

	"github.com/Resonate-Protocol/audioserver/pkg/audio/decode"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/encode"
)

var (
	// ErrNotRunning is returned by operations that need an active session
	ErrNotRunning = errors.New("no active session")

	// ErrSeekUnsupported is returned when the decoder or source cannot seek
	ErrSeekUnsupported = errors.New("seek not supported for this stream")

	// ErrUnknownType is returned when no decoder is registered for a type
	ErrUnknownType = decode.ErrUnknownType

	// ErrUnknownEncoder is returned when no encoder is registered for a type
	ErrUnknownEncoder = encode.ErrUnknownType

	// ErrDeviceBusy is returned when releasing a device a session is using
	ErrDeviceBusy = errors.New("device in use by an active session")

	// ErrDestroyed is returned by a player or recorder after Destroy
	ErrDestroyed = errors.New("destroyed")

	// ErrNoTarget is returned when a session has no target URI
	ErrNoTarget = errors.New("no target")
)
