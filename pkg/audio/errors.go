// ABOUTME: Sentinel errors shared by queues, streams and pipeline stages
// ABOUTME: Callers classify failures with errors.Is
package audio

import "errors"

var (
	// ErrAlloc is returned when a buffer cannot be created with the requested size
	ErrAlloc = errors.New("audio: invalid buffer size")

	// ErrAborted is returned to callers blocked on a stopped queue or stream
	ErrAborted = errors.New("audio: aborted")

	// ErrWouldBlock is returned by non-blocking calls that would have waited
	ErrWouldBlock = errors.New("audio: operation would block")
)
