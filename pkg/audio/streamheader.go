// ABOUTME: Metadata message exchanged at the start of a WebSocket audio stream
// ABOUTME: Sent as a JSON text frame before the binary media frames
package audio

// StreamHeader describes a media stream carried over WebSocket
type StreamHeader struct {
	Name string `json:"name"`

	// Size is the media length in bytes, or -1 when unknown
	Size int64 `json:"size"`

	// Type is a decoder or encoder type such as "wav"
	Type string `json:"type"`

	SampleRate int `json:"sample_rate,omitempty"`
	Channels   int `json:"channels,omitempty"`
	BitDepth   int `json:"bit_depth,omitempty"`
}
