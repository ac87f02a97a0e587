// ABOUTME: Lifecycle states and listener notifications
// ABOUTME: Shared by Player and Recorder
package audioserver

// State is the lifecycle state of a player or recorder
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	}
	return "unknown"
}

// active reports whether a session owns the pipeline
func (s State) active() bool {
	return s == StateRunning || s == StatePaused
}

// PlayInfo is a player notification
type PlayInfo int

const (
	// InfoPreprocess is sent once the source is open
	InfoPreprocess PlayInfo = iota
	// InfoDecode is sent when the stream format is known and decoding starts
	InfoDecode
	InfoPaused
	InfoResumed
	// InfoIdle is sent when the held playback device is released
	InfoIdle
	// InfoStop is the terminal notification of every session
	InfoStop
)

func (i PlayInfo) String() string {
	switch i {
	case InfoPreprocess:
		return "preprocess"
	case InfoDecode:
		return "decode"
	case InfoPaused:
		return "paused"
	case InfoResumed:
		return "resumed"
	case InfoIdle:
		return "idle"
	case InfoStop:
		return "stop"
	}
	return "unknown"
}

// RecordInfo is a recorder notification
type RecordInfo int

const (
	// RecordInfoWriter is sent once the writer is open
	RecordInfoWriter RecordInfo = iota
	// RecordInfoEncode is sent when encoding starts
	RecordInfoEncode
	RecordInfoPaused
	RecordInfoResumed
	// RecordInfoStop is the terminal notification of every take
	RecordInfoStop
)

func (i RecordInfo) String() string {
	switch i {
	case RecordInfoWriter:
		return "writer"
	case RecordInfoEncode:
		return "encode"
	case RecordInfoPaused:
		return "paused"
	case RecordInfoResumed:
		return "resumed"
	case RecordInfoStop:
		return "stop"
	}
	return "unknown"
}
