// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and carries key actions to the caller
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// ActionKind identifies a transport action
type ActionKind int

const (
	ActionTogglePause ActionKind = iota
	ActionSeek
	ActionStop
)

func (k ActionKind) String() string {
	switch k {
	case ActionTogglePause:
		return "toggle-pause"
	case ActionSeek:
		return "seek"
	case ActionStop:
		return "stop"
	}
	return "unknown"
}

// Action is a transport request from the keyboard
type Action struct {
	Kind ActionKind
	// Offset is relative to the current position for ActionSeek
	Offset time.Duration
}

// VolumeChangeMsg carries a volume or mute change
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
}

// Controls holds channels for communication from the TUI to the player
type Controls struct {
	Actions chan Action
	Volume  chan VolumeChangeMsg
	Quit    chan struct{}
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Actions: make(chan Action, 10),
		Volume:  make(chan VolumeChangeMsg, 10),
		Quit:    make(chan struct{}, 1),
	}
}

func (c *Controls) send(a Action) {
	if c == nil {
		return
	}
	select {
	case c.Actions <- a:
	default:
	}
}

func (c *Controls) sendVolume(volume int, muted bool) {
	if c == nil {
		return
	}
	select {
	case c.Volume <- VolumeChangeMsg{Volume: volume, Muted: muted}:
	default:
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- struct{}{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls, volume int) Model {
	return Model{
		state:    "idle",
		volume:   volume,
		controls: controls,
	}
}

// Run creates the TUI program; the caller runs it
func Run(controls *Controls, volume int) *tea.Program {
	return tea.NewProgram(NewModel(controls, volume), tea.WithAltScreen())
}
