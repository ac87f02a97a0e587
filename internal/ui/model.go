// ABOUTME: Bubbletea model for the player TUI
// ABOUTME: Shows target, format, position and volume; keys drive the player
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	seekStep   = 5 * time.Second
	volumeStep = 5
	boxWidth   = 54
)

type keyMap struct {
	Pause      key.Binding
	SeekBack   key.Binding
	SeekFwd    key.Binding
	VolumeUp   key.Binding
	VolumeDown key.Binding
	Mute       key.Binding
	Stop       key.Binding
	Quit       key.Binding
}

var keys = keyMap{
	Pause:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "Pause")),
	SeekBack:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "-5s")),
	SeekFwd:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "+5s")),
	VolumeUp:   key.NewBinding(key.WithKeys("up", "k", "+"), key.WithHelp("↑", "Vol+")),
	VolumeDown: key.NewBinding(key.WithKeys("down", "j", "-"), key.WithHelp("↓", "Vol-")),
	Mute:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "Mute")),
	Stop:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "Stop")),
	Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "Quit")),
}

func helpLine(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+":"+h.Desc)
	}
	return strings.Join(parts, "  ")
}

// Model represents the TUI state
type Model struct {
	// Session
	target string
	state  string
	errMsg string

	// Stream
	codec      string
	sampleRate int
	channels   int
	bitDepth   int

	// Position
	position time.Duration
	total    time.Duration

	// Volume
	volume int
	muted  bool

	controls *Controls

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderStreamInfo()
	s += m.renderPosition()
	s += m.renderControls()
	s += m.renderHelp()

	return s
}

func line(text string) string {
	return fmt.Sprintf("│ %-*s │\n", boxWidth-4, truncate(text, boxWidth-4))
}

// renderHeader renders target and state
func (m Model) renderHeader() string {
	s := "┌─ Audio Player ─────────────────────────────────────┐\n"
	s += line("Target: " + m.target)
	s += line("State:  " + m.state)
	if m.errMsg != "" {
		s += line("Error:  " + m.errMsg)
	}
	s += "├────────────────────────────────────────────────────┤\n"
	return s
}

// renderStreamInfo renders the decoded format
func (m Model) renderStreamInfo() string {
	if m.sampleRate == 0 {
		return line("Format: (waiting for decoder)")
	}
	return line(fmt.Sprintf("Format: %s %dHz %s %d-bit",
		m.codec, m.sampleRate, channelName(m.channels), m.bitDepth))
}

// renderPosition renders a progress bar, or elapsed time for live sources
func (m Model) renderPosition() string {
	if m.total <= 0 {
		return line(fmt.Sprintf("Time:   %s (live)", formatTime(m.position)))
	}
	pos := m.position
	if pos > m.total {
		pos = m.total
	}
	bar := renderBar(int(pos/time.Millisecond), int(m.total/time.Millisecond), 20)
	return line(fmt.Sprintf("Time:   [%s] %s / %s", bar, formatTime(pos), formatTime(m.total)))
}

// renderControls renders volume status
func (m Model) renderControls() string {
	muteText := ""
	if m.muted {
		muteText = " (muted)"
	}
	return line(fmt.Sprintf("Volume: [%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteText))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return "├────────────────────────────────────────────────────┤\n" +
		line(helpLine(keys.Pause, keys.SeekBack, keys.SeekFwd, keys.VolumeUp, keys.VolumeDown)) +
		line(helpLine(keys.Mute, keys.Stop, keys.Quit)) +
		"└────────────────────────────────────────────────────┘\n"
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.controls.quit()
		return m, tea.Quit
	case key.Matches(msg, keys.Pause):
		m.controls.send(Action{Kind: ActionTogglePause})
	case key.Matches(msg, keys.SeekBack):
		m.controls.send(Action{Kind: ActionSeek, Offset: -seekStep})
	case key.Matches(msg, keys.SeekFwd):
		m.controls.send(Action{Kind: ActionSeek, Offset: seekStep})
	case key.Matches(msg, keys.Stop):
		m.controls.send(Action{Kind: ActionStop})
	case key.Matches(msg, keys.VolumeUp):
		m.volume = min(m.volume+volumeStep, 100)
		m.controls.sendVolume(m.volume, m.muted)
	case key.Matches(msg, keys.VolumeDown):
		m.volume = max(m.volume-volumeStep, 0)
		m.controls.sendVolume(m.volume, m.muted)
	case key.Matches(msg, keys.Mute):
		m.muted = !m.muted
		m.controls.sendVolume(m.volume, m.muted)
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Target != "" {
		m.target = msg.Target
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Err != nil {
		m.errMsg = msg.Err.Error()
	}
	if msg.SampleRate != 0 {
		m.codec = msg.Codec
		m.sampleRate = msg.SampleRate
		m.channels = msg.Channels
		m.bitDepth = msg.BitDepth
	}
	m.position = msg.Position
	m.total = msg.Total
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Target     string
	State      string
	Err        error
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
	Position   time.Duration
	Total      time.Duration
}

// Utility functions
func renderBar(value, max, width int) string {
	if max <= 0 {
		return strings.Repeat("░", width)
	}
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length-3]) + "..."
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	}
	return fmt.Sprintf("%dch", channels)
}

func formatTime(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
