// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling, and rendering helpers
package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func press(m Model, key string) Model {
	var msg tea.KeyMsg
	switch key {
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestNewModel(t *testing.T) {
	model := NewModel(nil, 80) // Controls are optional for testing

	if model.state != "idle" {
		t.Errorf("expected state idle, got %s", model.state)
	}

	if model.volume != 80 {
		t.Errorf("expected volume 80, got %d", model.volume)
	}

	if model.muted {
		t.Error("expected muted to be false initially")
	}
}

func TestStatusMsgStreamInfo(t *testing.T) {
	model := NewModel(nil, 100)

	model.applyStatus(StatusMsg{
		Target:     "song.flac",
		State:      "running",
		Codec:      "pcm",
		SampleRate: 44100,
		Channels:   2,
		BitDepth:   16,
		Position:   3 * time.Second,
		Total:      time.Minute,
	})

	if model.target != "song.flac" {
		t.Errorf("expected target 'song.flac', got '%s'", model.target)
	}
	if model.state != "running" {
		t.Errorf("expected state 'running', got '%s'", model.state)
	}
	if model.sampleRate != 44100 || model.channels != 2 || model.bitDepth != 16 {
		t.Errorf("unexpected format %d/%d/%d", model.sampleRate, model.channels, model.bitDepth)
	}
	if model.position != 3*time.Second || model.total != time.Minute {
		t.Errorf("unexpected position %v/%v", model.position, model.total)
	}
}

func TestStatusMsgKeepsFormat(t *testing.T) {
	model := NewModel(nil, 100)

	model.applyStatus(StatusMsg{Codec: "pcm", SampleRate: 48000, Channels: 2, BitDepth: 16})
	model.applyStatus(StatusMsg{State: "paused", Position: time.Second})

	if model.sampleRate != 48000 {
		t.Error("format should survive a status without one")
	}
	if model.state != "paused" {
		t.Errorf("expected paused, got %s", model.state)
	}
}

func TestStatusMsgError(t *testing.T) {
	model := NewModel(nil, 100)

	model.applyStatus(StatusMsg{State: "error", Err: errors.New("decode failed")})

	if model.errMsg != "decode failed" {
		t.Errorf("expected error message, got '%s'", model.errMsg)
	}
	if !strings.Contains(model.withSize().View(), "decode failed") {
		t.Error("expected error in view")
	}
}

func (m Model) withSize() Model {
	m.width = 80
	m.height = 24
	return m
}

func TestVolumeKeys(t *testing.T) {
	ctrl := NewControls()
	model := NewModel(ctrl, 100)

	model = press(model, "up")
	if model.volume != 100 {
		t.Errorf("expected volume capped at 100, got %d", model.volume)
	}

	model = press(model, "down")
	model = press(model, "down")
	if model.volume != 90 {
		t.Errorf("expected volume 90, got %d", model.volume)
	}

	var last VolumeChangeMsg
	for len(ctrl.Volume) > 0 {
		last = <-ctrl.Volume
	}
	if last.Volume != 90 || last.Muted {
		t.Errorf("expected last change 90 unmuted, got %+v", last)
	}

	for i := 0; i < 30; i++ {
		model = press(model, "down")
	}
	if model.volume != 0 {
		t.Errorf("expected volume floored at 0, got %d", model.volume)
	}
}

func TestMuteKey(t *testing.T) {
	ctrl := NewControls()
	model := press(NewModel(ctrl, 50), "m")

	if !model.muted {
		t.Error("expected muted after m")
	}
	msg := <-ctrl.Volume
	if !msg.Muted || msg.Volume != 50 {
		t.Errorf("expected muted at 50, got %+v", msg)
	}
}

func TestTransportKeys(t *testing.T) {
	tests := []struct {
		key      string
		expected Action
	}{
		{" ", Action{Kind: ActionTogglePause}},
		{"left", Action{Kind: ActionSeek, Offset: -5 * time.Second}},
		{"right", Action{Kind: ActionSeek, Offset: 5 * time.Second}},
		{"s", Action{Kind: ActionStop}},
	}

	for _, tt := range tests {
		ctrl := NewControls()
		press(NewModel(ctrl, 100), tt.key)

		select {
		case got := <-ctrl.Actions:
			if got != tt.expected {
				t.Errorf("key %q: expected %+v, got %+v", tt.key, tt.expected, got)
			}
		default:
			t.Errorf("key %q: expected an action", tt.key)
		}
	}
}

func TestQuitKey(t *testing.T) {
	ctrl := NewControls()
	_, cmd := NewModel(ctrl, 100).Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	select {
	case <-ctrl.Quit:
	default:
		t.Error("expected quit signal")
	}
}

func TestKeysWithoutControls(t *testing.T) {
	model := NewModel(nil, 100)
	for _, key := range []string{" ", "left", "s", "up", "m", "q"} {
		model = press(model, key)
	}
}

func TestViewListsKeys(t *testing.T) {
	view := NewModel(nil, 100).withSize().View()
	for _, want := range []string{"space:Pause", "m:Mute", "q:Quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in help", want)
		}
	}
}

func TestViewLoading(t *testing.T) {
	if NewModel(nil, 100).View() != "Loading..." {
		t.Error("expected loading view before the first window size")
	}
}

func TestViewLiveSource(t *testing.T) {
	model := NewModel(nil, 100).withSize()
	model.applyStatus(StatusMsg{Position: 65 * time.Second})

	view := model.View()
	if !strings.Contains(view, "1:05 (live)") {
		t.Errorf("expected live elapsed time in view:\n%s", view)
	}
}

func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"this is longer than allowed", 10, "this is..."},
		{"", 10, ""},
		{"abcd", 4, "abcd"},
		{"abcde", 4, "a..."},
		{"████████", 5, "██..."},
	}

	for _, tt := range tests {
		result := truncate(tt.input, tt.maxLen)
		if result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q",
				tt.input, tt.maxLen, result, tt.expected)
		}
	}
}

func TestChannelNameFunction(t *testing.T) {
	tests := []struct {
		channels int
		expected string
	}{
		{1, "Mono"},
		{2, "Stereo"},
		{6, "6ch"},
	}

	for _, tt := range tests {
		result := channelName(tt.channels)
		if result != tt.expected {
			t.Errorf("channelName(%d) = %q, expected %q",
				tt.channels, result, tt.expected)
		}
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value, max int
		expected   string
	}{
		{0, 100, "░░░░░░░░░░"},
		{50, 100, "█████░░░░░"},
		{100, 100, "██████████"},
		{5, 0, "░░░░░░░░░░"},
	}

	for _, tt := range tests {
		if got := renderBar(tt.value, tt.max, 10); got != tt.expected {
			t.Errorf("renderBar(%d, %d) = %q, expected %q", tt.value, tt.max, got, tt.expected)
		}
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{0, "0:00"},
		{59 * time.Second, "0:59"},
		{61*time.Second + 600*time.Millisecond, "1:02"},
		{time.Hour, "60:00"},
	}

	for _, tt := range tests {
		if got := formatTime(tt.d); got != tt.expected {
			t.Errorf("formatTime(%v) = %q, expected %q", tt.d, got, tt.expected)
		}
	}
}
