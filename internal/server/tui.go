// ABOUTME: Server TUI listing active streams, recordings and live listeners
// ABOUTME: Real-time server status display using bubbletea and lipgloss
package server

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ServerTUI manages the server TUI
type ServerTUI struct {
	program  *tea.Program
	updates  chan ServerStatus
	quitChan chan struct{}
	ready    chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// ServerStatus holds server state for the TUI
type ServerStatus struct {
	Name      string
	Port      int
	Root      string
	Transfers []TransferInfo
}

// TransferInfo describes one connection for display
type TransferInfo struct {
	Kind    string
	Name    string
	Remote  string
	Bytes   int64
	Elapsed time.Duration
}

type tuiModel struct {
	status    ServerStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type statusMsg ServerStatus

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}
	case tickMsg:
		return m, tickEvery()
	case statusMsg:
		m.status = ServerStatus(msg)
	}
	return m, nil
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	listStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
)

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Audio Stream Server"))
	b.WriteString("\n\n")

	field := func(name, value string) {
		b.WriteString(headerStyle.Render(name + ": "))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	field("Server", m.status.Name)
	field("Port", fmt.Sprintf("%d", m.status.Port))
	field("Root", m.status.Root)
	field("Uptime", time.Since(m.startTime).Round(time.Second).String())
	b.WriteString("\n")

	b.WriteString(listStyle.Render(fmt.Sprintf("Active Transfers (%d)", len(m.status.Transfers))))
	b.WriteString("\n\n")

	if len(m.status.Transfers) == 0 {
		b.WriteString(valueStyle.Render("  No active transfers"))
		b.WriteString("\n")
	}
	for _, t := range m.status.Transfers {
		b.WriteString(fmt.Sprintf("  • %-6s %s", t.Kind, t.Name))
		b.WriteString(valueStyle.Render(fmt.Sprintf(" (%s, %s, %s)",
			t.Remote, formatBytes(t.Bytes), t.Elapsed.Round(time.Second))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))
	return b.String()
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d B", n)
}

// NewServerTUI creates a server TUI
func NewServerTUI() *ServerTUI {
	return &ServerTUI{
		updates:  make(chan ServerStatus, 10),
		quitChan: make(chan struct{}, 1),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the TUI until it quits
func (t *ServerTUI) Start(name string, port int, root string) error {
	select {
	case <-t.done:
		return nil
	default:
	}

	m := tuiModel{
		status:    ServerStatus{Name: name, Port: port, Root: root},
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}
	t.program = tea.NewProgram(m, tea.WithAltScreen())
	close(t.ready)

	go func() {
		for {
			select {
			case status := <-t.updates:
				t.program.Send(statusMsg(status))
			case <-t.done:
				return
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update without blocking
func (t *ServerTUI) Update(status ServerStatus) {
	select {
	case t.updates <- status:
	default:
	}
}

// Stop quits the TUI
func (t *ServerTUI) Stop() {
	t.stopOnce.Do(func() {
		close(t.done)
		select {
		case <-t.ready:
			t.program.Quit()
		default:
		}
	})
}

// QuitChan signals when the user asks to quit
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
