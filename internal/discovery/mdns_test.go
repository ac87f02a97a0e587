// ABOUTME: Tests for mDNS discovery
// ABOUTME: Covers manager setup, entry name parsing and address formatting
package discovery

import (
	"net"
	"testing"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Kitchen", Port: 8927})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	if mgr.Servers() == nil {
		t.Error("expected servers channel")
	}
	mgr.Stop()
	select {
	case <-mgr.ctx.Done():
	default:
		t.Error("expected Stop to cancel the manager context")
	}
}

func TestInstanceName(t *testing.T) {
	tests := []struct {
		full     string
		expected string
	}{
		{"kitchen._audioserver._tcp.local.", "kitchen"},
		{"Living\\ Room._audioserver._tcp.local.", "Living Room"},
		{"bare", "bare"},
	}

	for _, tt := range tests {
		t.Run(tt.full, func(t *testing.T) {
			if got := instanceName(tt.full); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestEntryInfo(t *testing.T) {
	entry := &mdns.ServiceEntry{
		Name:   "den._audioserver._tcp.local.",
		Host:   "den.local.",
		AddrV4: net.ParseIP("192.168.1.20"),
		Port:   8927,
	}

	info := entryInfo(entry)
	if info.Name != "den" {
		t.Errorf("expected den, got %s", info.Name)
	}
	if info.Addr() != "192.168.1.20:8927" {
		t.Errorf("expected 192.168.1.20:8927, got %s", info.Addr())
	}

	entry.AddrV4 = nil
	if got := entryInfo(entry).Host; got != "den.local." {
		t.Errorf("expected host fallback, got %s", got)
	}
}
