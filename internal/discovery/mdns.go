// ABOUTME: mDNS service discovery for audio stream servers
// ABOUTME: Handles advertisement by the server and browsing/resolution by players
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// ServiceType is the mDNS service stream servers advertise
const ServiceType = "_audioserver._tcp"

// ErrNotFound is returned when no server answers to a name
var ErrNotFound = errors.New("stream server not found")

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int
}

// Manager handles mDNS operations
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered server
type ServerInfo struct {
	Name string
	Host string
	Port int
}

// Addr returns host:port
func (s *ServerInfo) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprint(s.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// Advertise announces the stream server via mDNS until Stop
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"stream=/stream", "record=/record", "live=/live"},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	slog.Info("advertising mdns service", "name", m.config.ServiceName, "port", m.config.Port, "type", ServiceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for stream servers until Stop
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		go func() {
			for entry := range entries {
				server := entryInfo(entry)
				slog.Debug("discovered stream server", "name", server.Name, "addr", server.Addr())

				select {
				case m.servers <- server:
				case <-m.ctx.Done():
					return
				}
			}
		}()

		query(entries, 3*time.Second)
		close(entries)
	}
}

// Servers returns the channel of discovered servers
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop stops advertising and browsing
func (m *Manager) Stop() {
	m.cancel()
}

// Resolve looks up a single server by instance name
func Resolve(ctx context.Context, name string, timeout time.Duration) (*ServerInfo, error) {
	entries := make(chan *mdns.ServiceEntry, 10)
	found := make(chan *ServerInfo, 1)

	go func() {
		for entry := range entries {
			if instanceName(entry.Name) != name {
				continue
			}
			select {
			case found <- entryInfo(entry):
			default:
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		query(entries, timeout)
		close(entries)
		close(done)
	}()

	select {
	case server := <-found:
		return server, nil
	case <-done:
		select {
		case server := <-found:
			return server, nil
		default:
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func query(entries chan *mdns.ServiceEntry, timeout time.Duration) {
	params := &mdns.QueryParam{
		Service:             ServiceType,
		Domain:              "local",
		Timeout:             timeout,
		Entries:             entries,
		DisableIPv6:         true,
		WantUnicastResponse: false,
	}
	if err := mdns.Query(params); err != nil {
		slog.Debug("mdns query failed", "err", err)
	}
}

func entryInfo(entry *mdns.ServiceEntry) *ServerInfo {
	host := entry.Host
	if entry.AddrV4 != nil {
		host = entry.AddrV4.String()
	}
	return &ServerInfo{
		Name: instanceName(entry.Name),
		Host: host,
		Port: entry.Port,
	}
}

// instanceName strips the service and domain from an mDNS entry name
func instanceName(full string) string {
	name, _, _ := strings.Cut(full, "."+ServiceType)
	return strings.ReplaceAll(name, "\\ ", " ")
}

// getLocalIPs returns non-loopback IPv4 addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
