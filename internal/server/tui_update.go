// ABOUTME: Periodic status snapshots for the server TUI
// ABOUTME: Converts tracked connections into display rows
package server

import (
	"sort"
	"time"
)

const statusInterval = 500 * time.Millisecond

// statusLoop pushes server state to the TUI until Stop
func (s *Server) statusLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.tui.Update(s.status())
		}
	}
}

// status builds a snapshot of the server
func (s *Server) status() ServerStatus {
	conns := s.Conns()
	sort.Slice(conns, func(i, j int) bool {
		return conns[i].Started.Before(conns[j].Started)
	})

	transfers := make([]TransferInfo, 0, len(conns))
	for _, c := range conns {
		transfers = append(transfers, TransferInfo{
			Kind:    c.Kind,
			Name:    c.Name,
			Remote:  c.Remote,
			Bytes:   c.Bytes(),
			Elapsed: time.Since(c.Started),
		})
	}

	return ServerStatus{
		Name:      s.config.Name,
		Port:      s.config.Port,
		Root:      s.config.Root,
		Transfers: transfers,
	}
}
