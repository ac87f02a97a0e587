// ABOUTME: Pause gate shared by the player and recorder pipelines
// ABOUTME: A paused gate blocks its stage until resume or abort
package audioserver

import "sync"

// gate blocks a consuming stage while paused
type gate struct {
	mu      sync.Mutex
	paused  bool
	resumed chan struct{}
}

func newGate() *gate {
	return &gate{}
}

func (g *gate) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused {
		g.paused = true
		g.resumed = make(chan struct{})
	}
}

func (g *gate) resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused {
		g.paused = false
		close(g.resumed)
	}
}

// wait returns false if abort closed while paused
func (g *gate) wait(abort <-chan struct{}) bool {
	g.mu.Lock()
	paused, resumed := g.paused, g.resumed
	g.mu.Unlock()

	if !paused {
		return true
	}
	select {
	case <-resumed:
		return true
	case <-abort:
		return false
	}
}

func (g *gate) isPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}
