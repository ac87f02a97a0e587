// ABOUTME: Software volume shared by the oto and malgo devices
// ABOUTME: Scales samples with clipping protection in 24-bit range
package output

import (
	"sync"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
)

// volume holds the software volume state of a device
type volume struct {
	mu    sync.Mutex
	level int
	muted bool
}

// SetVolume sets the volume (0-100)
func (v *volume) SetVolume(level int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.level = max(0, min(100, level))
}

// SetMuted sets mute state
func (v *volume) SetMuted(muted bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.muted = muted
}

// Volume returns current volume
func (v *volume) Volume() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.level
}

// Muted returns mute state
func (v *volume) Muted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.muted
}

func (v *volume) multiplier() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return getVolumeMultiplier(v.level, v.muted)
}

// applyVolume applies a multiplier to samples with clipping protection
func applyVolume(samples []int32, multiplier float64) {
	if multiplier == 1.0 {
		return
	}
	for i, sample := range samples {
		scaled := int64(float64(sample) * multiplier)
		if scaled > audio.Max24Bit {
			scaled = audio.Max24Bit
		} else if scaled < audio.Min24Bit {
			scaled = audio.Min24Bit
		}
		samples[i] = int32(scaled)
	}
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(level int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(level) / 100.0
}
