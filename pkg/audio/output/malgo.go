// ABOUTME: Malgo-based playback device with 24-bit support
// ABOUTME: Feeds the miniaudio callback from a ring buffer that blocks writers when full
package output

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/gen2brain/malgo"
)

// RingBuffer provides thread-safe circular buffer for audio samples
type RingBuffer struct {
	buffer   []int32
	readPos  int
	writePos int
	size     int
	count    int // Number of samples currently in buffer
	mu       sync.Mutex
}

// NewRingBuffer creates a ring buffer with given capacity (in samples)
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		buffer: make([]int32, capacity),
		size:   capacity,
	}
}

// Write adds samples to the ring buffer and returns how many fit
func (rb *RingBuffer) Write(samples []int32) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for i := 0; i < len(samples) && rb.count < rb.size; i++ {
		rb.buffer[rb.writePos] = samples[i]
		rb.writePos = (rb.writePos + 1) % rb.size
		rb.count++
		written++
	}
	return written
}

// Read retrieves samples, zero-filling on underrun
func (rb *RingBuffer) Read(samples []int32) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for i := 0; i < len(samples) && rb.count > 0; i++ {
		samples[i] = rb.buffer[rb.readPos]
		rb.readPos = (rb.readPos + 1) % rb.size
		rb.count--
		read++
	}
	for i := read; i < len(samples); i++ {
		samples[i] = 0
	}
	return read
}

// Reset drops all buffered samples
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.readPos = 0
	rb.writePos = 0
	rb.count = 0
}

// Available returns the number of samples available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Free returns the number of free slots in the buffer
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size - rb.count
}

// Malgo plays audio through miniaudio
type Malgo struct {
	volume

	card string

	mu         sync.Mutex
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	cfg        Config
	ringBuffer *RingBuffer
	space      chan struct{}
	aborted    chan struct{}
	callbuf    []int32
}

// NewMalgo creates a malgo device for card (empty = default)
func NewMalgo(card string) (Device, error) {
	return &Malgo{volume: volume{level: 100}, card: card}, nil
}

// Open initializes the device with specified format
func (m *Malgo) Open(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil && m.cfg.SampleRate == cfg.SampleRate && m.cfg.Channels == cfg.Channels && m.cfg.Bits == cfg.Bits {
		return nil
	}
	if m.device != nil {
		slog.Info("format change, reinitializing malgo device", "from", m.cfg.String(), "to", cfg.String())
		m.closeDevice()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	format, err := malgoFormat(cfg.Bits)
	if err != nil {
		return err
	}

	// 500ms of buffered audio
	m.ringBuffer = NewRingBuffer(cfg.SampleRate * cfg.Channels / 2)
	m.space = make(chan struct{}, 1)
	m.aborted = make(chan struct{})

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = format
	deviceConfig.Playback.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1
	if m.card != "" {
		id, err := findDevice(m.malgoCtx, malgo.Playback, m.card)
		if err != nil {
			return err
		}
		deviceConfig.Playback.DeviceID = id.Pointer()
	}

	m.cfg = cfg
	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			m.dataCallback(pOutput, frameCount)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	m.device = device

	slog.Info("malgo output opened", "format", cfg.String(), "sample format", formatName(format))
	return nil
}

// Start starts the device callback
func (m *Malgo) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotOpen
	}
	select {
	case <-m.aborted:
		m.aborted = make(chan struct{})
	default:
	}
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to start device: %w", err)
	}
	return nil
}

// Write queues p for playback, blocking while the ring buffer is full
func (m *Malgo) Write(p []byte) (int, error) {
	m.mu.Lock()
	rb, space, aborted, bits := m.ringBuffer, m.space, m.aborted, m.cfg.Bits
	m.mu.Unlock()

	if rb == nil {
		return 0, ErrNotOpen
	}

	samples := audio.Samples(p, bits)
	applyVolume(samples, m.multiplier())

	written := 0
	for written < len(samples) {
		written += rb.Write(samples[written:])
		if written == len(samples) {
			break
		}
		select {
		case <-space:
		case <-aborted:
			return 0, ErrAborted
		case <-time.After(50 * time.Millisecond):
		}
	}
	return len(p), nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	total := int(frameCount) * m.cfg.Channels
	if cap(m.callbuf) < total {
		m.callbuf = make([]int32, total)
	}
	samples := m.callbuf[:total]
	m.ringBuffer.Read(samples)
	copy(pOutput, audio.PackSamples(samples, m.cfg.Bits))

	select {
	case m.space <- struct{}{}:
	default:
	}
}

// Stop waits for buffered audio to play out and stops the device
func (m *Malgo) Stop() error {
	m.mu.Lock()
	rb := m.ringBuffer
	m.mu.Unlock()

	if rb != nil {
		deadline := time.Now().Add(2 * time.Second)
		for rb.Available() > 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			return fmt.Errorf("failed to stop device: %w", err)
		}
	}
	return nil
}

// Abort drops buffered audio and releases blocked writers
func (m *Malgo) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.aborted != nil {
		select {
		case <-m.aborted:
		default:
			close(m.aborted)
		}
	}
	if m.ringBuffer != nil {
		m.ringBuffer.Reset()
	}
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			return fmt.Errorf("failed to stop device: %w", err)
		}
	}
	return nil
}

// Close releases the device and the malgo context
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			slog.Warn("malgo context uninit error", "err", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device == nil {
		return
	}
	if err := m.device.Stop(); err != nil {
		slog.Warn("malgo device stop error", "err", err)
	}
	m.device.Uninit()
	m.device = nil
}

func malgoFormat(bits int) (malgo.FormatType, error) {
	switch bits {
	case 16:
		return malgo.FormatS16, nil
	case 24:
		return malgo.FormatS24, nil
	case 32:
		return malgo.FormatS32, nil
	}
	return malgo.FormatUnknown, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24, 32)", bits)
}

// findDevice looks a device up by case-insensitive name prefix
func findDevice(ctx *malgo.AllocatedContext, kind malgo.DeviceType, name string) (malgo.DeviceID, error) {
	infos, err := ctx.Devices(kind)
	if err != nil {
		return malgo.DeviceID{}, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, info := range infos {
		if strings.HasPrefix(strings.ToLower(info.Name()), strings.ToLower(name)) {
			return info.ID, nil
		}
	}
	return malgo.DeviceID{}, fmt.Errorf("no audio device matching %q", name)
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS24:
		return "S24"
	case malgo.FormatS32:
		return "S32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
