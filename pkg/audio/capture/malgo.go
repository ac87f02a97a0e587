// ABOUTME: Malgo-based microphone capture
// ABOUTME: The miniaudio callback fills a byte stream that Read drains
package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/stream"
	"github.com/gen2brain/malgo"
)

// Malgo captures from a miniaudio input device
type Malgo struct {
	card string

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	cfg      Config
	buf      *stream.Stream
	dropped  int64
}

// NewMalgo creates a malgo capture device for card (empty = default)
func NewMalgo(card string) (Device, error) {
	return &Malgo{card: card}, nil
}

// Open initializes the input device
func (m *Malgo) Open(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var format malgo.FormatType
	switch cfg.Bits {
	case 16:
		format = malgo.FormatS16
	case 24:
		format = malgo.FormatS24
	case 32:
		format = malgo.FormatS32
	default:
		return fmt.Errorf("unsupported bit depth: %d (supported: 16, 24, 32)", cfg.Bits)
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	// One second of captured audio
	buf, err := stream.New(cfg.SampleRate * cfg.frameBytes())
	if err != nil {
		return fmt.Errorf("failed to allocate capture buffer: %w", err)
	}
	m.buf = buf
	m.cfg = cfg

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = format
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.Alsa.NoMMap = 1
	if m.card != "" {
		id, err := findDevice(m.malgoCtx, m.card)
		if err != nil {
			return err
		}
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			m.dataCallback(pInput)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}
	m.device = device

	slog.Info("malgo capture opened", "format", cfg.String())
	return nil
}

// dataCallback copies captured bytes without blocking the audio thread
func (m *Malgo) dataCallback(pInput []byte) {
	n, err := m.buf.TryWrite(pInput)
	if n < len(pInput) && !errors.Is(err, audio.ErrAborted) {
		m.mu.Lock()
		m.dropped += int64(len(pInput) - n)
		m.mu.Unlock()
	}
}

// Start starts the capture callback
func (m *Malgo) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil {
		return ErrNotOpen
	}
	m.buf.Start()
	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

// Read returns captured PCM, blocking until some is available
func (m *Malgo) Read(p []byte) (int, error) {
	m.mu.Lock()
	buf := m.buf
	m.mu.Unlock()

	if buf == nil {
		return 0, ErrNotOpen
	}
	// Read whole frames only
	frame := m.cfg.frameBytes()
	p = p[:len(p)-len(p)%frame]
	n, err := buf.Read(p)
	if errors.Is(err, audio.ErrAborted) {
		return n, ErrAborted
	}
	return n, err
}

// Stop ends capturing; Read drains what was captured
func (m *Malgo) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			return fmt.Errorf("failed to stop capture device: %w", err)
		}
	}
	if m.buf != nil {
		m.buf.Finish()
	}
	if m.dropped > 0 {
		slog.Warn("capture overflow, audio dropped", "bytes", m.dropped)
	}
	return nil
}

// Abort drops captured audio and releases blocked readers
func (m *Malgo) Abort() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.buf != nil {
		m.buf.StopDiscard()
	}
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			return fmt.Errorf("failed to stop capture device: %w", err)
		}
	}
	return nil
}

// Close releases the device and the malgo context
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			slog.Warn("malgo context uninit error", "err", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

func findDevice(ctx *malgo.AllocatedContext, name string) (malgo.DeviceID, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceID{}, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}
	for _, info := range infos {
		if strings.HasPrefix(strings.ToLower(info.Name()), strings.ToLower(name)) {
			return info.ID, nil
		}
	}
	return malgo.DeviceID{}, fmt.Errorf("no capture device matching %q", name)
}
