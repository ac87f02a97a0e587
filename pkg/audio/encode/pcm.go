// ABOUTME: PCM and WAV encoders
// ABOUTME: WAV writes a provisional header that the file writer patches on close
package encode

import "github.com/Resonate-Protocol/audioserver/pkg/audio/wav"

const pcmChunkBytes = 4096

// PCMEncoder copies frame-aligned PCM through unchanged
type PCMEncoder struct {
	base

	typ    string
	header bool
	buf    []byte
}

// NewPCM creates a raw PCM encoder
func NewPCM() Encoder {
	return &PCMEncoder{typ: "pcm"}
}

// NewWAV creates an encoder that prefixes PCM with a WAV header
func NewWAV() Encoder {
	return &PCMEncoder{typ: "wav"}
}

// Type returns "pcm" or "wav"
func (e *PCMEncoder) Type() string { return e.typ }

// Init binds the encoder to its callbacks
func (e *PCMEncoder) Init(cfg Config) error {
	if err := e.base.init(cfg); err != nil {
		return err
	}
	frame := cfg.Format.FrameSize()
	e.buf = make([]byte, pcmChunkBytes-pcmChunkBytes%frame)
	e.header = e.typ == "wav"
	return nil
}

// Process writes the header first (wav) and then one chunk of PCM per call
func (e *PCMEncoder) Process() error {
	if e.header {
		e.header = false
		f := e.cfg.Format
		h := wav.Init(f.SampleRate, f.BitDepth, f.Channels)
		return e.write(h.Marshal())
	}

	n, err := e.read(e.buf)
	n -= n % e.cfg.Format.FrameSize()
	if werr := e.write(e.buf[:n]); werr != nil {
		return werr
	}
	if err != nil {
		return inputErr(err)
	}
	return nil
}

// Destroy releases encoder resources
func (e *PCMEncoder) Destroy() {
	e.buf = nil
}
