// ABOUTME: Long-lived playback stage owning the output device
// ABOUTME: Reuses the device across sessions with the same format and releases it after DeviceHold
package audioserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/decode"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/output"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/resample"
)

// playbackPeriod is the amount of audio moved to the device per write
const playbackPeriod = 20 * time.Millisecond

type openRequest struct {
	s      *session
	format audio.Format
	reply  chan error
}

type deviceRequest struct {
	wait bool
	done chan error
}

func (p *Player) playbackLoop() {
	defer close(p.quitDone)

	for {
		var hold *time.Timer
		var holdC <-chan time.Time
		if p.hasDevice() {
			hold = time.NewTimer(p.config.DeviceHold)
			holdC = hold.C
		}

		select {
		case req := <-p.openCh:
			p.runSession(req)
		case <-holdC:
			p.log.Debug("releasing idle device")
			if err := p.releaseDevice(true); err != nil {
				p.log.Warn("failed to release device", "err", err)
			}
			p.post(InfoIdle)
		case req := <-p.devCtl:
			had := p.hasDevice()
			req.done <- p.releaseDevice(req.wait)
			if had {
				p.post(InfoIdle)
			}
		case <-p.quit:
			if hold != nil {
				hold.Stop()
			}
			if err := p.releaseDevice(false); err != nil {
				p.log.Warn("failed to release device", "err", err)
			}
			return
		}

		if hold != nil {
			hold.Stop()
		}
	}
}

func (p *Player) runSession(req *openRequest) {
	s := req.s
	dev, rs, err := p.prepareDevice(s, req.format)
	if err != nil {
		req.reply <- err
		close(s.playbackDone)
		return
	}
	req.reply <- nil
	p.playSession(s, dev, rs, req.format)
}

// prepareDevice reuses the held device when its config matches
func (p *Player) prepareDevice(s *session, format audio.Format) (output.Device, *resample.Resampler, error) {
	rate := format.SampleRate
	var rs *resample.Resampler
	if p.config.ResampleRate > 0 && p.config.ResampleRate != rate {
		var err error
		rs, err = resample.New(rate, p.config.ResampleRate, format.Channels, format.BitDepth)
		if err != nil {
			return nil, nil, err
		}
		rate = p.config.ResampleRate
	}

	devFormat := audio.Format{SampleRate: rate, Channels: format.Channels, BitDepth: format.BitDepth}
	cfg := output.Config{
		SampleRate: rate,
		Bits:       format.BitDepth,
		Channels:   format.Channels,
		FrameSize:  int(devFormat.Bytes(playbackPeriod)),
		Card:       p.config.Card,
		Reverb:     s.cfg.EnableReverb,
		Mix:        s.cfg.EnableMix,
	}

	p.devMu.Lock()
	defer p.devMu.Unlock()

	if p.dev != nil && p.devCfg == cfg {
		if p.devAborted {
			if err := p.dev.Start(); err != nil {
				return nil, nil, fmt.Errorf("failed to restart device: %w", err)
			}
			p.devAborted = false
		}
		s.log.Debug("reusing device", "config", cfg.String())
		return p.dev, rs, nil
	}

	if p.dev != nil {
		s.log.Debug("device format change", "from", p.devCfg.String(), "to", cfg.String())
		if err := closeDevice(p.dev, !p.devAborted); err != nil {
			s.log.Warn("failed to close device", "err", err)
		}
		p.dev = nil
	}

	dev, err := p.config.Device(p.config.Card)
	if err != nil {
		return nil, nil, err
	}
	if err := dev.Open(cfg); err != nil {
		dev.Close()
		return nil, nil, err
	}
	if err := dev.Start(); err != nil {
		dev.Close()
		return nil, nil, err
	}
	p.dev = dev
	p.devCfg = cfg
	p.devAborted = false
	p.applyVolumeLocked()
	s.log.Info("device opened", "config", cfg.String())
	return dev, rs, nil
}

// playSession moves PCM from the session's stream to the device
func (p *Player) playSession(s *session, dev output.Device, rs *resample.Resampler, format audio.Format) {
	defer close(s.playbackDone)

	size := int(format.Bytes(playbackPeriod))
	if size <= 0 {
		size = format.FrameSize()
	}
	buf := make([]byte, size)

	for {
		if !s.gate.wait(s.aborted) {
			return
		}

		gen := s.generation()
		n, err := s.pcm.Read(buf)
		if n > 0 {
			out := buf[:n]
			if rs != nil {
				out = rs.Process(out)
			}
			if len(out) > 0 {
				if _, werr := dev.Write(out); werr != nil {
					if !s.isAborted() {
						s.fail(fmt.Errorf("failed to write to device: %w", werr))
					}
					return
				}
			}
			s.advance(gen, int64(n))
		}
		if err != nil {
			// io.EOF after a drained stream, ErrAborted on stop or failure
			return
		}
	}
}

func (p *Player) hasDevice() bool {
	p.devMu.Lock()
	defer p.devMu.Unlock()
	return p.dev != nil
}

// abortDevice releases a blocked device write
func (p *Player) abortDevice() {
	p.devMu.Lock()
	defer p.devMu.Unlock()
	if p.dev == nil {
		return
	}
	if err := p.dev.Abort(); err != nil {
		p.log.Warn("failed to abort device", "err", err)
	}
	p.devAborted = true
}

// applyVolumeLocked pushes the volume to the device; devices without
// software volume ignore it
func (p *Player) applyVolumeLocked() {
	vc, ok := p.dev.(output.VolumeControl)
	if !ok {
		return
	}
	vc.SetVolume(p.volume)
	vc.SetMuted(p.muted)
}

func (p *Player) releaseDevice(wait bool) error {
	p.devMu.Lock()
	dev, aborted := p.dev, p.devAborted
	p.dev = nil
	p.devAborted = false
	p.devMu.Unlock()

	if dev == nil {
		return nil
	}
	p.log.Info("device released", "drain", wait && !aborted)
	return closeDevice(dev, wait && !aborted)
}

func closeDevice(dev output.Device, drain bool) error {
	var stopErr error
	if drain {
		stopErr = dev.Stop()
	} else {
		stopErr = dev.Abort()
	}
	return errors.Join(stopErr, dev.Close())
}

func (p *Player) setFileLength(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fileLength = n
}

func (p *Player) setStreamInfo(info decode.StreamInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.format = info.Format
	if info.Duration > 0 {
		p.totalTime = info.Duration
	}
}
