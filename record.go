// ABOUTME: record subcommand
// ABOUTME: Captures from the configured device into a file or stream server
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/audioserver/internal/config"
	"github.com/Resonate-Protocol/audioserver/pkg/audioserver"
)

func runRecord(args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	opts := addCommonFlags(fs)
	typ := fs.String("type", "", "Encoder type: wav, pcm, opus (default from config)")
	duration := fs.Duration("duration", 0, "Stop after this long; 0 records until interrupted")
	device := fs.String("device", "", "Capture device: malgo, tone, file")
	card := fs.String("card", "", "Capture card, or the WAV path for the file device")
	rate := fs.Int("rate", 0, "Sample rate (default from config)")
	channels := fs.Int("channels", 0, "Channels (default from config)")
	bits := fs.Int("bits", 0, "Bits per sample (default from config)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("%w: audioserver record [flags] <target>", errUsage)
	}
	target := fs.Arg(0)

	c, closeLog, err := setup(opts, false)
	if err != nil {
		return err
	}
	defer closeLog()

	rcfg, err := c.RecorderConfig()
	if err != nil {
		return err
	}
	if *device != "" {
		if rcfg.Device, err = config.CaptureDevice(*device); err != nil {
			return err
		}
	}
	if *card != "" {
		rcfg.Card = *card
	}

	format := c.RecordFormat()
	if *rate > 0 {
		format.SampleRate = *rate
	}
	if *channels > 0 {
		format.Channels = *channels
	}
	if *bits > 0 {
		format.BitDepth = *bits
	}
	encoder := c.Encoder()
	if *typ != "" {
		encoder = *typ
	}

	errs := make(chan error, 1)
	rcfg.Listener = func(_ *audioserver.Recorder, info audioserver.RecordInfo) {
		slog.Debug("recorder notification", "info", info)
	}
	rcfg.OnError = func(err error) {
		slog.Error("recording failed", "target", target, "err", err)
		select {
		case errs <- err:
		default:
		}
	}

	rec, err := audioserver.NewRecorder(rcfg)
	if err != nil {
		return err
	}
	defer rec.Destroy()

	err = rec.Record(audioserver.RecordConfig{
		Target:   audioserver.Borrowed(target),
		Type:     encoder,
		Format:   format,
		Duration: *duration,
	})
	if err != nil {
		return err
	}
	slog.Info("recording", "target", target, "type", encoder,
		"rate", format.SampleRate, "channels", format.Channels, "bits", format.BitDepth)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	idle := make(chan struct{})
	go func() {
		defer close(idle)
		rec.WaitIdle(context.Background())
	}()

	select {
	case <-idle:
	case <-sigChan:
		slog.Info("shutdown signal received")
		if err := rec.Stop(); err != nil {
			return err
		}
		<-idle
	}

	if rec.State() == audioserver.StateError {
		select {
		case err := <-errs:
			return err
		case <-time.After(time.Second):
			return fmt.Errorf("recording failed")
		}
	}
	fmt.Printf("recorded %s to %s\n", rec.CurrentTime().Round(time.Millisecond), target)
	return nil
}
