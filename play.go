// ABOUTME: play and probe subcommands
// ABOUTME: Plays a target through the player with an optional TUI, or reports its format
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
	"github.com/Resonate-Protocol/audioserver/internal/ui"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/output"
	"github.com/Resonate-Protocol/audioserver/pkg/audioserver"
	tea "github.com/charmbracelet/bubbletea"
)

const statusInterval = 250 * time.Millisecond

func runPlay(args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	opts := addCommonFlags(fs)
	start := fs.Duration("start", 0, "Start offset into the stream")
	typ := fs.String("type", "", "Decoder type override (wav, mp3, flac, ogg, opus, pcm)")
	device := fs.String("device", "", "Playback device: oto, malgo, discard")
	rate := fs.Int("rate", 0, "Sample rate of headerless pcm input")
	channels := fs.Int("channels", 0, "Channels of headerless pcm input")
	bits := fs.Int("bits", 0, "Bits per sample of headerless pcm input")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("%w: audioserver play [flags] <target>", errUsage)
	}
	target := fs.Arg(0)

	c, closeLog, err := setup(opts, !opts.noTUI)
	if err != nil {
		return err
	}
	defer closeLog()

	pcfg, err := c.PlayerConfig()
	if err != nil {
		return err
	}
	if *device != "" {
		if pcfg.Device, err = config.OutputDevice(*device); err != nil {
			return err
		}
	}

	stopped := make(chan struct{}, 1)
	errs := make(chan error, 1)
	pcfg.Listener = func(_ *audioserver.Player, info audioserver.PlayInfo) {
		slog.Debug("player notification", "info", info)
		if info == audioserver.InfoStop {
			select {
			case stopped <- struct{}{}:
			default:
			}
		}
	}
	pcfg.OnError = func(err error) {
		slog.Error("playback failed", "target", target, "err", err)
		select {
		case errs <- err:
		default:
		}
	}

	player, err := audioserver.NewPlayer(pcfg)
	if err != nil {
		return err
	}
	defer player.Destroy()
	player.SetVolume(c.Volume())

	err = player.Play(audioserver.PlayConfig{
		Target:     audioserver.Borrowed(target),
		Type:       *typ,
		SampleRate: *rate,
		Channels:   *channels,
		Bits:       *bits,
		StartTime:  *start,
		Freq:       freqFor(target),
	})
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if opts.noTUI {
		slog.Info("playing", "target", target)
		select {
		case <-stopped:
		case <-sigChan:
			slog.Info("shutdown signal received")
			_ = player.Stop()
		}
		select {
		case err := <-errs:
			return err
		default:
		}
		slog.Info("playback finished", "position", player.CurrentTime())
		return nil
	}

	return playTUI(player, target, c.Volume(), sigChan, errs)
}

// playTUI drives the player from the TUI until the user quits
func playTUI(player *audioserver.Player, target string, volume int, sigChan <-chan os.Signal, errs <-chan error) error {
	controls := ui.NewControls()
	prog := ui.Run(controls, volume)

	progDone := make(chan struct{})
	go func() {
		defer close(progDone)
		if _, err := prog.Run(); err != nil {
			slog.Error("tui failed", "err", err)
		}
	}()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	var lastErr error
	send := func() {
		f := player.Format()
		prog.Send(ui.StatusMsg{
			Target:     target,
			State:      player.State().String(),
			Err:        lastErr,
			Codec:      f.Codec,
			SampleRate: f.SampleRate,
			Channels:   f.Channels,
			BitDepth:   f.BitDepth,
			Position:   player.CurrentTime(),
			Total:      player.TotalTime(),
		})
	}

	for {
		select {
		case a := <-controls.Actions:
			applyAction(player, a)
			send()
		case v := <-controls.Volume:
			player.SetVolume(v.Volume)
			player.SetMuted(v.Muted)
		case err := <-errs:
			lastErr = err
			send()
		case <-ticker.C:
			send()
		case <-controls.Quit:
			<-progDone
			return nil
		case <-progDone:
			return nil
		case <-sigChan:
			prog.Send(tea.Quit())
			<-progDone
			return nil
		}
	}
}

func applyAction(player *audioserver.Player, a ui.Action) {
	var err error
	switch a.Kind {
	case ui.ActionTogglePause:
		if player.State() == audioserver.StatePaused {
			err = player.Resume()
		} else {
			err = player.Pause()
		}
	case ui.ActionSeek:
		pos := max(player.CurrentTime()+a.Offset, 0)
		err = player.Seek(pos)
	case ui.ActionStop:
		err = player.Stop()
	}
	if err != nil {
		slog.Warn("player action failed", "action", a.Kind, "err", err)
	}
}

func runProbe(args []string) error {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	opts := addCommonFlags(fs)
	typ := fs.String("type", "", "Decoder type override")
	timeout := fs.Duration("timeout", 10*time.Second, "Give up after this long")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("%w: audioserver probe [flags] <target>", errUsage)
	}
	target := fs.Arg(0)

	c, closeLog, err := setup(opts, false)
	if err != nil {
		return err
	}
	defer closeLog()

	pcfg, err := c.PlayerConfig()
	if err != nil {
		return err
	}
	pcfg.Device = output.NewDiscard(false)

	errs := make(chan error, 1)
	pcfg.OnError = func(err error) {
		select {
		case errs <- err:
		default:
		}
	}

	player, err := audioserver.NewPlayer(pcfg)
	if err != nil {
		return err
	}
	defer player.Destroy()

	err = player.Play(audioserver.PlayConfig{
		Target:   audioserver.Borrowed(target),
		Type:     *typ,
		Freq:     freqFor(target),
		InfoOnly: true,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := player.WaitIdle(ctx); err != nil {
		return fmt.Errorf("probe timed out: %w", err)
	}

	if player.State() == audioserver.StateError {
		// OnError is delivered on the notification goroutine
		select {
		case err := <-errs:
			return err
		case <-time.After(time.Second):
			return fmt.Errorf("probe failed")
		}
	}

	f := player.Format()
	fmt.Printf("target:     %s\n", target)
	fmt.Printf("codec:      %s\n", f.Codec)
	fmt.Printf("format:     %d Hz, %d ch, %d bit\n", f.SampleRate, f.Channels, f.BitDepth)
	if total := player.TotalTime(); total > 0 {
		fmt.Printf("duration:   %s\n", total)
	} else {
		fmt.Printf("duration:   unknown\n")
	}
	if n := player.FileLength(); n >= 0 {
		fmt.Printf("size:       %d bytes\n", n)
	}
	return nil
}
