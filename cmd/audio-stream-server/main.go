// ABOUTME: Entry point for the standalone audio stream server
// ABOUTME: Parses CLI flags and serves media, recordings and live capture over WebSocket
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Resonate-Protocol/audioserver/internal/config"
	"github.com/Resonate-Protocol/audioserver/internal/logging"
	"github.com/Resonate-Protocol/audioserver/internal/server"
	"github.com/Resonate-Protocol/audioserver/internal/version"
)

var (
	configFile = flag.String("config", "", "Config file (YAML, JSON or TOML)")
	port       = flag.Int("port", 0, "WebSocket server port (default 8927)")
	name       = flag.String("name", "", "Server friendly name (default: hostname-audio-server)")
	root       = flag.String("root", "", "Media directory to serve and record into")
	logLevel   = flag.String("log-level", "", "Log level: none, error, warn, info, debug")
	logFile    = flag.String("log-file", "", "Log file path (default: audio-stream-server.log with the TUI)")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	liveDevice = flag.String("live-device", "", "Capture device behind /live: tone, malgo, file")
)

func main() {
	flag.Parse()

	c, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		c.Set("loglevel", *logLevel)
	}
	if *logFile != "" {
		c.Set("logfile", *logFile)
	}
	if *port > 0 {
		c.Set("server.port", *port)
	}
	if *name != "" {
		c.Set("server.name", *name)
	}
	if *root != "" {
		c.Set("server.root", *root)
	}
	if *noMDNS {
		c.Set("server.mdns", false)
	}
	if *noTUI {
		c.Set("server.tui", false)
	}
	if *liveDevice != "" {
		c.Set("server.livedevice", *liveDevice)
	}

	// The TUI owns the terminal, so logs go to a file
	file := c.LogFile()
	if !*noTUI && file == "" {
		file = "audio-stream-server.log"
	}
	f, err := logging.ConfigureDefaultLogger(c.LogLevel(), file, slog.HandlerOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if f != nil {
		defer f.Close()
	}

	cfg, err := c.ServerConfig()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	slog.Info("starting", "version", version.String(), "name", cfg.Name, "port", cfg.Port, "root", cfg.Root)
	srv := server.New(cfg)

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		slog.Info("received signal, shutting down gracefully", "signal", sig)
		srv.Stop()
	}()

	// Start server
	if err := srv.Start(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
