// ABOUTME: serve and discover subcommands
// ABOUTME: Runs the WebSocket stream server, or lists servers found over mDNS
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/audioserver/internal/discovery"
	"github.com/Resonate-Protocol/audioserver/internal/server"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	opts := addCommonFlags(fs)
	port := fs.Int("port", 0, "WebSocket server port (default from config)")
	name := fs.String("name", "", "Server name (default: hostname-audio-server)")
	root := fs.String("root", "", "Media directory to serve and record into")
	noMDNS := fs.Bool("no-mdns", false, "Disable mDNS advertisement")
	fs.Parse(args)

	c, closeLog, err := setup(opts, !opts.noTUI)
	if err != nil {
		return err
	}
	defer closeLog()

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
	if opts.noTUI {
		c.Set("server.tui", false)
	}

	cfg, err := c.ServerConfig()
	if err != nil {
		return err
	}
	return serve(cfg)
}

// serve runs srv until SIGINT or SIGTERM
func serve(cfg server.Config) error {
	slog.Info("starting stream server", "name", cfg.Name, "port", cfg.Port, "root", cfg.Root)
	srv := server.New(cfg)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		slog.Info("received signal, shutting down", "signal", sig)
		srv.Stop()
	}()

	return srv.Start()
}

func runDiscover(args []string) error {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	opts := addCommonFlags(fs)
	wait := fs.Duration("wait", 5*time.Second, "How long to browse")
	fs.Parse(args)

	_, closeLog, err := setup(opts, false)
	if err != nil {
		return err
	}
	defer closeLog()

	mgr := discovery.NewManager(discovery.Config{})
	defer mgr.Stop()
	if err := mgr.Browse(); err != nil {
		return err
	}

	seen := make(map[string]bool)
	deadline := time.After(*wait)
	for {
		select {
		case info := <-mgr.Servers():
			key := info.Name + "@" + info.Addr()
			if seen[key] {
				continue
			}
			seen[key] = true
			fmt.Printf("%-30s ws://%s  (mdns://%s/)\n", info.Name, info.Addr(), info.Name)
		case <-deadline:
			if len(seen) == 0 {
				fmt.Println("no stream servers found")
			}
			return nil
		}
	}
}
