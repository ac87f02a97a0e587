// ABOUTME: Entry point for the audioserver command line tool
// ABOUTME: Dispatches play, record, probe, serve and discover subcommands
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Resonate-Protocol/audioserver/internal/config"
	"github.com/Resonate-Protocol/audioserver/internal/logging"
	"github.com/Resonate-Protocol/audioserver/internal/version"
	"github.com/Resonate-Protocol/audioserver/pkg/audioserver"
)

// defaultTUILogFile keeps logs off the terminal while a TUI is drawn
const defaultTUILogFile = "audioserver.log"

var errUsage = errors.New("usage")

// options are the flags shared by every subcommand
type options struct {
	configFile string
	logLevel   string
	logFile    string
	noTUI      bool
}

func addCommonFlags(fs *flag.FlagSet) *options {
	o := &options{}
	fs.StringVar(&o.configFile, "config", "", "Config file (YAML, JSON or TOML)")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: none, error, warn, info, debug")
	fs.StringVar(&o.logFile, "log-file", "", "Log file path (default: stdout, or "+defaultTUILogFile+" with the TUI)")
	fs.BoolVar(&o.noTUI, "no-tui", false, "Disable TUI, use streaming logs instead")
	return o
}

// setup loads the config and installs the logger. The returned func closes
// the log file.
func setup(o *options, tui bool) (*config.Config, func(), error) {
	c, err := config.LoadConfig(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		c.Set("loglevel", o.logLevel)
	}
	if o.logFile != "" {
		c.Set("logfile", o.logFile)
	}

	logFile := c.LogFile()
	if tui && logFile == "" {
		logFile = defaultTUILogFile
	}
	f, err := logging.ConfigureDefaultLogger(c.LogLevel(), logFile, slog.HandlerOptions{})
	if err != nil {
		return nil, nil, err
	}
	closeLog := func() {
		if f != nil {
			_ = f.Close()
		}
	}
	return c, closeLog, nil
}

// freqFor picks network buffering for remote targets
func freqFor(target string) audioserver.Freq {
	for _, scheme := range []string{"http://", "https://", "ws://", "wss://", "mdns://"} {
		if strings.HasPrefix(target, scheme) {
			return audioserver.FreqNet
		}
	}
	return audioserver.FreqLocal
}

func usage() {
	fmt.Fprintf(os.Stderr, `%s

Usage:
  audioserver play [flags] <file|http(s)://|ws://|mdns://name/path>
  audioserver record [flags] <file|ws://|mdns://name/path>
  audioserver probe [flags] <target>
  audioserver serve [flags]
  audioserver discover [flags]
  audioserver version

Run "audioserver <command> -h" for command flags.
`, version.String())
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "play":
		err = runPlay(args)
	case "record":
		err = runRecord(args)
	case "probe":
		err = runProbe(args)
	case "serve":
		err = runServe(args)
	case "discover":
		err = runDiscover(args)
	case "version":
		fmt.Println(version.String())
	case "help", "-h", "--help":
		usage()
	default:
		usage()
		os.Exit(2)
	}

	if errors.Is(err, errUsage) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
