// ABOUTME: viper-backed configuration for the CLI and stream server
// ABOUTME: Defaults, file loading and builders for player and recorder configs
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/Resonate-Protocol/audioserver/internal/server"
	"github.com/Resonate-Protocol/audioserver/pkg/audio"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/capture"
	"github.com/Resonate-Protocol/audioserver/pkg/audio/output"
	"github.com/Resonate-Protocol/audioserver/pkg/audioserver"
	"github.com/spf13/viper"
)

// ErrUnknownDevice is returned for a device name with no implementation
var ErrUnknownDevice = errors.New("unknown device")

// Config wraps a viper instance holding every setting
type Config struct {
	v *viper.Viper
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("loglevel", "info")
	v.SetDefault("logfile", "")

	v.SetDefault("player.name", "")
	v.SetDefault("player.preprocessbuffer", 16)
	v.SetDefault("player.decodebuffer", 64*1024)
	v.SetDefault("player.chunksize", 4096)
	v.SetDefault("player.device", "oto")
	v.SetDefault("player.card", "")
	v.SetDefault("player.resamplerate", 0)
	v.SetDefault("player.devicehold", 5*time.Second)
	v.SetDefault("player.volume", 100)

	v.SetDefault("recorder.name", "")
	v.SetDefault("recorder.samplerate", 16000)
	v.SetDefault("recorder.bits", 16)
	v.SetDefault("recorder.channels", 1)
	v.SetDefault("recorder.encoder", "wav")
	v.SetDefault("recorder.device", "malgo")
	v.SetDefault("recorder.card", "")
	v.SetDefault("recorder.capturebuffer", 50)
	v.SetDefault("recorder.encodebuffer", 64*1024)

	v.SetDefault("server.name", "")
	v.SetDefault("server.port", 8927)
	v.SetDefault("server.root", ".")
	v.SetDefault("server.mdns", true)
	v.SetDefault("server.tui", true)
	v.SetDefault("server.livedevice", "tone")
}

// Default returns a config holding only defaults
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("AUDIOSERVER")
	v.AutomaticEnv()
	return &Config{v: v}
}

// LoadConfig reads path over the defaults; a missing file is not an error
func LoadConfig(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			slog.Info("no config file found", "path", path)
			return c, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	slog.Debug("config loaded", "path", c.v.ConfigFileUsed())
	return c, nil
}

// Set overrides a key, e.g. from a command line flag
func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

// LogLevel returns the configured log level name
func (c *Config) LogLevel() string {
	return c.v.GetString("loglevel")
}

// LogFile returns the configured log file, empty for stdout
func (c *Config) LogFile() string {
	return c.v.GetString("logfile")
}

// Volume returns the initial player volume
func (c *Config) Volume() int {
	return c.v.GetInt("player.volume")
}

// PlayerConfig builds a player configuration from the "player" section
func (c *Config) PlayerConfig() (audioserver.PlayerConfig, error) {
	device, err := OutputDevice(c.v.GetString("player.device"))
	if err != nil {
		return audioserver.PlayerConfig{}, err
	}
	return audioserver.PlayerConfig{
		Name:             c.v.GetString("player.name"),
		PreprocessBuffer: c.v.GetInt("player.preprocessbuffer"),
		DecodeBuffer:     c.v.GetInt("player.decodebuffer"),
		ChunkSize:        c.v.GetInt("player.chunksize"),
		Device:           device,
		Card:             c.v.GetString("player.card"),
		ResampleRate:     c.v.GetInt("player.resamplerate"),
		DeviceHold:       c.v.GetDuration("player.devicehold"),
	}, nil
}

// RecorderConfig builds a recorder configuration from the "recorder" section
func (c *Config) RecorderConfig() (audioserver.RecorderConfig, error) {
	device, err := CaptureDevice(c.v.GetString("recorder.device"))
	if err != nil {
		return audioserver.RecorderConfig{}, err
	}
	return audioserver.RecorderConfig{
		Name:          c.v.GetString("recorder.name"),
		Device:        device,
		Card:          c.v.GetString("recorder.card"),
		CaptureBuffer: c.v.GetInt("recorder.capturebuffer"),
		EncodeBuffer:  c.v.GetInt("recorder.encodebuffer"),
	}, nil
}

// RecordFormat returns the capture format from the "recorder" section
func (c *Config) RecordFormat() audio.Format {
	return audio.Format{
		Codec:      "pcm",
		SampleRate: c.v.GetInt("recorder.samplerate"),
		Channels:   c.v.GetInt("recorder.channels"),
		BitDepth:   c.v.GetInt("recorder.bits"),
	}
}

// Encoder returns the recorder's encoder type
func (c *Config) Encoder() string {
	return c.v.GetString("recorder.encoder")
}

// ServerName returns the advertised stream server name
func (c *Config) ServerName() string {
	return c.v.GetString("server.name")
}

// ServerPort returns the stream server port
func (c *Config) ServerPort() int {
	return c.v.GetInt("server.port")
}

// ServerRoot returns the directory the stream server serves and records into
func (c *Config) ServerRoot() string {
	return c.v.GetString("server.root")
}

// ServerMDNS reports whether the stream server advertises itself
func (c *Config) ServerMDNS() bool {
	return c.v.GetBool("server.mdns")
}

// ServerConfig builds a stream server configuration from the "server"
// section. The /live recorder captures from server.livedevice.
func (c *Config) ServerConfig() (server.Config, error) {
	live, err := c.RecorderConfig()
	if err != nil {
		return server.Config{}, err
	}
	live.Device, err = CaptureDevice(c.v.GetString("server.livedevice"))
	if err != nil {
		return server.Config{}, err
	}

	name := c.ServerName()
	if name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		name = fmt.Sprintf("%s-audio-server", hostname)
	}
	live.Name = name + "-live"

	return server.Config{
		Port:       c.ServerPort(),
		Name:       name,
		Root:       c.ServerRoot(),
		EnableMDNS: c.ServerMDNS(),
		UseTUI:     c.v.GetBool("server.tui"),
		Live:       live,
	}, nil
}

// OutputDevice maps a device name to a playback device factory
func OutputDevice(name string) (output.Factory, error) {
	switch name {
	case "", "oto":
		return output.NewOto, nil
	case "malgo":
		return output.NewMalgo, nil
	case "discard":
		return output.NewDiscard(true), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
}

// CaptureDevice maps a device name to a capture device factory. "file"
// replays the WAV file named by the card setting.
func CaptureDevice(name string) (capture.Factory, error) {
	switch name {
	case "", "malgo":
		return capture.NewMalgo, nil
	case "tone":
		return capture.NewTone(true), nil
	case "file":
		return capture.NewFile, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
}
