/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package config merges command-line flags, AUDIOPLAY_* environment
// variables and an optional YAML file into a Config.
package config

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/loqalabs/audioplay-go/internal/audio"
	"github.com/loqalabs/audioplay-go/internal/playback"
)

const (
	EnvPrefix          = "AUDIOPLAY"
	DefaultBackend     = audio.BackendPortAudio
	DefaultNATSSubject = "audioplay.status"
	DefaultLogLevel    = "info"
)

var (
	// ErrUsage is returned for missing or malformed positional arguments
	ErrUsage = errors.New("usage error")
	// ErrHelp is returned when help was requested
	ErrHelp = errors.New("help requested")
)

// Config is the merged runtime configuration
type Config struct {
	File      string `mapstructure:"-"`
	VolumeArg bool   `mapstructure:"-"`

	Backend      string        `mapstructure:"backend"`
	Device       int           `mapstructure:"device"`
	Channel      int           `mapstructure:"channel"`
	Volume       int           `mapstructure:"volume"`
	DrainMode    string        `mapstructure:"drain-mode"`
	PollInterval time.Duration `mapstructure:"poll-interval"`
	LogLevel     string        `mapstructure:"log-level"`
	LogOutputs   []string      `mapstructure:"log-outputs"`
	NATSURL      string        `mapstructure:"nats-url"`
	NATSSubject  string        `mapstructure:"nats-subject"`
	ConfigFile   string        `mapstructure:"config"`
}

// Request returns the playback request described by c
func (c Config) Request() playback.Request {
	return playback.NewRequest(c.File, c.Volume)
}

// PlayerOptions returns the player options described by c
func (c Config) PlayerOptions() playback.Options {
	return playback.Options{
		DeviceID:     c.Device,
		ChannelID:    c.Channel,
		DrainMode:    playback.DrainMode(c.DrainMode),
		PollInterval: c.PollInterval,
	}
}

// NewFlagSet declares every audioplay flag on a fresh set
func NewFlagSet(stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("audioplay", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SortFlags = false

	fs.StringP("config", "c", "", "Path to config file (default searches ./audioplay.yaml, $HOME/.config/audioplay, /etc/audioplay)")
	fs.StringP("backend", "b", DefaultBackend, "Audio backend: "+strings.Join(audio.Backends, ", "))
	fs.Int("device", 0, "Audio output device ID")
	fs.Int("channel", 0, "Audio output channel ID")
	fs.Int("volume", playback.DefaultVolume, "Channel volume in percent (the volume argument takes precedence)")
	fs.String("drain-mode", string(playback.DrainPoll), "How to wait for playback to finish: poll or block")
	fs.Duration("poll-interval", playback.DefaultPollInterval, "Channel state poll interval while draining")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warn, error")
	fs.StringSlice("log-outputs", []string{"stderr"}, "Log destinations: stderr, stdout or file paths")
	fs.String("nats-url", "", "Publish playback status to this NATS server")
	fs.String("nats-subject", DefaultNATSSubject, "NATS subject for playback status")
	fs.BoolP("help", "h", false, "Display help text.")

	fs.Usage = func() {
		Usage(stderr, fs)
	}
	return fs
}

// Usage prints the command synopsis and flag defaults
func Usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: audioplay [options] <file> [volume]\n\n")
	fmt.Fprintf(w, "Plays a raw 8000 Hz 16-bit mono PCM file.\n")
	fmt.Fprintf(w, "A negative volume must follow \"--\", e.g. audioplay -- file.pcm -5\n\n")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

// Load parses args (without the program name) and merges them with the
// environment and config file
func Load(args []string, stderr io.Writer) (Config, error) {
	fs := NewFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return Config{}, ErrHelp
		}
		if arg, ok := negativeNumber(args); ok {
			return Config{}, fmt.Errorf("%w: negative volume %s must follow \"--\" (audioplay -- <file> %s)", ErrUsage, arg, arg)
		}
		return Config{}, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if help, _ := fs.GetBool("help"); help {
		fs.Usage()
		return Config{}, ErrHelp
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("failed to bind flags: %w", err)
	}

	if err := readConfigFile(v); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.applyArgs(fs.Args()); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readConfigFile(v *viper.Viper) error {
	v.SetConfigType("yaml")
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("audioplay")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/audioplay")
	v.AddConfigPath("/etc/audioplay")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// negativeNumber finds an argument pflag would mistake for a shorthand flag
func negativeNumber(args []string) (string, bool) {
	for _, arg := range args {
		if arg == "--" {
			return "", false
		}
		if len(arg) > 1 && arg[0] == '-' {
			if _, err := strconv.Atoi(arg[1:]); err == nil {
				return arg, true
			}
		}
	}
	return "", false
}

// applyArgs takes the file and optional volume positional arguments
func (c *Config) applyArgs(args []string) error {
	switch len(args) {
	case 0:
		return fmt.Errorf("%w: missing file argument", ErrUsage)
	case 1, 2:
	default:
		return fmt.Errorf("%w: too many arguments %q", ErrUsage, args[2:])
	}

	c.File = args[0]
	if len(args) == 2 {
		volume, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: volume %q is not an integer", ErrUsage, args[1])
		}
		c.Volume = volume
		c.VolumeArg = true
	}
	return nil
}

// Validate checks the values that cannot be left to the device
func (c Config) Validate() error {
	if !slices.Contains(audio.Backends, strings.ToLower(c.Backend)) {
		return fmt.Errorf("%w: unknown backend %q", ErrUsage, c.Backend)
	}
	switch playback.DrainMode(c.DrainMode) {
	case playback.DrainPoll, playback.DrainBlock:
	default:
		return fmt.Errorf("%w: unknown drain mode %q", ErrUsage, c.DrainMode)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %s", ErrUsage, c.PollInterval)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}
