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

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loqalabs/audioplay-go/internal/playback"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"sample.pcm"}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, "sample.pcm", cfg.File)
	assert.Equal(t, playback.DefaultVolume, cfg.Volume)
	assert.False(t, cfg.VolumeArg)
	assert.Equal(t, DefaultBackend, cfg.Backend)
	assert.Equal(t, 0, cfg.Device)
	assert.Equal(t, 0, cfg.Channel)
	assert.Equal(t, string(playback.DrainPoll), cfg.DrainMode)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, []string{"stderr"}, cfg.LogOutputs)
	assert.Empty(t, cfg.NATSURL)
	assert.Equal(t, DefaultNATSSubject, cfg.NATSSubject)
}

func TestLoad_PositionalArguments(t *testing.T) {
	t.Run("volume_argument_overrides_flag", func(t *testing.T) {
		cfg, err := Load([]string{"--volume", "20", "sample.pcm", "80"}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, 80, cfg.Volume)
		assert.True(t, cfg.VolumeArg)
	})

	t.Run("flags_after_file", func(t *testing.T) {
		cfg, err := Load([]string{"sample.pcm", "--backend", "null"}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, "sample.pcm", cfg.File)
		assert.Equal(t, "null", cfg.Backend)
	})

	t.Run("negative_volume_needs_separator", func(t *testing.T) {
		_, err := Load([]string{"sample.pcm", "-5"}, &bytes.Buffer{})
		require.ErrorIs(t, err, ErrUsage)
		assert.Contains(t, err.Error(), "negative volume -5")
		assert.Contains(t, err.Error(), `"--"`)
	})

	t.Run("negative_volume_after_separator", func(t *testing.T) {
		for _, args := range [][]string{
			{"--", "sample.pcm", "-5"},
			{"sample.pcm", "--", "-5"},
		} {
			cfg, err := Load(args, &bytes.Buffer{})
			require.NoError(t, err, "args %q", args)
			assert.Equal(t, "sample.pcm", cfg.File)
			assert.Equal(t, -5, cfg.Volume)
			assert.True(t, cfg.VolumeArg)
		}
	})

	tests := []struct {
		name string
		args []string
	}{
		{"missing_file", nil},
		{"non_numeric_volume", []string{"sample.pcm", "loud"}},
		{"too_many_arguments", []string{"sample.pcm", "50", "extra"}},
		{"unknown_flag", []string{"--bogus", "sample.pcm"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args, &bytes.Buffer{})
			assert.ErrorIs(t, err, ErrUsage)
		})
	}
}

func TestLoad_Help(t *testing.T) {
	var stderr bytes.Buffer
	_, err := Load([]string{"--help"}, &stderr)
	assert.ErrorIs(t, err, ErrHelp)
	assert.Contains(t, stderr.String(), "Usage: audioplay")
	assert.Contains(t, stderr.String(), "--drain-mode")
	assert.Contains(t, stderr.String(), "negative volume must follow")
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown_backend", []string{"--backend", "alsa", "sample.pcm"}},
		{"unknown_drain_mode", []string{"--drain-mode", "spin", "sample.pcm"}},
		{"zero_poll_interval", []string{"--poll-interval", "0s", "sample.pcm"}},
		{"bad_log_level", []string{"--log-level", "chatty", "sample.pcm"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.args, &bytes.Buffer{})
			assert.ErrorIs(t, err, ErrUsage)
		})
	}

	t.Run("backend_is_case_insensitive", func(t *testing.T) {
		_, err := Load([]string{"--backend", "NULL", "sample.pcm"}, &bytes.Buffer{})
		assert.NoError(t, err)
	})
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("AUDIOPLAY_BACKEND", "null")
	t.Setenv("AUDIOPLAY_POLL_INTERVAL", "250ms")
	t.Setenv("AUDIOPLAY_NATS_URL", "nats://localhost:4222")

	cfg, err := Load([]string{"sample.pcm"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "null", cfg.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "nats://localhost:4222", cfg.NATSURL)

	t.Run("flag_beats_environment", func(t *testing.T) {
		cfg, err := Load([]string{"--backend", "oto", "sample.pcm"}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, "oto", cfg.Backend)
	})
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audioplay.yaml")
	content := []byte("backend: malgo\ndevice: 1\nvolume: 35\ndrain-mode: block\npoll-interval: 20ms\nnats-subject: lab.status\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load([]string{"-c", path, "sample.pcm"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, "malgo", cfg.Backend)
	assert.Equal(t, 1, cfg.Device)
	assert.Equal(t, 35, cfg.Volume)
	assert.Equal(t, string(playback.DrainBlock), cfg.DrainMode)
	assert.Equal(t, 20*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "lab.status", cfg.NATSSubject)

	t.Run("flag_beats_file", func(t *testing.T) {
		cfg, err := Load([]string{"-c", path, "--device", "0", "sample.pcm", "90"}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.Device)
		assert.Equal(t, 90, cfg.Volume)
	})

	t.Run("missing_explicit_file", func(t *testing.T) {
		_, err := Load([]string{"-c", filepath.Join(t.TempDir(), "nope.yaml"), "sample.pcm"}, &bytes.Buffer{})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrUsage)
	})
}

func TestConfig_PlaybackValues(t *testing.T) {
	cfg := Config{
		File:         "/tmp/a.pcm",
		Volume:       65,
		Device:       1,
		Channel:      2,
		DrainMode:    "block",
		PollInterval: 10 * time.Millisecond,
	}

	req := cfg.Request()
	assert.Equal(t, "/tmp/a.pcm", req.Path)
	assert.Equal(t, 65, req.Volume)
	assert.Equal(t, playback.DefaultAttributes(), req.Attributes)

	opts := cfg.PlayerOptions()
	assert.Equal(t, playback.Options{
		DeviceID:     1,
		ChannelID:    2,
		DrainMode:    playback.DrainBlock,
		PollInterval: 10 * time.Millisecond,
	}, opts)
}
