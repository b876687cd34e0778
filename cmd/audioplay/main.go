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

// Command audioplay plays a raw 8000 Hz 16-bit mono PCM file through an
// audio output device.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/loqalabs/audioplay-go/internal/audio"
	"github.com/loqalabs/audioplay-go/internal/config"
	"github.com/loqalabs/audioplay-go/internal/logger"
	natsstatus "github.com/loqalabs/audioplay-go/internal/nats"
	"github.com/loqalabs/audioplay-go/internal/playback"
)

const (
	exitOK       = 0
	exitUsage    = 1
	exitPlayback = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args, stderr)
	if errors.Is(err, config.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "❌ %v\n", err)
		if errors.Is(err, config.ErrUsage) {
			config.Usage(stderr, config.NewFlagSet(stderr))
		}
		return exitUsage
	}

	if err := logger.InitWriters(logger.Config{Level: cfg.LogLevel, Outputs: cfg.LogOutputs}, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "❌ %v\n", err)
		return exitUsage
	}
	l := logger.Logger()
	if cfg.ConfigFile != "" {
		logger.Info("📄 loaded config", "file", cfg.ConfigFile)
	}
	if cfg.VolumeArg {
		fmt.Fprintf(stdout, "Volume is %d\n", cfg.Volume)
	}

	newSink, err := audio.NewSinkFactory(cfg.Backend)
	if err != nil {
		l.Error("❌ audio backend", "err", err)
		return exitUsage
	}
	dev := audio.NewHostDevice(newSink, l.WithPrefix("device"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	player := playback.New(dev, cfg.PlayerOptions(), l)
	if cfg.NATSURL != "" {
		pub := connectStatus(cfg, l, cancel)
		if pub != nil {
			defer pub.Close()
			player.Observe(pub)
		}
	}

	if err := play(ctx, player, cfg.Request()); err != nil {
		if step, ok := playback.FailedStep(err); ok {
			l.Error("❌ playback failed", "step", step, "err", err)
		} else {
			l.Error("❌ playback failed", "err", err)
		}
		return exitPlayback
	}
	return exitOK
}

// play runs the player on a single worker goroutine and joins it
func play(ctx context.Context, player *playback.Player, req playback.Request) error {
	done := make(chan error, 1)
	go func() {
		_, err := player.Run(ctx, req)
		done <- err
	}()
	return <-done
}

// connectStatus wires the optional NATS status publisher. A NATS outage
// only costs the status stream, never the playback.
func connectStatus(cfg config.Config, l *log.Logger, cancel context.CancelFunc) *natsstatus.StatusPublisher {
	pub, err := natsstatus.NewStatusPublisher(cfg.NATSURL, cfg.NATSSubject, l.WithPrefix("nats"))
	if err != nil {
		l.Warn("⚠️  NATS status disabled", "err", err)
		return nil
	}
	if err := pub.ListenForStop(cancel); err != nil {
		l.Warn("⚠️  NATS stop requests disabled", "err", err)
	}
	return pub
}
