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

package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process, so it is shared by every
// OtoSink and pinned to the first format it was opened with
var (
	otoMu    sync.Mutex
	otoCtx   *oto.Context
	otoRate  int
	otoChans int
)

// OtoSink plays PCM through an oto player reading from a pipe
type OtoSink struct {
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
}

// NewOtoSink creates a new oto sink
func NewOtoSink() *OtoSink {
	return &OtoSink{}
}

// Open creates (or reuses) the oto context and starts a player
func (o *OtoSink) Open(attr DeviceAttributes) error {
	if o.player != nil {
		return fmt.Errorf("oto sink already open")
	}
	if attr.BitWidth != BitWidth16 {
		return fmt.Errorf("oto supports 16-bit output only, got %d: %w", attr.BitWidth, ErrUnsupportedAttr)
	}

	ctx, err := sharedOtoContext(int(attr.SampleRate), attr.SoundMode.Channels())
	if err != nil {
		return err
	}

	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = ctx.NewPlayer(o.pipeReader)
	o.player.Play()
	return nil
}

func sharedOtoContext(rate, channels int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoRate != rate || otoChans != channels {
			return nil, fmt.Errorf("oto context already running at %dHz/%dch, cannot switch to %dHz/%dch",
				otoRate, otoChans, rate, channels)
		}
		if err := otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		return otoCtx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	otoCtx, otoRate, otoChans = ctx, rate, channels
	return ctx, nil
}

// Write hands pcm to the player; it blocks until the player has read it
func (o *OtoSink) Write(pcm []byte) error {
	if o.pipeWriter == nil {
		return fmt.Errorf("output not initialized")
	}
	if _, err := o.pipeWriter.Write(pcm); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// Close stops the player and suspends the shared context
func (o *OtoSink) Close() error {
	if o.pipeWriter != nil {
		_ = o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	var err error
	if o.player != nil {
		err = o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		_ = o.pipeReader.Close()
		o.pipeReader = nil
	}

	otoMu.Lock()
	defer otoMu.Unlock()
	if otoCtx != nil {
		if suspendErr := otoCtx.Suspend(); suspendErr != nil && err == nil {
			err = fmt.Errorf("failed to suspend oto context: %w", suspendErr)
		}
	}
	return err
}
