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
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoSink plays PCM on a miniaudio playback device. Write parks the
// caller until the device callback has consumed the whole buffer.
type MalgoSink struct {
	mu      sync.Mutex
	cond    *sync.Cond
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	pending []byte
	closed  bool
}

// NewMalgoSink creates a new malgo sink
func NewMalgoSink() *MalgoSink {
	m := &MalgoSink{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Open initializes the malgo context and starts a playback device
func (m *MalgoSink) Open(attr DeviceAttributes) error {
	if m.device != nil {
		return fmt.Errorf("malgo sink already open")
	}
	if attr.BitWidth != BitWidth16 {
		return fmt.Errorf("malgo sink supports 16-bit output only, got %d: %w", attr.BitWidth, ErrUnsupportedAttr)
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(attr.SoundMode.Channels())
	deviceConfig.SampleRate = uint32(attr.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(attr.SamplesPerFrame)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, _ uint32) {
			m.fill(pOutput)
		},
	})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.mu.Lock()
	m.ctx, m.device, m.closed = ctx, device, false
	m.mu.Unlock()
	return nil
}

// fill runs on the miniaudio thread
func (m *MalgoSink) fill(out []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := copy(out, m.pending)
	clear(out[n:])
	m.pending = m.pending[n:]
	if len(m.pending) == 0 {
		m.cond.Broadcast()
	}
}

// Write blocks until the device has pulled all of pcm
func (m *MalgoSink) Write(pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device == nil || m.closed {
		return fmt.Errorf("output not initialized")
	}

	m.pending = append(m.pending[:0], pcm...)
	for len(m.pending) > 0 && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return fmt.Errorf("output closed during write")
	}
	return nil
}

// Close stops the device and frees the context
func (m *MalgoSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.pending = nil
	m.cond.Broadcast()
	device, ctx := m.device, m.ctx
	m.device, m.ctx = nil, nil
	m.mu.Unlock()

	var err error
	if device != nil {
		if stopErr := device.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop device: %w", stopErr)
		}
		device.Uninit()
	}
	if ctx != nil {
		if uninitErr := ctx.Uninit(); uninitErr != nil && err == nil {
			err = fmt.Errorf("failed to uninit malgo context: %w", uninitErr)
		}
		ctx.Free()
	}
	return err
}
