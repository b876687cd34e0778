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
	"context"
	"errors"
	"fmt"
)

// OutputDevice is the capability set of an audio output (AO) device.
// Device and channel IDs are small integers chosen by the caller; the
// device is free to normalize any attribute it is given.
type OutputDevice interface {
	// SetPubAttr sets the public attributes of a device. It must be called
	// before Enable.
	SetPubAttr(devID int, attr DeviceAttributes) error

	// GetPubAttr returns the effective attributes of a device
	GetPubAttr(devID int) (DeviceAttributes, error)

	// Enable starts the device
	Enable(devID int) error

	// Disable stops the device
	Disable(devID int) error

	// EnableChn enables one output channel of an enabled device
	EnableChn(devID, chnID int) error

	// DisableChn disables an output channel, dropping unplayed frames
	DisableChn(devID, chnID int) error

	// SetVolume sets the channel volume in percent
	SetVolume(devID, chnID, volume int) error

	// GetVolume returns the effective channel volume
	GetVolume(devID, chnID int) (int, error)

	// EnableHPF turns on the high-pass filter for devices using attr
	EnableHPF(attr DeviceAttributes) error

	// SendFrame queues one frame for playback
	SendFrame(devID, chnID int, frame Frame, mode BlockMode) error

	// QueryChnStat reports the queue occupancy of a channel
	QueryChnStat(devID, chnID int) (ChannelState, error)
}

// DrainWaiter is implemented by devices that can signal queue drain
// instead of being polled.
type DrainWaiter interface {
	WaitDrained(ctx context.Context, devID, chnID int) error
}

// SampleRate in Hz
type SampleRate int

const (
	SampleRate8000  SampleRate = 8000
	SampleRate16000 SampleRate = 16000
	SampleRate24000 SampleRate = 24000
	SampleRate44100 SampleRate = 44100
	SampleRate48000 SampleRate = 48000
	SampleRate96000 SampleRate = 96000
)

func (r SampleRate) valid() bool {
	switch r {
	case SampleRate8000, SampleRate16000, SampleRate24000,
		SampleRate44100, SampleRate48000, SampleRate96000:
		return true
	}
	return false
}

// BitWidth is the sample width in bits
type BitWidth int

const BitWidth16 BitWidth = 16

// BytesPerSample returns the size of one sample of one channel
func (w BitWidth) BytesPerSample() int {
	return int(w) / 8
}

// SoundMode selects mono or stereo output
type SoundMode int

const (
	SoundModeMono SoundMode = iota
	SoundModeStereo
)

// Channels returns the number of interleaved channels for the mode
func (m SoundMode) Channels() int {
	if m == SoundModeStereo {
		return 2
	}
	return 1
}

func (m SoundMode) String() string {
	switch m {
	case SoundModeMono:
		return "mono"
	case SoundModeStereo:
		return "stereo"
	default:
		return fmt.Sprintf("SoundMode(%d)", int(m))
	}
}

// DeviceAttributes holds the public attributes of an AO device
type DeviceAttributes struct {
	SampleRate      SampleRate
	BitWidth        BitWidth
	SoundMode       SoundMode
	FrameCount      int // frames the device queue can hold
	SamplesPerFrame int
	ChannelCount    int
}

// FrameBytes is the largest frame payload the device accepts
func (a DeviceAttributes) FrameBytes() int {
	return a.SamplesPerFrame * a.BitWidth.BytesPerSample() * a.SoundMode.Channels()
}

// Frame is a view over one buffer of raw PCM handed to SendFrame
type Frame struct {
	Data []byte
}

// Len returns the payload size in bytes
func (f Frame) Len() int {
	return len(f.Data)
}

// BlockMode selects whether SendFrame waits for queue space
type BlockMode int

const (
	Block BlockMode = iota
	NonBlock
)

// ChannelState is the queue occupancy of an output channel
type ChannelState struct {
	Total int
	Free  int
	Busy  int
}

var (
	ErrInvalidDevice   = errors.New("invalid device id")
	ErrInvalidChannel  = errors.New("invalid channel id")
	ErrNotConfigured   = errors.New("device attributes not set")
	ErrDeviceEnabled   = errors.New("device already enabled")
	ErrNotEnabled      = errors.New("device not enabled")
	ErrChannelEnabled  = errors.New("channel already enabled")
	ErrChannelDisabled = errors.New("channel not enabled")
	ErrUnsupportedAttr = errors.New("unsupported attribute")
	ErrQueueFull       = errors.New("channel queue full")
	ErrFrameTooLarge   = errors.New("frame too large")
	ErrEmptyFrame      = errors.New("empty frame")
)
