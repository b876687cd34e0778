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

// Package playback drives an audio.OutputDevice through one run of
// configure, open channel, feed, drain wait and close.
package playback

import (
	"time"

	"github.com/loqalabs/audioplay-go/internal/audio"
)

// Device-class profile: 8 kHz, 16-bit mono in 10 ms periods
const (
	SampleTimeMs  = 10
	BufferPeriods = 5

	// BufferSize is five periods of PCM: 5 * (8000 * 2 * 10 / 1000) = 800 bytes
	BufferSize = BufferPeriods * (int(audio.SampleRate8000) * 2 * SampleTimeMs / 1000)

	DefaultVolume       = 50
	DefaultPollInterval = time.Second
)

// DefaultAttributes returns the fixed output profile for this device class
func DefaultAttributes() audio.DeviceAttributes {
	return audio.DeviceAttributes{
		SampleRate:      audio.SampleRate8000,
		BitWidth:        audio.BitWidth16,
		SoundMode:       audio.SoundModeMono,
		FrameCount:      20,
		SamplesPerFrame: 400,
		ChannelCount:    1,
	}
}

// Request describes one playback run. It is not modified once built.
type Request struct {
	Path       string
	Volume     int
	Attributes audio.DeviceAttributes
}

// NewRequest builds a Request for path with the default profile
func NewRequest(path string, volume int) Request {
	return Request{
		Path:       path,
		Volume:     volume,
		Attributes: DefaultAttributes(),
	}
}

// DrainMode selects how the end of playback is detected
type DrainMode string

const (
	// DrainPoll queries the channel state at a fixed interval
	DrainPoll DrainMode = "poll"

	// DrainBlock waits on the device when it implements audio.DrainWaiter
	DrainBlock DrainMode = "block"
)

// Options tune a Player
type Options struct {
	DeviceID     int
	ChannelID    int
	DrainMode    DrainMode
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.DrainMode == "" {
		o.DrainMode = DrainPoll
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}
