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
	"strings"
	"time"
)

// Sink is the host audio output a HostDevice plays through
type Sink interface {
	// Open prepares the output for attr
	Open(attr DeviceAttributes) error

	// Write plays raw PCM, blocking until the output has taken all of it
	Write(pcm []byte) error

	// Close releases the output
	Close() error
}

// SinkFactory creates a fresh, unopened Sink
type SinkFactory func() Sink

// Backend names accepted by NewSinkFactory
const (
	BackendPortAudio = "portaudio"
	BackendOto       = "oto"
	BackendMalgo     = "malgo"
	BackendNull      = "null"
)

// Backends lists every supported backend name
var Backends = []string{BackendPortAudio, BackendOto, BackendMalgo, BackendNull}

// NewSinkFactory returns the factory for a backend name
func NewSinkFactory(backend string) (SinkFactory, error) {
	switch strings.ToLower(backend) {
	case BackendPortAudio:
		return func() Sink { return NewPortAudioSink() }, nil
	case BackendOto:
		return func() Sink { return NewOtoSink() }, nil
	case BackendMalgo:
		return func() Sink { return NewMalgoSink() }, nil
	case BackendNull:
		return func() Sink { return NewNullSink(true) }, nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q (supported: %s)", backend, strings.Join(Backends, ", "))
	}
}

// playDuration is the wall time it takes to play pcm at attr
func playDuration(attr DeviceAttributes, pcm int) time.Duration {
	bytesPerSecond := int(attr.SampleRate) * attr.BitWidth.BytesPerSample() * attr.SoundMode.Channels()
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(pcm) * time.Second / time.Duration(bytesPerSecond)
}
