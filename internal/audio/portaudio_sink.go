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
	"errors"
	"fmt"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSink plays PCM on the default PortAudio output with a
// blocking stream of SamplesPerFrame frames per buffer
type PortAudioSink struct {
	initialized bool
	stream      *portaudio.Stream
	buffer      []int16
}

// NewPortAudioSink creates a new PortAudio sink
func NewPortAudioSink() *PortAudioSink {
	return &PortAudioSink{}
}

// Open initializes PortAudio and starts an output stream for attr
func (p *PortAudioSink) Open(attr DeviceAttributes) error {
	if p.stream != nil {
		return fmt.Errorf("portaudio sink already open")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	p.initialized = true

	channels := attr.SoundMode.Channels()
	p.buffer = make([]int16, attr.SamplesPerFrame*channels)

	stream, err := portaudio.OpenDefaultStream(
		0,        // input channels (none for output stream)
		channels, // output channels
		float64(attr.SampleRate),
		attr.SamplesPerFrame,
		p.buffer,
	)
	if err != nil {
		p.terminate()
		return fmt.Errorf("failed to open output stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		p.terminate()
		return fmt.Errorf("failed to start output stream: %w", err)
	}

	p.stream = stream
	return nil
}

// Write plays pcm one stream buffer at a time; the last buffer is
// padded with silence
func (p *PortAudioSink) Write(pcm []byte) error {
	if p.stream == nil {
		return fmt.Errorf("stream is nil")
	}

	samples := pcmToInt16(pcm)
	for len(samples) > 0 {
		n := copy(p.buffer, samples)
		clear(p.buffer[n:])
		samples = samples[n:]

		if err := p.stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return fmt.Errorf("portaudio write: %w", err)
		}
	}
	return nil
}

// Close stops the stream and terminates PortAudio
func (p *PortAudioSink) Close() error {
	var err error
	if p.stream != nil {
		if stopErr := p.stream.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop output stream: %w", stopErr)
		}
		if closeErr := p.stream.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output stream: %w", closeErr)
		}
		p.stream = nil
	}
	if termErr := p.terminate(); termErr != nil && err == nil {
		err = termErr
	}
	return err
}

func (p *PortAudioSink) terminate() error {
	if !p.initialized {
		return nil
	}
	p.initialized = false
	return portaudio.Terminate()
}
