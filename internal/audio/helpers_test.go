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
	"os"
	"sync"
)

// isCIEnvironment checks if running in a CI environment
func isCIEnvironment() bool {
	ciEnvVars := []string{
		"CI", // Generic CI indicator
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",   // GitHub Actions
		"GITLAB_CI",        // GitLab CI
		"JENKINS_URL",      // Jenkins
		"TRAVIS",           // Travis CI
		"CIRCLECI",         // CircleCI
		"BUILDKITE",        // Buildkite
		"TEAMCITY_VERSION", // TeamCity
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return true
		}
	}
	return false
}

// defaultAttr is the 8 kHz mono profile used across tests
func defaultAttr() DeviceAttributes {
	return DeviceAttributes{
		SampleRate:      SampleRate8000,
		BitWidth:        BitWidth16,
		SoundMode:       SoundModeMono,
		FrameCount:      20,
		SamplesPerFrame: 400,
		ChannelCount:    1,
	}
}

// recordingSink captures every write. When gate is non-nil each Write
// blocks until the gate is closed.
type recordingSink struct {
	mu      sync.Mutex
	gate    chan struct{}
	started chan struct{}
	writes  [][]byte
	opened  bool
	closed  bool
	openErr error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{started: make(chan struct{}, 64)}
}

func newGatedSink() *recordingSink {
	s := newRecordingSink()
	s.gate = make(chan struct{})
	return s
}

func (s *recordingSink) Open(attr DeviceAttributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.opened = true
	return nil
}

func (s *recordingSink) Write(pcm []byte) error {
	s.started <- struct{}{}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, append([]byte(nil), pcm...))
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) Writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.writes...)
}

func (s *recordingSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *recordingSink) factory() SinkFactory {
	return func() Sink { return s }
}
