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
	"time"
)

// NullSink discards PCM. With realtime set, Write sleeps for the time
// the buffer would take to play so queue behaviour stays observable.
type NullSink struct {
	mu       sync.Mutex
	realtime bool
	attr     DeviceAttributes
	open     bool
	written  int64
	writes   int
}

// NewNullSink creates a new null sink
func NewNullSink(realtime bool) *NullSink {
	return &NullSink{realtime: realtime}
}

// Open records the attributes used for pacing
func (n *NullSink) Open(attr DeviceAttributes) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.open {
		return fmt.Errorf("null sink already open")
	}
	n.attr = attr
	n.open = true
	return nil
}

// Write counts pcm and optionally paces it
func (n *NullSink) Write(pcm []byte) error {
	n.mu.Lock()
	if !n.open {
		n.mu.Unlock()
		return fmt.Errorf("output not initialized")
	}
	n.written += int64(len(pcm))
	n.writes++
	attr, realtime := n.attr, n.realtime
	n.mu.Unlock()

	if realtime {
		time.Sleep(playDuration(attr, len(pcm)))
	}
	return nil
}

// Close marks the sink closed
func (n *NullSink) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.open = false
	return nil
}

// Written returns the number of bytes and writes seen so far
func (n *NullSink) Written() (bytes int64, writes int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.written, n.writes
}

// IsOpen reports whether the sink is open
func (n *NullSink) IsOpen() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.open
}
