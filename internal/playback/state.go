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

package playback

import (
	"fmt"
	"time"
)

// State of a playback run. Runs only move forward; any failure ends in
// StateFailed.
type State int

const (
	StateUnconfigured State = iota
	StateConfigured
	StateChannelOpen
	StateFeeding
	StateDraining
	StateChannelClosed
	StateDeviceClosed
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateUnconfigured:  "unconfigured",
	StateConfigured:    "configured",
	StateChannelOpen:   "channel_open",
	StateFeeding:       "feeding",
	StateDraining:      "draining",
	StateChannelClosed: "channel_closed",
	StateDeviceClosed:  "device_closed",
	StateDone:          "done",
	StateFailed:        "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Event describes one state transition
type Event struct {
	State   State
	From    State
	Device  int
	Channel int
	Path    string
	Bytes   int64
	Err     error
	Time    time.Time
}

// Observer is notified of every transition, on the goroutine running the
// player
type Observer interface {
	OnTransition(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

func (f ObserverFunc) OnTransition(e Event) {
	f(e)
}
