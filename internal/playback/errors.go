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
	"errors"
	"fmt"
)

// Step names the device or file operation that failed
type Step string

const (
	StepOpenFile      Step = "open file"
	StepSetAttr       Step = "set attributes"
	StepGetAttr       Step = "get attributes"
	StepEnableDevice  Step = "enable device"
	StepEnableChannel Step = "enable channel"
	StepSetVolume     Step = "set volume"
	StepGetVolume     Step = "get volume"
	StepEnableHPF     Step = "enable hpf"
	StepReadFile      Step = "read file"
	StepSendFrame     Step = "send frame"
	StepQueryState    Step = "query channel state"
	StepDrainWait     Step = "drain wait"
	StepDisableChan   Step = "disable channel"
	StepDisableDevice Step = "disable device"

	// StepCancelled marks a run whose context ended between device calls
	StepCancelled Step = "cancelled"
)

// StepError wraps the error returned by a failed step
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func stepErr(step Step, err error) error {
	return &StepError{Step: step, Err: err}
}

// ErrInvalidState is returned when an operation is called out of order
var ErrInvalidState = errors.New("invalid playback state")

// FailedStep returns the step of the first StepError in err's chain
func FailedStep(err error) (Step, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return "", false
}
