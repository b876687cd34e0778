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
	"fmt"
	"sync"
)

// MockOutputDevice implements OutputDevice for testing without hardware.
// It records every call in order and can be told to fail any of them.
type MockOutputDevice struct {
	mu          sync.Mutex
	calls       []string
	errors      map[string]error
	attr        DeviceAttributes
	attrSet     bool
	normalize   func(DeviceAttributes) DeviceAttributes
	volume      int
	clampVolume func(int) int
	hpf         *DeviceAttributes
	frames      [][]byte
	busy        []int
	queries     int
}

// NewMockOutputDevice creates a new mock output device
func NewMockOutputDevice() *MockOutputDevice {
	return &MockOutputDevice{
		errors: make(map[string]error),
	}
}

// SetError makes the named method (e.g. "EnableChn") return err
func (m *MockOutputDevice) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[method] = err
}

// SetBusySequence sets the Busy values returned by successive
// QueryChnStat calls; once exhausted Busy is reported as zero
func (m *MockOutputDevice) SetBusySequence(busy ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = append([]int(nil), busy...)
}

// SetNormalizer installs a function applied to attributes on SetPubAttr
func (m *MockOutputDevice) SetNormalizer(fn func(DeviceAttributes) DeviceAttributes) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.normalize = fn
}

// SetVolumeClamp installs a function applied to volumes on SetVolume
func (m *MockOutputDevice) SetVolumeClamp(fn func(int) int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clampVolume = fn
}

// Calls returns the names of all calls made so far, in order
func (m *MockOutputDevice) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]string, len(m.calls))
	copy(result, m.calls)
	return result
}

// Frames returns copies of all frame payloads sent
func (m *MockOutputDevice) Frames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([][]byte, len(m.frames))
	copy(result, m.frames)
	return result
}

// Queries returns the number of QueryChnStat calls
func (m *MockOutputDevice) Queries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries
}

// HPF returns the attributes EnableHPF was called with, if any
func (m *MockOutputDevice) HPF() (DeviceAttributes, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hpf == nil {
		return DeviceAttributes{}, false
	}
	return *m.hpf, true
}

// record must be called with m.mu held
func (m *MockOutputDevice) record(method string) error {
	m.calls = append(m.calls, method)
	return m.errors[method]
}

func (m *MockOutputDevice) SetPubAttr(devID int, attr DeviceAttributes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SetPubAttr"); err != nil {
		return err
	}
	if m.normalize != nil {
		attr = m.normalize(attr)
	}
	m.attr = attr
	m.attrSet = true
	return nil
}

func (m *MockOutputDevice) GetPubAttr(devID int) (DeviceAttributes, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetPubAttr"); err != nil {
		return DeviceAttributes{}, err
	}
	if !m.attrSet {
		return DeviceAttributes{}, fmt.Errorf("device %d: %w", devID, ErrNotConfigured)
	}
	return m.attr, nil
}

func (m *MockOutputDevice) Enable(devID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("Enable")
}

func (m *MockOutputDevice) Disable(devID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("Disable")
}

func (m *MockOutputDevice) EnableChn(devID, chnID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("EnableChn")
}

func (m *MockOutputDevice) DisableChn(devID, chnID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record("DisableChn")
}

func (m *MockOutputDevice) SetVolume(devID, chnID, volume int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SetVolume"); err != nil {
		return err
	}
	if m.clampVolume != nil {
		volume = m.clampVolume(volume)
	}
	m.volume = volume
	return nil
}

func (m *MockOutputDevice) GetVolume(devID, chnID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetVolume"); err != nil {
		return 0, err
	}
	return m.volume, nil
}

func (m *MockOutputDevice) EnableHPF(attr DeviceAttributes) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("EnableHPF"); err != nil {
		return err
	}
	m.hpf = &attr
	return nil
}

func (m *MockOutputDevice) SendFrame(devID, chnID int, frame Frame, mode BlockMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("SendFrame"); err != nil {
		return err
	}
	dataCopy := make([]byte, frame.Len())
	copy(dataCopy, frame.Data)
	m.frames = append(m.frames, dataCopy)
	return nil
}

func (m *MockOutputDevice) QueryChnStat(devID, chnID int) (ChannelState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("QueryChnStat"); err != nil {
		return ChannelState{}, err
	}
	m.queries++

	busy := 0
	if len(m.busy) > 0 {
		busy = m.busy[0]
		m.busy = m.busy[1:]
	}
	total := max(m.attr.FrameCount, busy)
	return ChannelState{Total: total, Free: total - busy, Busy: busy}, nil
}

// MockDrainDevice is a MockOutputDevice that also implements DrainWaiter
type MockDrainDevice struct {
	*MockOutputDevice
	waitErr error
}

// NewMockDrainDevice creates a mock device whose WaitDrained returns waitErr
func NewMockDrainDevice(waitErr error) *MockDrainDevice {
	return &MockDrainDevice{MockOutputDevice: NewMockOutputDevice(), waitErr: waitErr}
}

func (m *MockDrainDevice) WaitDrained(ctx context.Context, devID, chnID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "WaitDrained")
	if m.waitErr != nil {
		return m.waitErr
	}
	return ctx.Err()
}

var (
	_ OutputDevice = (*MockOutputDevice)(nil)
	_ DrainWaiter  = (*MockDrainDevice)(nil)
)
