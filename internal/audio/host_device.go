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

	"github.com/charmbracelet/log"
)

// Limits enforced by HostDevice when normalizing attributes
const (
	MaxDevices         = 2
	MaxFrameCount      = 50
	MaxSamplesPerFrame = 2048
	MaxVolume          = 100
	MinVolume          = 0
)

// HostDevice emulates an AO device on the host: each enabled channel owns
// a queue of FrameCount slots drained by a goroutine into a Sink.
type HostDevice struct {
	mu      sync.Mutex
	newSink SinkFactory
	logger  *log.Logger
	devices [MaxDevices]hostDev
	hpf     *DeviceAttributes
}

type hostDev struct {
	attr       DeviceAttributes
	configured bool
	enabled    bool
	sink       Sink
	channels   map[int]*hostChannel
}

type hostChannel struct {
	mu      sync.Mutex
	attr    DeviceAttributes
	volume  int
	busy    int
	drained chan struct{}
	filter  *highPass

	slots chan struct{}
	queue chan []byte
	stop  chan struct{}
	done  chan struct{}
}

// NewHostDevice creates a host AO device that opens a sink from newSink
// on every Enable
func NewHostDevice(newSink SinkFactory, logger *log.Logger) *HostDevice {
	if logger == nil {
		logger = log.Default()
	}
	return &HostDevice{
		newSink: newSink,
		logger:  logger.WithPrefix("ao"),
	}
}

func (h *HostDevice) device(devID int) (*hostDev, error) {
	if devID < 0 || devID >= MaxDevices {
		return nil, fmt.Errorf("device %d: %w", devID, ErrInvalidDevice)
	}
	return &h.devices[devID], nil
}

// channel must be called with h.mu held
func (h *HostDevice) channel(devID, chnID int) (*hostChannel, error) {
	d, err := h.device(devID)
	if err != nil {
		return nil, err
	}
	if !d.enabled {
		return nil, fmt.Errorf("device %d: %w", devID, ErrNotEnabled)
	}
	c, ok := d.channels[chnID]
	if !ok {
		return nil, fmt.Errorf("device %d channel %d: %w", devID, chnID, ErrChannelDisabled)
	}
	return c, nil
}

// normalize validates attr and clamps the adjustable fields
func normalize(attr DeviceAttributes) (DeviceAttributes, error) {
	if !attr.SampleRate.valid() {
		return attr, fmt.Errorf("sample rate %d: %w", attr.SampleRate, ErrUnsupportedAttr)
	}
	if attr.BitWidth != BitWidth16 {
		return attr, fmt.Errorf("bit width %d: %w", attr.BitWidth, ErrUnsupportedAttr)
	}
	if attr.SoundMode != SoundModeMono && attr.SoundMode != SoundModeStereo {
		return attr, fmt.Errorf("sound mode %d: %w", attr.SoundMode, ErrUnsupportedAttr)
	}
	attr.FrameCount = clamp(attr.FrameCount, 1, MaxFrameCount)
	attr.SamplesPerFrame = clamp(attr.SamplesPerFrame, 1, MaxSamplesPerFrame)
	attr.ChannelCount = 1
	return attr, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// SetPubAttr validates and stores the device attributes
func (h *HostDevice) SetPubAttr(devID int, attr DeviceAttributes) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(devID)
	if err != nil {
		return err
	}
	if d.enabled {
		return fmt.Errorf("device %d: %w", devID, ErrDeviceEnabled)
	}

	effective, err := normalize(attr)
	if err != nil {
		return err
	}
	if effective != attr {
		h.logger.Warn("attributes normalized", "device", devID, "requested", attr, "effective", effective)
	}
	d.attr = effective
	d.configured = true
	return nil
}

// GetPubAttr returns the stored attributes
func (h *HostDevice) GetPubAttr(devID int) (DeviceAttributes, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(devID)
	if err != nil {
		return DeviceAttributes{}, err
	}
	if !d.configured {
		return DeviceAttributes{}, fmt.Errorf("device %d: %w", devID, ErrNotConfigured)
	}
	return d.attr, nil
}

// Enable opens a sink for the device
func (h *HostDevice) Enable(devID int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(devID)
	if err != nil {
		return err
	}
	if !d.configured {
		return fmt.Errorf("device %d: %w", devID, ErrNotConfigured)
	}
	if d.enabled {
		return fmt.Errorf("device %d: %w", devID, ErrDeviceEnabled)
	}

	sink := h.newSink()
	if err := sink.Open(d.attr); err != nil {
		return fmt.Errorf("device %d: open sink: %w", devID, err)
	}

	d.sink = sink
	d.enabled = true
	d.channels = make(map[int]*hostChannel)
	h.logger.Debug("device enabled", "device", devID)
	return nil
}

// Disable stops any open channel and closes the sink
func (h *HostDevice) Disable(devID int) error {
	h.mu.Lock()
	d, err := h.device(devID)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	if !d.enabled {
		h.mu.Unlock()
		return fmt.Errorf("device %d: %w", devID, ErrNotEnabled)
	}
	channels := d.channels
	sink := d.sink
	d.channels = nil
	d.sink = nil
	d.enabled = false
	h.mu.Unlock()

	for chnID, c := range channels {
		h.logger.Warn("channel still enabled at device disable", "device", devID, "channel", chnID)
		c.shutdown()
	}

	if err := sink.Close(); err != nil {
		return fmt.Errorf("device %d: close sink: %w", devID, err)
	}
	h.logger.Debug("device disabled", "device", devID)
	return nil
}

// EnableChn creates the channel queue and starts its player goroutine
func (h *HostDevice) EnableChn(devID, chnID int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	d, err := h.device(devID)
	if err != nil {
		return err
	}
	if !d.enabled {
		return fmt.Errorf("device %d: %w", devID, ErrNotEnabled)
	}
	if chnID < 0 || chnID >= d.attr.ChannelCount {
		return fmt.Errorf("device %d channel %d: %w", devID, chnID, ErrInvalidChannel)
	}
	if _, ok := d.channels[chnID]; ok {
		return fmt.Errorf("device %d channel %d: %w", devID, chnID, ErrChannelEnabled)
	}

	c := &hostChannel{
		attr:   d.attr,
		volume: MaxVolume,
		slots:  make(chan struct{}, d.attr.FrameCount),
		queue:  make(chan []byte, d.attr.FrameCount),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	d.channels[chnID] = c

	go h.play(devID, chnID, d.sink, c)
	h.logger.Debug("channel enabled", "device", devID, "channel", chnID, "slots", d.attr.FrameCount)
	return nil
}

// DisableChn stops the channel goroutine and drops queued frames
func (h *HostDevice) DisableChn(devID, chnID int) error {
	h.mu.Lock()
	c, err := h.channel(devID, chnID)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	delete(h.devices[devID].channels, chnID)
	h.mu.Unlock()

	if dropped := c.shutdown(); dropped > 0 {
		h.logger.Warn("dropped unplayed frames", "device", devID, "channel", chnID, "frames", dropped)
	}
	h.logger.Debug("channel disabled", "device", devID, "channel", chnID)
	return nil
}

// SetVolume stores the channel volume clamped to [MinVolume, MaxVolume]
func (h *HostDevice) SetVolume(devID, chnID, volume int) error {
	h.mu.Lock()
	c, err := h.channel(devID, chnID)
	h.mu.Unlock()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.volume = clamp(volume, MinVolume, MaxVolume)
	c.mu.Unlock()
	return nil
}

// GetVolume returns the effective channel volume
func (h *HostDevice) GetVolume(devID, chnID int) (int, error) {
	h.mu.Lock()
	c, err := h.channel(devID, chnID)
	h.mu.Unlock()
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume, nil
}

// EnableHPF enables the high-pass filter for channels whose device runs
// at attr's sample rate and sound mode
func (h *HostDevice) EnableHPF(attr DeviceAttributes) error {
	if !attr.SampleRate.valid() {
		return fmt.Errorf("hpf sample rate %d: %w", attr.SampleRate, ErrUnsupportedAttr)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hpf = &attr
	return nil
}

func (h *HostDevice) hpfFor(attr DeviceAttributes) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hpf != nil && h.hpf.SampleRate == attr.SampleRate && h.hpf.SoundMode == attr.SoundMode
}

// SendFrame copies frame into a free queue slot. In Block mode it waits
// for a slot; in NonBlock mode it fails with ErrQueueFull.
func (h *HostDevice) SendFrame(devID, chnID int, frame Frame, mode BlockMode) error {
	h.mu.Lock()
	c, err := h.channel(devID, chnID)
	h.mu.Unlock()
	if err != nil {
		return err
	}

	if frame.Len() == 0 {
		return ErrEmptyFrame
	}
	if frame.Len() > c.attr.FrameBytes() {
		return fmt.Errorf("%d bytes (max %d): %w", frame.Len(), c.attr.FrameBytes(), ErrFrameTooLarge)
	}

	if mode == NonBlock {
		select {
		case c.slots <- struct{}{}:
		default:
			return ErrQueueFull
		}
	} else {
		select {
		case c.slots <- struct{}{}:
		case <-c.stop:
			return fmt.Errorf("device %d channel %d: %w", devID, chnID, ErrChannelDisabled)
		}
	}

	data := make([]byte, frame.Len())
	copy(data, frame.Data)

	c.mu.Lock()
	c.busy++
	c.mu.Unlock()

	c.queue <- data
	return nil
}

// QueryChnStat reports slot occupancy; Busy counts queued frames plus
// the one being played
func (h *HostDevice) QueryChnStat(devID, chnID int) (ChannelState, error) {
	h.mu.Lock()
	c, err := h.channel(devID, chnID)
	h.mu.Unlock()
	if err != nil {
		return ChannelState{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	total := cap(c.slots)
	return ChannelState{Total: total, Free: total - c.busy, Busy: c.busy}, nil
}

// WaitDrained blocks until the channel has no busy frames
func (h *HostDevice) WaitDrained(ctx context.Context, devID, chnID int) error {
	h.mu.Lock()
	c, err := h.channel(devID, chnID)
	h.mu.Unlock()
	if err != nil {
		return err
	}

	select {
	case <-c.drainSignal():
		return nil
	case <-c.stop:
		return fmt.Errorf("device %d channel %d: %w", devID, chnID, ErrChannelDisabled)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// play runs until the channel is disabled
func (h *HostDevice) play(devID, chnID int, sink Sink, c *hostChannel) {
	defer close(c.done)

	for {
		select {
		case <-c.stop:
			return
		case pcm := <-c.queue:
			h.render(c, pcm)
			if err := sink.Write(pcm); err != nil {
				h.logger.Error("sink write failed", "device", devID, "channel", chnID, "err", err)
			}
			c.release()
			<-c.slots
		}
	}
}

// render applies channel volume and the high-pass filter in place
func (h *HostDevice) render(c *hostChannel, pcm []byte) {
	hpf := h.hpfFor(c.attr)

	c.mu.Lock()
	volume := c.volume
	if hpf && c.filter == nil {
		c.filter = newHighPass(c.attr.SampleRate, c.attr.SoundMode.Channels(), HPFCutoffHz)
	}
	filter := c.filter
	c.mu.Unlock()

	if volume >= MaxVolume && !hpf {
		return
	}

	samples := pcmToInt16(pcm)
	if hpf {
		filter.process(samples)
	}
	applyGain(samples, volume)
	putInt16(pcm, samples)
}

func (c *hostChannel) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy--
	if c.busy == 0 && c.drained != nil {
		close(c.drained)
		c.drained = nil
	}
}

func (c *hostChannel) drainSignal() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy == 0 {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	if c.drained == nil {
		c.drained = make(chan struct{})
	}
	return c.drained
}

// shutdown stops the player goroutine and returns the number of frames
// that never reached the sink
func (c *hostChannel) shutdown() int {
	close(c.stop)
	<-c.done

	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := len(c.queue)
	c.busy = 0
	if c.drained != nil {
		close(c.drained)
		c.drained = nil
	}
	return dropped
}

var (
	_ OutputDevice = (*HostDevice)(nil)
	_ DrainWaiter  = (*HostDevice)(nil)
)
