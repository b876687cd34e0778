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
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"go.uber.org/multierr"

	"github.com/loqalabs/audioplay-go/internal/audio"
)

// Device is a configured AO device
type Device struct {
	ID         int
	Attributes audio.DeviceAttributes
	enabled    bool
}

// Channel is an enabled output channel and the volume the device settled on
type Channel struct {
	Device  *Device
	ID      int
	Volume  int
	enabled bool
}

// Progress counts what Feed handed to the device
type Progress struct {
	Bytes  int64
	Frames int
}

// Result summarises a completed run
type Result struct {
	Progress
	Attributes audio.DeviceAttributes
	Volume     int
	Polls      int
	Elapsed    time.Duration
}

// Player runs the playback lifecycle against one OutputDevice. A Player
// is single use and must only be driven from one goroutine.
type Player struct {
	dev       audio.OutputDevice
	fs        afero.Fs
	opts      Options
	logger    *log.Logger
	observers []Observer
	sleep     func(context.Context, time.Duration) error

	state State
	path  string
	bytes int64
	polls int
}

// New creates a Player for dev. A nil logger uses the default logger.
func New(dev audio.OutputDevice, opts Options, logger *log.Logger) *Player {
	if logger == nil {
		logger = log.Default()
	}
	return &Player{
		dev:    dev,
		fs:     afero.NewOsFs(),
		opts:   opts.withDefaults(),
		logger: logger,
		sleep:  sleepContext,
	}
}

// WithFs makes the player open input files from fs
func (p *Player) WithFs(fs afero.Fs) *Player {
	p.fs = fs
	return p
}

// Observe registers o for every subsequent transition
func (p *Player) Observe(o Observer) {
	p.observers = append(p.observers, o)
}

// State returns the current state
func (p *Player) State() State {
	return p.state
}

// Options returns the effective options
func (p *Player) Options() Options {
	return p.opts
}

func (p *Player) transition(to State, err error) {
	from := p.state
	p.state = to
	p.logger.Debug("state transition", "from", from, "to", to)

	event := Event{
		State:   to,
		From:    from,
		Device:  p.opts.DeviceID,
		Channel: p.opts.ChannelID,
		Path:    p.path,
		Bytes:   p.bytes,
		Err:     err,
		Time:    time.Now(),
	}
	for _, o := range p.observers {
		o.OnTransition(event)
	}
}

// fail moves to StateFailed and returns err wrapped with step
func (p *Player) fail(step Step, err error) error {
	err = stepErr(step, err)
	p.logger.Error("playback step failed", "step", string(step), "err", err)
	p.transition(StateFailed, err)
	return err
}

func (p *Player) expect(want State) error {
	if p.state != want {
		return fmt.Errorf("%w: in %s, want %s", ErrInvalidState, p.state, want)
	}
	return nil
}

// Configure writes req's attributes to the device and reads back the
// effective ones
func (p *Player) Configure(ctx context.Context, req Request) (*Device, error) {
	if err := p.expect(StateUnconfigured); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, p.fail(StepCancelled, err)
	}

	devID := p.opts.DeviceID
	if err := p.dev.SetPubAttr(devID, req.Attributes); err != nil {
		return nil, p.fail(StepSetAttr, fmt.Errorf("ao %d: %w", devID, err))
	}

	attr, err := p.dev.GetPubAttr(devID)
	if err != nil {
		return nil, p.fail(StepGetAttr, fmt.Errorf("ao %d: %w", devID, err))
	}

	p.logger.Info("audio out attributes",
		"device", devID,
		"samplerate", int(attr.SampleRate),
		"bitwidth", int(attr.BitWidth),
		"soundmode", attr.SoundMode,
		"frmNum", attr.FrameCount,
		"numPerFrm", attr.SamplesPerFrame,
		"chnCnt", attr.ChannelCount,
	)
	if attr != req.Attributes {
		p.logger.Warn("device adjusted requested attributes", "requested", req.Attributes, "effective", attr)
	}

	p.transition(StateConfigured, nil)
	return &Device{ID: devID, Attributes: attr}, nil
}

// OpenChannel enables the device and channel, applies volume and turns on
// the high-pass filter. If any step fails, whatever it enabled is disabled
// again before returning.
func (p *Player) OpenChannel(ctx context.Context, d *Device, volume int) (_ *Channel, err error) {
	if err := p.expect(StateConfigured); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, p.fail(StepCancelled, err)
	}

	c := &Channel{Device: d, ID: p.opts.ChannelID}
	defer func() {
		if err != nil {
			err = multierr.Append(err, p.release(c))
		}
	}()

	if err := p.dev.Enable(d.ID); err != nil {
		return nil, p.fail(StepEnableDevice, fmt.Errorf("ao %d: %w", d.ID, err))
	}
	d.enabled = true

	if err := p.dev.EnableChn(d.ID, c.ID); err != nil {
		return nil, p.fail(StepEnableChannel, fmt.Errorf("ao %d channel %d: %w", d.ID, c.ID, err))
	}
	c.enabled = true

	if err := p.dev.SetVolume(d.ID, c.ID, volume); err != nil {
		return nil, p.fail(StepSetVolume, err)
	}

	c.Volume, err = p.dev.GetVolume(d.ID, c.ID)
	if err != nil {
		return nil, p.fail(StepGetVolume, err)
	}
	p.logger.Info("audio out volume", "requested", volume, "effective", c.Volume)

	if err := p.dev.EnableHPF(d.Attributes); err != nil {
		return nil, p.fail(StepEnableHPF, err)
	}

	p.transition(StateChannelOpen, nil)
	return c, nil
}

// Feed reads r in BufferSize chunks and sends each non-empty chunk to the
// channel with a blocking send. It returns at the first zero-byte read.
func (p *Player) Feed(ctx context.Context, ch *Channel, r io.Reader) (Progress, error) {
	var progress Progress
	if err := p.expect(StateChannelOpen); err != nil {
		return progress, err
	}
	p.transition(StateFeeding, nil)

	buf := make([]byte, BufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return progress, p.fail(StepCancelled, err)
		}

		n, readErr := io.ReadFull(r, buf)
		if n > 0 {
			frame := audio.Frame{Data: buf[:n]}
			if err := p.dev.SendFrame(ch.Device.ID, ch.ID, frame, audio.Block); err != nil {
				return progress, p.fail(StepSendFrame, err)
			}
			progress.Bytes += int64(n)
			progress.Frames++
			p.bytes = progress.Bytes
		}

		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			p.logger.Debug("input exhausted", "bytes", progress.Bytes, "frames", progress.Frames)
			return progress, nil
		default:
			return progress, p.fail(StepReadFile, readErr)
		}
	}
}

// DrainWait returns once the channel reports no busy frames. In poll mode
// (or when the device cannot signal drain) the channel state is queried
// every PollInterval; only the busy count decides termination.
func (p *Player) DrainWait(ctx context.Context, ch *Channel) error {
	if err := p.expect(StateFeeding); err != nil {
		return err
	}
	p.transition(StateDraining, nil)

	if p.opts.DrainMode == DrainBlock {
		if waiter, ok := p.dev.(audio.DrainWaiter); ok {
			if err := waiter.WaitDrained(ctx, ch.Device.ID, ch.ID); err != nil {
				return p.fail(StepDrainWait, err)
			}
			return nil
		}
		p.logger.Warn("device cannot signal drain, polling instead", "interval", p.opts.PollInterval)
	}

	for {
		state, err := p.dev.QueryChnStat(ch.Device.ID, ch.ID)
		if err != nil {
			return p.fail(StepQueryState, err)
		}
		p.polls++
		p.logger.Debug("channel state", "total", state.Total, "free", state.Free, "busy", state.Busy)

		if state.Busy == 0 {
			return nil
		}

		if err := p.sleep(ctx, p.opts.PollInterval); err != nil {
			return p.fail(StepDrainWait, err)
		}
	}
}

// CloseChannel disables the channel
func (p *Player) CloseChannel(ch *Channel) error {
	if err := p.expect(StateDraining); err != nil {
		return err
	}
	err := p.dev.DisableChn(ch.Device.ID, ch.ID)
	ch.enabled = false
	if err != nil {
		return p.fail(StepDisableChan, err)
	}
	p.transition(StateChannelClosed, nil)
	return nil
}

// CloseDevice disables the device
func (p *Player) CloseDevice(d *Device) error {
	if err := p.expect(StateChannelClosed); err != nil {
		return err
	}
	err := p.dev.Disable(d.ID)
	d.enabled = false
	if err != nil {
		return p.fail(StepDisableDevice, err)
	}
	p.transition(StateDeviceClosed, nil)
	return nil
}

// release disables whatever c still holds, channel before device
func (p *Player) release(c *Channel) error {
	if c == nil {
		return nil
	}
	var err error
	if c.enabled {
		if disableErr := p.dev.DisableChn(c.Device.ID, c.ID); disableErr != nil {
			err = multierr.Append(err, stepErr(StepDisableChan, disableErr))
		}
		c.enabled = false
	}
	if c.Device != nil && c.Device.enabled {
		if disableErr := p.dev.Disable(c.Device.ID); disableErr != nil {
			err = multierr.Append(err, stepErr(StepDisableDevice, disableErr))
		}
		c.Device.enabled = false
	}
	if err != nil {
		p.logger.Error("release after failure incomplete", "err", err)
	} else {
		p.logger.Debug("released device after failure")
	}
	return err
}

// Run plays req.Path to completion and releases the device, exactly once.
// A file that cannot be opened fails before any device call.
func (p *Player) Run(ctx context.Context, req Request) (Result, error) {
	var result Result
	if err := p.expect(StateUnconfigured); err != nil {
		return result, err
	}
	start := time.Now()
	p.path = req.Path

	file, err := p.fs.Open(req.Path)
	if err != nil {
		err = stepErr(StepOpenFile, err)
		p.logger.Error("cannot open input", "path", req.Path, "err", err)
		return result, err
	}
	defer func() { _ = file.Close() }()

	d, err := p.Configure(ctx, req)
	if err != nil {
		return result, err
	}
	result.Attributes = d.Attributes

	ch, err := p.OpenChannel(ctx, d, req.Volume)
	if err != nil {
		return result, err
	}
	result.Volume = ch.Volume

	p.logger.Info("🔊 playing", "path", req.Path, "volume", ch.Volume)
	if result.Progress, err = p.Feed(ctx, ch, file); err != nil {
		return result, multierr.Append(err, p.release(ch))
	}

	if err := p.DrainWait(ctx, ch); err != nil {
		return result, multierr.Append(err, p.release(ch))
	}
	result.Polls = p.polls

	if err := p.CloseChannel(ch); err != nil {
		return result, multierr.Append(err, p.release(ch))
	}
	if err := p.CloseDevice(d); err != nil {
		return result, err
	}

	result.Elapsed = time.Since(start)
	p.transition(StateDone, nil)
	p.logger.Info("✅ playback complete",
		"bytes", result.Bytes,
		"frames", result.Frames,
		"elapsed", result.Elapsed.Round(time.Millisecond),
	)
	return result, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
