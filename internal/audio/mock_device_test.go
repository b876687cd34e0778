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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockOutputDevice(t *testing.T) {
	t.Run("records_calls_in_order", func(t *testing.T) {
		dev := NewMockOutputDevice()
		require.NoError(t, dev.SetPubAttr(0, defaultAttr()))
		require.NoError(t, dev.Enable(0))
		require.NoError(t, dev.EnableChn(0, 0))
		require.NoError(t, dev.SendFrame(0, 0, Frame{Data: []byte{1, 2, 3}}, Block))

		assert.Equal(t, []string{"SetPubAttr", "Enable", "EnableChn", "SendFrame"}, dev.Calls())
		assert.Equal(t, [][]byte{{1, 2, 3}}, dev.Frames())
	})

	t.Run("error_injection", func(t *testing.T) {
		dev := NewMockOutputDevice()
		dev.SetError("EnableChn", assert.AnError)

		assert.NoError(t, dev.Enable(0))
		assert.ErrorIs(t, dev.EnableChn(0, 0), assert.AnError)
		assert.Equal(t, []string{"Enable", "EnableChn"}, dev.Calls(), "failed calls are still recorded")
	})

	t.Run("busy_sequence", func(t *testing.T) {
		dev := NewMockOutputDevice()
		require.NoError(t, dev.SetPubAttr(0, defaultAttr()))
		dev.SetBusySequence(3, 1)

		for _, want := range []int{3, 1, 0, 0} {
			state, err := dev.QueryChnStat(0, 0)
			require.NoError(t, err)
			assert.Equal(t, want, state.Busy)
			assert.Equal(t, state.Total, state.Free+state.Busy)
		}
		assert.Equal(t, 4, dev.Queries())
	})

	t.Run("normalizer_and_volume_clamp", func(t *testing.T) {
		dev := NewMockOutputDevice()
		dev.SetNormalizer(func(a DeviceAttributes) DeviceAttributes {
			a.FrameCount = 10
			return a
		})
		dev.SetVolumeClamp(func(v int) int { return min(v, 80) })

		require.NoError(t, dev.SetPubAttr(0, defaultAttr()))
		attr, err := dev.GetPubAttr(0)
		require.NoError(t, err)
		assert.Equal(t, 10, attr.FrameCount)

		require.NoError(t, dev.SetVolume(0, 0, 95))
		vol, err := dev.GetVolume(0, 0)
		require.NoError(t, err)
		assert.Equal(t, 80, vol)
	})

	t.Run("drain_waiter", func(t *testing.T) {
		dev := NewMockDrainDevice(nil)
		var _ DrainWaiter = dev

		require.NoError(t, dev.WaitDrained(context.Background(), 0, 0))
		assert.Equal(t, []string{"WaitDrained"}, dev.Calls())
	})
}
