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
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestPCMConversion(t *testing.T) {
	t.Run("little_endian_decode", func(t *testing.T) {
		pcm := []byte{0x00, 0x00, 0xFF, 0x7F, 0x00, 0x80, 0x01}
		assert.Equal(t, []int16{0, math.MaxInt16, math.MinInt16}, pcmToInt16(pcm), "trailing odd byte is ignored")
	})

	t.Run("encode_inverts_decode", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			samples := rapid.SliceOf(rapid.Int16()).Draw(t, "samples")
			pcm := make([]byte, len(samples)*2)
			putInt16(pcm, samples)
			assert.True(t, slices.Equal(samples, pcmToInt16(pcm)))
		})
	})
}

func TestApplyGain(t *testing.T) {
	tests := []struct {
		name     string
		volume   int
		input    []int16
		expected []int16
	}{
		{"full_volume_untouched", 100, []int16{123, -456}, []int16{123, -456}},
		{"half_volume", 50, []int16{1000, -1000, 1}, []int16{500, -500, 1}},
		{"mute", 0, []int16{math.MaxInt16, math.MinInt16}, []int16{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := append([]int16(nil), tt.input...)
			applyGain(samples, tt.volume)
			assert.Equal(t, tt.expected, samples)
		})
	}

	t.Run("never_amplifies", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			volume := rapid.IntRange(0, 100).Draw(t, "volume")
			s := rapid.Int16().Draw(t, "sample")
			out := []int16{s}
			applyGain(out, volume)
			assert.LessOrEqual(t, math.Abs(float64(out[0])), math.Abs(float64(s)))
		})
	})
}

func TestClampInt16(t *testing.T) {
	assert.Equal(t, int16(math.MaxInt16), clampInt16(1e9))
	assert.Equal(t, int16(math.MinInt16), clampInt16(-1e9))
	assert.Equal(t, int16(2), clampInt16(1.6))
}

func TestHighPass(t *testing.T) {
	t.Run("blocks_dc", func(t *testing.T) {
		h := newHighPass(SampleRate8000, 1, HPFCutoffHz)
		samples := make([]int16, 8000)
		for i := range samples {
			samples[i] = 12000
		}
		h.process(samples)
		assert.Less(t, math.Abs(float64(samples[len(samples)-1])), 100.0)
	})

	t.Run("passes_high_frequencies", func(t *testing.T) {
		h := newHighPass(SampleRate8000, 1, HPFCutoffHz)
		samples := make([]int16, 800)
		for i := range samples {
			if i%2 == 0 {
				samples[i] = 10000
			} else {
				samples[i] = -10000
			}
		}
		h.process(samples)
		assert.Greater(t, math.Abs(float64(samples[len(samples)-1])), 9000.0)
	})

	t.Run("stereo_channels_are_independent", func(t *testing.T) {
		h := newHighPass(SampleRate8000, 2, HPFCutoffHz)
		samples := []int16{10000, 0, 10000, 0}
		h.process(samples)
		assert.Equal(t, int16(0), samples[1])
		assert.Equal(t, int16(0), samples[3])
		assert.Greater(t, samples[0], int16(0))
	})
}
