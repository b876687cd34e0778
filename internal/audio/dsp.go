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
	"encoding/binary"
	"math"
)

// HPFCutoffHz is the corner frequency of the high-pass filter
const HPFCutoffHz = 100.0

// pcmToInt16 decodes little-endian signed 16-bit PCM. A trailing odd
// byte is ignored.
func pcmToInt16(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:])) //nolint:gosec // G115: reinterpreting sample bits
	}
	return samples
}

// putInt16 encodes samples back into pcm, which must hold len(samples)*2 bytes
func putInt16(pcm []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s)) //nolint:gosec // G115: reinterpreting sample bits
	}
}

func clampInt16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(math.Round(v))
}

// applyGain scales samples in place by volume percent
func applyGain(samples []int16, volume int) {
	if volume >= 100 {
		return
	}
	gain := float64(volume) / 100.0
	for i, s := range samples {
		samples[i] = clampInt16(float64(s) * gain)
	}
}

// highPass is a first-order DC blocking filter:
// y[n] = a * (y[n-1] + x[n] - x[n-1]), one state per interleaved channel.
type highPass struct {
	alpha   float64
	prevIn  []float64
	prevOut []float64
}

func newHighPass(rate SampleRate, channels int, cutoff float64) *highPass {
	rc := 1.0 / (2 * math.Pi * cutoff)
	dt := 1.0 / float64(rate)
	return &highPass{
		alpha:   rc / (rc + dt),
		prevIn:  make([]float64, channels),
		prevOut: make([]float64, channels),
	}
}

func (h *highPass) process(samples []int16) {
	channels := len(h.prevIn)
	for i, s := range samples {
		c := i % channels
		x := float64(s)
		y := h.alpha * (h.prevOut[c] + x - h.prevIn[c])
		h.prevIn[c] = x
		h.prevOut[c] = y
		samples[i] = clampInt16(y)
	}
}
