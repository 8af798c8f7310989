// SPDX-License-Identifier: MIT
package dsp

import (
	"math"

	"formant/internal/config"

	"gonum.org/v1/gonum/dsp/window"
)

// hann holds the Q15 Hann window, 0.5*(1-cos(2*pi*i/(N-1))), built once from
// the gonum window so the fixed-point and float engines share one definition.
var hann = newHannTable()

func newHannTable() [config.FrameSize]int16 {
	coeffs := make([]float64, config.FrameSize)
	for i := range coeffs {
		coeffs[i] = 1
	}
	window.Hann(coeffs)

	var table [config.FrameSize]int16
	for i, c := range coeffs {
		table[i] = int16(math.Round(c * math.MaxInt16))
	}
	return table
}

// HannQ15 returns coefficient i of the Q15 Hann table.
func HannQ15(i int) int16 {
	return hann[i]
}

// Recenter converts offset-binary samples to signed Q15 by subtracting the
// midpoint. dst and src must have the same length.
func Recenter(dst []int16, src []uint16) {
	for i, s := range src {
		dst[i] = int16(s - config.SampleMidpoint)
	}
}

// ApplyWindow multiplies x in place by the Hann table. The product is widened
// to 32 bits and shifted back to Q15. len(x) must be config.FrameSize.
func ApplyWindow(x []int16) {
	for i := range x {
		x[i] = int16((int32(x[i]) * int32(hann[i])) >> 15)
	}
}
