// SPDX-License-Identifier: MIT
/*
Package dsp is the fixed-point spectral analyzer: Hann window, 512-point
forward transform and power spectrum, all in 16-bit fixed point with 32/64-bit
intermediates.

Scaling:
  - input samples are Q15 after re-centering
  - each of the 9 radix-2 stages halves its outputs, so bin k holds X[k]/512
  - power is (re*re + im*im) >> 15, saturated to int16

A full-scale input cannot overflow any stage. Precision lost to rounding is a
few LSB per bin; relative bin ranking is what callers rely on.
*/
package dsp

import (
	"errors"
	"math"

	"formant/internal/config"
	"formant/pkg/bitint"
)

// Spectrum is a power spectrum with one entry per transform bin. Bins above
// FrameSize/2 mirror the lower half.
type Spectrum [config.FrameSize]int16

// ErrInvalidInput is returned when the input is missing or not exactly
// config.FrameSize samples long.
var ErrInvalidInput = errors.New("dsp: input must be exactly 512 samples")

const (
	size   = config.FrameSize
	stages = 9
)

var (
	twiddleCos [size / 2]int16
	twiddleSin [size / 2]int16
	bitrev     [size]uint16
)

func init() {
	if !bitint.IsPowerOfTwo(size) || bitint.Log2(size) != stages {
		panic("dsp: transform size must be 2^stages")
	}
	for k := range twiddleCos {
		angle := 2 * math.Pi * float64(k) / size
		twiddleCos[k] = int16(math.Round(math.Cos(angle) * math.MaxInt16))
		twiddleSin[k] = int16(math.Round(math.Sin(angle) * math.MaxInt16))
	}
	for i := range bitrev {
		bitrev[i] = uint16(bitint.ReverseBits(uint(i), stages))
	}
}

// Analyzer holds the transform workspace and a reusable output spectrum.
// It is not safe for concurrent use; the control loop runs one analysis at a
// time.
type Analyzer struct {
	windowed [size]int16
	re, im   [size]int32
	spectrum Spectrum
}

// NewAnalyzer allocates an analyzer. All buffers are allocated here; the
// analysis itself does not allocate.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze computes the power spectrum of samples into the analyzer's own
// spectrum and returns it. The result is overwritten by the next call.
func (a *Analyzer) Analyze(samples []uint16) (*Spectrum, error) {
	if err := a.AnalyzeInto(&a.spectrum, samples); err != nil {
		return nil, err
	}
	return &a.spectrum, nil
}

// AnalyzeInto computes the power spectrum of samples into dst.
func (a *Analyzer) AnalyzeInto(dst *Spectrum, samples []uint16) error {
	if dst == nil || len(samples) != size {
		return ErrInvalidInput
	}

	Recenter(a.windowed[:], samples)
	ApplyWindow(a.windowed[:])

	for i, x := range a.windowed {
		j := bitrev[i]
		a.re[j] = int32(x)
		a.im[j] = 0
	}
	a.transform()

	for k := range dst {
		re, im := int64(a.re[k]), int64(a.im[k])
		p := (re*re + im*im) >> 15
		if p > math.MaxInt16 {
			p = math.MaxInt16
		}
		dst[k] = int16(p)
	}
	return nil
}

// transform runs the in-place radix-2 decimation-in-time butterflies over
// bit-reversed input, halving every stage.
func (a *Analyzer) transform() {
	for span := 2; span <= size; span <<= 1 {
		half := span >> 1
		step := size / span
		for start := 0; start < size; start += span {
			for k := 0; k < half; k++ {
				wr := int64(twiddleCos[k*step])
				wi := -int64(twiddleSin[k*step])

				p, q := start+k, start+k+half
				br, bi := int64(a.re[q]), int64(a.im[q])
				tr := int32((br*wr - bi*wi) >> 15)
				ti := int32((br*wi + bi*wr) >> 15)

				ar, ai := a.re[p], a.im[p]
				a.re[p] = (ar + tr) >> 1
				a.im[p] = (ai + ti) >> 1
				a.re[q] = (ar - tr) >> 1
				a.im[q] = (ai - ti) >> 1
			}
		}
	}
}

// BinHz returns the center frequency of transform bin k.
func BinHz(k int) float64 {
	return float64(k) * config.BinWidthHz
}
