// SPDX-License-Identifier: MIT
package dsp

import (
	"testing"
	"time"

	"formant/internal/config"
	"formant/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tone(bin int, amplitude float64) []uint16 {
	return utils.GenerateSineFrame(config.FrameSize, config.SampleRate, float64(bin)*config.BinWidthHz, amplitude)
}

func TestHannTable(t *testing.T) {
	assert.Equal(t, int16(0), HannQ15(0))
	assert.InDelta(t, 0, HannQ15(config.FrameSize-1), 1)
	assert.Equal(t, int16(32767), HannQ15(255))
	assert.InDelta(t, 10149, HannQ15(96), 2)

	for i := 0; i < config.FrameSize/2; i++ {
		assert.InDelta(t, HannQ15(i), HannQ15(config.FrameSize-1-i), 1, "asymmetric at %d", i)
	}
}

func TestApplyWindowZero(t *testing.T) {
	x := make([]int16, config.FrameSize)
	ApplyWindow(x)
	for i, v := range x {
		require.Zero(t, v, "sample %d", i)
	}
}

func TestRecenter(t *testing.T) {
	dst := make([]int16, 4)
	Recenter(dst, []uint16{0, 32768, 65535, 32769})
	assert.Equal(t, []int16{-32768, 0, 32767, 1}, dst)
}

func TestAnalyzeSilence(t *testing.T) {
	a := NewAnalyzer()
	spec, err := a.Analyze(utils.GenerateSilence(config.FrameSize))
	require.NoError(t, err)
	for k, v := range spec {
		require.Zero(t, v, "bin %d", k)
	}
}

func TestAnalyzeInvalidInput(t *testing.T) {
	a := NewAnalyzer()

	_, err := a.Analyze(make([]uint16, config.FrameSize-1))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = a.Analyze(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.ErrorIs(t, a.AnalyzeInto(nil, make([]uint16, config.FrameSize)), ErrInvalidInput)
}

func TestAnalyzeToneLandsInBin(t *testing.T) {
	a := NewAnalyzer()
	for _, bin := range []int{1, 3, 4, 5, 9, 11, 14, 31, 100} {
		spec, err := a.Analyze(tone(bin, 0.5))
		require.NoError(t, err)

		peak := utils.FindPeakBin(spec[:], 1, config.FrameSize/2-1)
		assert.Equal(t, bin, peak, "tone at %g Hz", BinHz(bin))

		// Half scale gives |X|/N = 4096 in the bin and 2048 in each Hann
		// neighbour.
		assert.InDelta(t, 512, spec[bin], 24, "bin %d power", bin)
		assert.InDelta(t, 128, spec[bin+1], 12, "bin %d upper neighbour", bin)
		if bin == 1 {
			// The leakage of the positive and negative images cancels at DC.
			assert.LessOrEqual(t, spec[0], int16(4), "bin 1 leaks into DC")
		} else {
			assert.InDelta(t, 128, spec[bin-1], 12, "bin %d lower neighbour", bin)
		}
		assert.LessOrEqual(t, spec[bin+3], int16(4), "bin %d leakage", bin)

		// Real input gives a mirrored spectrum.
		assert.InDelta(t, spec[bin], spec[config.FrameSize-bin], 2)
	}
}

func TestAnalyzeScalesWithAmplitude(t *testing.T) {
	a := NewAnalyzer()
	var loud, quiet Spectrum
	require.NoError(t, a.AnalyzeInto(&loud, tone(5, 0.5)))
	require.NoError(t, a.AnalyzeInto(&quiet, tone(5, 0.25)))

	// Power goes with the square of amplitude.
	assert.InDelta(t, float64(loud[5])/4, quiet[5], 4)
}

func TestAnalyzeReusesSpectrum(t *testing.T) {
	a := NewAnalyzer()
	first, err := a.Analyze(tone(3, 0.5))
	require.NoError(t, err)
	second, err := a.Analyze(tone(9, 0.5))
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 9, utils.FindPeakBin(second[:], 1, 255))
}

func TestAnalyzeZeroAllocs(t *testing.T) {
	a := NewAnalyzer()
	in := tone(5, 0.5)
	var out Spectrum
	allocs := testing.AllocsPerRun(100, func() {
		_ = a.AnalyzeInto(&out, in)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations per analysis, got %.1f", allocs)
	}
}

func TestAnalyzeFitsFramePeriod(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	a := NewAnalyzer()
	in := tone(5, 0.5)
	const runs = 200

	start := time.Now()
	for range runs {
		_, _ = a.Analyze(in)
	}
	per := time.Since(start) / runs
	assert.Less(t, per, config.FramePeriod, "one analysis must finish within a frame period")
}

func BenchmarkAnalyze(b *testing.B) {
	a := NewAnalyzer()
	in := tone(5, 0.5)
	b.ReportAllocs()
	for b.Loop() {
		_, _ = a.Analyze(in)
	}
}
