// SPDX-License-Identifier: MIT
package formant

import (
	"testing"

	"formant/internal/config"
	"formant/internal/dsp"
	"formant/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spectrumWith(bins map[int]int16) *dsp.Spectrum {
	var s dsp.Spectrum
	for k, v := range bins {
		s[k] = v
	}
	return &s
}

func TestMaxPitchBin(t *testing.T) {
	tests := []struct {
		name string
		bins map[int]int16
		want int
	}{
		{"single peak", map[int]int16{9: 300}, 9},
		{"dc ignored", map[int]int16{0: 30000, 11: 5}, 11},
		{"above search band ignored", map[int]int16{32: 30000, 14: 5}, 14},
		{"bin 31 included", map[int]int16{31: 10}, 31},
		{"first maximum wins", map[int]int16{4: 200, 9: 200}, 4},
		{"all zero", map[int]int16{}, 1},
		{"bin 3 without leakage", map[int]int16{3: 500, 4: 64}, 3},
		{"bin 3 override", map[int]int16{3: 500, 4: 65}, 5},
		{"override ignores bin 5 magnitude", map[int]int16{3: 500, 4: 400, 5: 0}, 5},
		{"bin 4 winner is not overridden", map[int]int16{3: 100, 4: 500}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaxPitchBin(spectrumWith(tt.bins)))
		})
	}
}

func TestMaxPitchBinNil(t *testing.T) {
	assert.Equal(t, NoBin, MaxPitchBin(nil))
	assert.Equal(t, NoPitch, Classify(MaxPitchBin(nil)))
}

func TestClassifyCompleteness(t *testing.T) {
	want := map[int]string{1: "G4", 3: "G5", 5: "B5", 4: "D♯6", 9: "E♭7", 11: "G7", 14: "B7"}

	for bin := -1; bin < config.FrameSize; bin++ {
		f := Classify(bin)
		if note, ok := want[bin]; ok {
			assert.Equal(t, note, f.Note, "bin %d", bin)
			assert.Equal(t, bin, f.Bin)
			assert.True(t, f.Detected())
		} else {
			assert.Equal(t, NoPitch, f, "bin %d", bin)
		}
	}
}

func TestTable(t *testing.T) {
	tbl := Table()
	require.Len(t, tbl, 7)
	assert.Equal(t, "G4 (400Hz)", tbl[0].String())
	assert.Equal(t, "1250Hz pitch detected!", tbl[3].Message())
	assert.Equal(t, "no pitch", NoPitch.String())
	assert.Equal(t, "No input signal detected/pitch out of range", NoPitch.Message())

	// The copy is detached from the lookup table.
	tbl[0].Note = "X"
	assert.Equal(t, "G4", Classify(1).Note)

	seen := map[int]bool{}
	for _, f := range tbl {
		assert.False(t, seen[f.Bin], "duplicate bin %d", f.Bin)
		seen[f.Bin] = true
		assert.Less(t, f.Bin, SearchBins)
	}
}

// TestToneToNote runs synthetic tones through the fixed-point analyzer and
// the classifier together.
func TestToneToNote(t *testing.T) {
	a := dsp.NewAnalyzer()
	tests := []struct {
		bin       int
		amplitude float64
		want      string
	}{
		{1, 0.5, "G4"},
		{5, 0.5, "B5"},
		{4, 0.5, "D♯6"},
		{9, 0.5, "E♭7"},
		{11, 0.5, "G7"},
		{14, 0.5, "B7"},
		// At half scale bin 4 leaks well over the threshold, so the loud bin 3
		// tone is reported as B5.
		{3, 0.5, "B5"},
		{3, 0.25, "G5"},
		{20, 0.5, "none"},
	}
	for _, tt := range tests {
		frame := utils.GenerateSineFrame(config.FrameSize, config.SampleRate, float64(tt.bin)*config.BinWidthHz, tt.amplitude)
		spec, err := a.Analyze(frame)
		require.NoError(t, err)
		assert.Equal(t, tt.want, Classify(MaxPitchBin(spec)).Note, "bin %d at %.2f", tt.bin, tt.amplitude)
	}
}

func TestSilenceFallsToFirstBin(t *testing.T) {
	a := dsp.NewAnalyzer()
	spec, err := a.Analyze(utils.GenerateSilence(config.FrameSize))
	require.NoError(t, err)

	// A flat spectrum picks bin 1, which is in the table. Callers that need
	// a silence gate check the level first.
	assert.Equal(t, 1, MaxPitchBin(spec))
}

func TestMaxPitchBinZeroAllocs(t *testing.T) {
	s := spectrumWith(map[int]int16{3: 500, 4: 100})
	allocs := testing.AllocsPerRun(100, func() {
		_ = Classify(MaxPitchBin(s))
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations, got %.1f", allocs)
	}
}
