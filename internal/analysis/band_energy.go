// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"formant/internal/config"
	"formant/internal/dsp"
)

// FrequencyBand defines the name and frequency range for an energy band.
type FrequencyBand struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// DefaultBands split 0..Nyquist so that each band holds at most one entry of
// the formant table.
var DefaultBands = []FrequencyBand{
	{Name: "low", LowHz: 16, HighHz: 600},
	{Name: "lowMid", LowHz: 600, HighHz: 1100},
	{Name: "mid", LowHz: 1100, HighHz: 2000},
	{Name: "highMid", LowHz: 2000, HighHz: 3500},
	{Name: "high", LowHz: 3500, HighHz: config.SampleRate / 2},
}

// BandEnergies writes the mean power per band into dst, one value per band,
// normalized to 0..1 against full-scale power. Only the lower half of the
// spectrum is read. dst must have len(bands) entries.
func BandEnergies(dst []float64, spec *dsp.Spectrum, bands []FrequencyBand) {
	for i, band := range bands {
		var sum float64
		var bins int
		for k := 1; k < config.FrameSize/2; k++ {
			freq := dsp.BinHz(k)
			if freq >= band.LowHz && freq < band.HighHz {
				sum += float64(spec[k])
				bins++
			}
		}
		if bins == 0 {
			dst[i] = 0
			continue
		}
		// Power is amplitude squared; report the amplitude-like root.
		dst[i] = math.Min(1, math.Sqrt(sum/float64(bins)/math.MaxInt16)*4)
	}
}
