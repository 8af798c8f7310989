// SPDX-License-Identifier: MIT
package analysis

import (
	"math"

	"formant/internal/config"
)

// FrameRMS returns the RMS level of offset-binary samples as a fraction of
// full scale. The DC midpoint is removed before squaring.
func FrameRMS(samples []uint16) float64 {
	if len(samples) == 0 {
		return 0.0
	}

	var sumSquare float64
	for _, s := range samples {
		v := float64(int16(s-config.SampleMidpoint)) / math.MaxInt16
		sumSquare += v * v
	}

	return math.Sqrt(sumSquare / float64(len(samples)))
}

// LevelMeter smooths frame levels with a fast attack and slow release, for
// display.
type LevelMeter struct {
	release float64
	level   float64
}

// NewLevelMeter creates a meter whose level decays by the release factor
// (0..1) per frame when the input is quieter.
func NewLevelMeter(release float64) *LevelMeter {
	return &LevelMeter{release: math.Max(0, math.Min(release, 1))}
}

// Update feeds one frame level and returns the smoothed level.
func (m *LevelMeter) Update(rms float64) float64 {
	if rms >= m.level {
		m.level = rms
	} else {
		m.level = m.level*m.release + rms*(1-m.release)
	}
	return m.level
}

// Level returns the current smoothed level.
func (m *LevelMeter) Level() float64 {
	return m.level
}
