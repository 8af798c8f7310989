// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"sync/atomic"

	"formant/internal/config"
)

// Gate is a peak noise gate on offset-binary frames. When enabled, a frame
// whose largest excursion from the midpoint does not exceed the threshold is
// reported closed and the loop treats it as silence.
//
// Settings may be changed from another goroutine (the TUI) while the loop
// calls Open.
type Gate struct {
	enabled   atomic.Bool
	threshold atomic.Int32 // Absolute excursion threshold (0-32767).
}

// NewGate returns a gate with the given threshold. A threshold of 0 leaves
// the gate disabled.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	if threshold > 0 {
		g.Enable()
	}
	return g
}

// Enable turns the gate on.
func (g *Gate) Enable() { g.enabled.Store(true) }

// Disable turns the gate off; every frame passes.
func (g *Gate) Disable() { g.enabled.Store(false) }

// Enabled reports whether the gate is active.
func (g *Gate) Enabled() bool { return g.enabled.Load() }

// SetThreshold adjusts the gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=always closed.
func (g *Gate) SetThreshold(threshold float64) {
	threshold = math.Max(0.0, math.Min(threshold, 1.0))
	g.threshold.Store(int32(threshold * math.MaxInt16))
}

// Threshold returns the current threshold as a fraction of full scale.
func (g *Gate) Threshold() float64 {
	return float64(g.threshold.Load()) / math.MaxInt16
}

// Open reports whether samples should be classified. A disabled gate is
// always open.
func (g *Gate) Open(samples []uint16) bool {
	if !g.enabled.Load() {
		return true
	}
	return PeakAmplitude(samples) > g.threshold.Load()
}

// PeakAmplitude returns the largest absolute excursion from the midpoint.
func PeakAmplitude(samples []uint16) int32 {
	var peak int32
	for _, s := range samples {
		v := int32(s) - config.SampleMidpoint
		// Branchless abs and max.
		mask := v >> 31
		amplitude := (v ^ mask) - mask
		diff := amplitude - peak
		peak += diff &^ (diff >> 31)
	}
	return peak
}
