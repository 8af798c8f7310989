// SPDX-License-Identifier: MIT
package acquisition

import (
	"math"
	"sync/atomic"

	"formant/internal/config"
)

// ToneSampler synthesizes a sinusoid as offset-binary 16-bit samples. It is
// the bench source used when no microphone is attached.
type ToneSampler struct {
	*pacedSampler

	freqBits  atomic.Uint64 // math.Float64bits of the tone frequency in Hz
	amplitude float64       // Peak amplitude in sample units
	phase     float64       // Radians, owned by the pacing goroutine
}

var _ Sampler = (*ToneSampler)(nil)

// NewToneSampler creates a tone source at freqHz with amplitude given as a
// fraction of full scale, delivering chunkFrames samples per tick.
func NewToneSampler(freqHz, amplitude float64, chunkFrames int) *ToneSampler {
	amplitude = math.Max(0, math.Min(1, amplitude))
	t := &ToneSampler{
		amplitude: amplitude * (config.SampleMidpoint - 1),
	}
	t.SetFrequency(freqHz)
	t.pacedSampler = newPacedSampler(chunkFrames, t.fill)
	return t
}

// SetFrequency retunes the tone. It may be called while sampling.
func (t *ToneSampler) SetFrequency(freqHz float64) {
	t.freqBits.Store(math.Float64bits(freqHz))
}

// Frequency returns the current tone frequency in Hz.
func (t *ToneSampler) Frequency() float64 {
	return math.Float64frombits(t.freqBits.Load())
}

func (t *ToneSampler) fill(dst []uint16) {
	step := 2 * math.Pi * t.Frequency() / config.SampleRate
	for i := range dst {
		dst[i] = uint16(config.SampleMidpoint + math.Round(t.amplitude*math.Sin(t.phase)))
		t.phase += step
		if t.phase >= 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
}
