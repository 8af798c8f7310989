// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"sync"
)

// MockSink records sent datagrams instead of transmitting them.
type MockSink struct {
	mu       sync.Mutex
	LastData []byte
	Count    int
}

// Send stores a copy of data.
func (m *MockSink) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastData = append(m.LastData[:0], data...)
	m.Count++
	return nil
}

// Last returns a copy of the most recently sent data and the number of sends.
func (m *MockSink) Last() ([]byte, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.LastData...), m.Count
}

// ScriptedTouch is a touch sensor that returns the next scripted magnitude on
// each read, then repeats the last one. It ignores the channel.
type ScriptedTouch struct {
	mu     sync.Mutex
	script []int
}

// NewScriptedTouch creates a sensor that plays script.
func NewScriptedTouch(script ...int) *ScriptedTouch {
	return &ScriptedTouch{script: script}
}

// Magnitude returns the next scripted value.
func (s *ScriptedTouch) Magnitude(int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) == 0 {
		return 0
	}
	v := s.script[0]
	if len(s.script) > 1 {
		s.script = s.script[1:]
	}
	return v
}

// toOffsetBinary maps a signal in [-1, 1] onto unsigned 16-bit samples
// centered on 32768.
func toOffsetBinary(v float64) uint16 {
	s := math.Round(v * math.MaxInt16)
	s = max(min(s, math.MaxInt16), math.MinInt16)
	return uint16(int32(s) + 1<<15)
}

// GenerateSineFrame returns size offset-binary samples of a sine at frequency
// Hz with the given amplitude (fraction of full scale).
func GenerateSineFrame(size int, sampleRate, frequency, amplitude float64) []uint16 {
	buffer := make([]uint16, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = toOffsetBinary(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// GenerateComplexFrame returns a fundamental plus two harmonics at 0.5, 0.3
// and 0.2 of the given amplitude.
func GenerateComplexFrame(size int, sampleRate, fundamental, amplitude float64) []uint16 {
	buffer := make([]uint16, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*fundamental*t)*0.5 +
			math.Sin(2*math.Pi*2*fundamental*t)*0.3 +
			math.Sin(2*math.Pi*3*fundamental*t)*0.2
		buffer[i] = toOffsetBinary(amplitude * signal)
	}
	return buffer
}

// GenerateSilence returns size samples at the midpoint.
func GenerateSilence(size int) []uint16 {
	buffer := make([]uint16, size)
	for i := range buffer {
		buffer[i] = 1 << 15
	}
	return buffer
}

// FindPeakBin returns the index of the first maximum of magnitudes within
// [startBin, endBin].
func FindPeakBin(magnitudes []int16, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
