// SPDX-License-Identifier: MIT
// Package formant maps the dominant low-band bin of a power spectrum to one
// of a fixed set of note labels.
package formant

import (
	"fmt"

	"formant/internal/dsp"
)

const (
	// NoBin is returned by MaxPitchBin when there is no spectrum to scan.
	NoBin = -1

	// SearchBins is the number of low bins scanned; bin 0 (DC) is skipped.
	SearchBins = 32

	// OverrideThreshold is the bin 4 magnitude above which a bin 3 winner is
	// reported as bin 5. A tone at bin 5 leaks strongly into bins 3 and 4.
	OverrideThreshold = SearchBins * 2
)

// Formant is one entry of the classification table.
type Formant struct {
	Bin       int    `json:"bin"`        // Transform bin at 16 Hz per bin.
	Note      string `json:"note"`       // Note label.
	NominalHz int    `json:"nominal_hz"` // Frequency announced on detection.
}

// NoPitch is the explicit "no detectable pitch" outcome.
var NoPitch = Formant{Bin: NoBin, Note: "none"}

func (f Formant) String() string {
	if f.NominalHz == 0 {
		return "no pitch"
	}
	return fmt.Sprintf("%s (%dHz)", f.Note, f.NominalHz)
}

// Detected reports whether f is a table entry rather than NoPitch.
func (f Formant) Detected() bool {
	return f.NominalHz != 0
}

// Message is the human-readable detection line.
func (f Formant) Message() string {
	if !f.Detected() {
		return "No input signal detected/pitch out of range"
	}
	return fmt.Sprintf("%dHz pitch detected!", f.NominalHz)
}

var table = [...]Formant{
	{Bin: 1, Note: "G4", NominalHz: 400},
	{Bin: 3, Note: "G5", NominalHz: 800},
	{Bin: 5, Note: "B5", NominalHz: 1000},
	{Bin: 4, Note: "D♯6", NominalHz: 1250},
	{Bin: 9, Note: "E♭7", NominalHz: 2500},
	{Bin: 11, Note: "G7", NominalHz: 3150},
	{Bin: 14, Note: "B7", NominalHz: 4000},
}

// Table returns a copy of the formant table in declaration order.
func Table() []Formant {
	out := make([]Formant, len(table))
	copy(out, table[:])
	return out
}

// MaxPitchBin returns the index of the largest magnitude in bins
// 1..SearchBins-1, preferring the lowest index on ties. It then applies the
// bin 3 override once. A nil spectrum gives NoBin.
func MaxPitchBin(s *dsp.Spectrum) int {
	if s == nil {
		return NoBin
	}

	peak := 1
	for k := 2; k < SearchBins; k++ {
		if s[k] > s[peak] {
			peak = k
		}
	}

	if peak == 3 && s[4] > OverrideThreshold {
		peak = 5
	}
	return peak
}

// Classify looks bin up in the table. Any other bin, NoBin included, is
// NoPitch.
func Classify(bin int) Formant {
	for _, f := range table {
		if f.Bin == bin {
			return f
		}
	}
	return NoPitch
}
