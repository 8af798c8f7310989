// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"

	"formant/internal/config"
	"formant/internal/dsp"
)

// SpectrumAnalyzer turns one acquisition frame into a power spectrum. Both
// engines produce the same scale, so a formant table tuned on one holds for
// the other.
type SpectrumAnalyzer interface {
	// AnalyzeInto writes the power spectrum of samples into dst. samples must
	// hold exactly config.FrameSize offset-binary values. Implementations are
	// called from the control loop once per frame and must not allocate.
	AnalyzeInto(dst *dsp.Spectrum, samples []uint16) error
}

// Compile-time checks for interface implementations.
var (
	_ SpectrumAnalyzer = (*dsp.Analyzer)(nil)
	_ SpectrumAnalyzer = (*FloatAnalyzer)(nil)
)

// New builds the analyzer named by engine. window only applies to the float
// engine; the fixed engine always uses its Q15 Hann table.
func New(engine, window string) (SpectrumAnalyzer, error) {
	switch engine {
	case config.EngineFixed:
		return dsp.NewAnalyzer(), nil
	case config.EngineFloat:
		w, err := ParseWindowFunc(window)
		if err != nil {
			return nil, err
		}
		return NewFloatAnalyzer(w), nil
	default:
		return nil, fmt.Errorf("unknown analysis engine %q", engine)
	}
}
