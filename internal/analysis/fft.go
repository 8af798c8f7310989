// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"
	"strings"

	"formant/internal/config"
	"formant/internal/dsp"
	"formant/internal/log"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc defines the type for selecting an FFT window function.
type WindowFunc int

// Enum for available window functions.
const (
	BartlettHann WindowFunc = iota
	Blackman
	BlackmanNuttall
	Hann
	Hamming
	Lanczos
	Nuttall
)

func (w WindowFunc) String() string {
	switch w {
	case BartlettHann:
		return "BartlettHann"
	case Blackman:
		return "Blackman"
	case BlackmanNuttall:
		return "BlackmanNuttall"
	case Hann:
		return "Hann"
	case Hamming:
		return "Hamming"
	case Lanczos:
		return "Lanczos"
	case Nuttall:
		return "Nuttall"
	default:
		return fmt.Sprintf("WindowFunc(%d)", int(w))
	}
}

// Pre-allocated buffers for FFT calculations.
type fftWorkspace struct {
	input     []float64    // Windowed, re-centered input signal.
	fftOutput []complex128 // FFT complex results, N/2+1 bins.
	window    []float64    // Pre-calculated window coefficients.
}

// FloatAnalyzer is the float64 reference engine built on gonum. It applies the
// same re-centering and scaling as the fixed-point engine, so with the Hann
// window its output agrees with dsp.Analyzer to within rounding.
//
// It is not safe for concurrent use.
type FloatAnalyzer struct {
	fftCalculator *fourier.FFT
	windowType    WindowFunc
	workspace     fftWorkspace
}

// NewFloatAnalyzer creates a reference analyzer with the given window.
func NewFloatAnalyzer(windowType WindowFunc) *FloatAnalyzer {
	const n = config.FrameSize
	coeffs := make([]float64, n)
	applyWindow(coeffs, windowType)

	log.Debugf("Analysis: Initializing FloatAnalyzer (Size: %d, SampleRate: %d Hz, Window: %v)", n, config.SampleRate, windowType)

	return &FloatAnalyzer{
		fftCalculator: fourier.NewFFT(n),
		windowType:    windowType,
		workspace: fftWorkspace{
			input:     make([]float64, n),
			fftOutput: make([]complex128, n/2+1),
			window:    coeffs,
		},
	}
}

// Window returns the configured window function.
func (p *FloatAnalyzer) Window() WindowFunc {
	return p.windowType
}

// AnalyzeInto implements SpectrumAnalyzer.
func (p *FloatAnalyzer) AnalyzeInto(dst *dsp.Spectrum, samples []uint16) error {
	const n = config.FrameSize
	if dst == nil || len(samples) != n {
		return dsp.ErrInvalidInput
	}

	// --- 1. Re-center & Window ---
	for i, s := range samples {
		p.workspace.input[i] = float64(int16(s-config.SampleMidpoint)) * p.workspace.window[i]
	}

	// --- 2. Perform FFT ---
	p.fftCalculator.Coefficients(p.workspace.fftOutput, p.workspace.input)

	// --- 3. Power, scaled like the fixed-point engine ---
	for k, c := range p.workspace.fftOutput {
		re, im := real(c)/n, imag(c)/n
		v := math.Min((re*re+im*im)/(1<<15), math.MaxInt16)
		dst[k] = int16(v)
		if k > 0 && k < n/2 {
			dst[n-k] = dst[k]
		}
	}
	return nil
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(name) {
	case "bartletthann":
		return BartlettHann, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "lanczos":
		return Lanczos, nil
	case "nuttall":
		return Nuttall, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// applyWindow fills coeffs with the selected window. Unknown types fall back
// to Hann.
func applyWindow(coeffs []float64, windowType WindowFunc) {
	// The gonum window funcs scale in place, so start from all ones.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case Hann:
		window.Hann(coeffs)
	case Hamming:
		window.Hamming(coeffs)
	case Lanczos:
		window.Lanczos(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	default:
		log.Warnf("Analysis: Unknown window function type %d, defaulting to Hann", windowType)
		window.Hann(coeffs)
	}
}
