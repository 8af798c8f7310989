// SPDX-License-Identifier: MIT
package control

import (
	"errors"
	"fmt"

	"formant/internal/analysis"
	"formant/internal/config"
	"formant/internal/dsp"
	"formant/internal/formant"
	"formant/internal/log"
	"formant/pkg/utils"
)

// SelfTestResult is the outcome of the startup checks.
type SelfTestResult struct {
	Passed   int
	Total    int
	Failures []error
}

// OK reports whether every check passed.
func (r SelfTestResult) OK() bool {
	return r.Passed == r.Total
}

type selfCheck struct {
	name string
	run  func(a analysis.SpectrumAnalyzer) error
}

var selfChecks = []selfCheck{
	{"invalid input", checkInvalidInput},
	{"silence", checkSilence},
	{"tone recovery", checkToneRecovery},
	{"bin 3 override", checkOverride},
	{"table lookup", checkTable},
}

// SelfTest runs the analyzer and classifier against synthetic input and logs
// the pass count. It runs before the loop starts and allocates freely.
func SelfTest(a analysis.SpectrumAnalyzer) SelfTestResult {
	res := SelfTestResult{Total: len(selfChecks)}
	for _, c := range selfChecks {
		if err := c.run(a); err != nil {
			res.Failures = append(res.Failures, fmt.Errorf("%s: %w", c.name, err))
			log.Warnf("SelfTest: %s failed: %v", c.name, err)
			continue
		}
		res.Passed++
	}
	log.Infof("SelfTest: passing self-tests %d/%d", res.Passed, res.Total)
	return res
}

func checkInvalidInput(a analysis.SpectrumAnalyzer) error {
	var s dsp.Spectrum
	if err := a.AnalyzeInto(&s, make([]uint16, config.FrameSize-1)); !errors.Is(err, dsp.ErrInvalidInput) {
		return fmt.Errorf("short frame accepted (err = %v)", err)
	}
	return nil
}

func checkSilence(a analysis.SpectrumAnalyzer) error {
	var s dsp.Spectrum
	if err := a.AnalyzeInto(&s, utils.GenerateSilence(config.FrameSize)); err != nil {
		return err
	}
	for k, v := range s {
		if v != 0 {
			return fmt.Errorf("bin %d = %d for zero input", k, v)
		}
	}
	return nil
}

func checkToneRecovery(a analysis.SpectrumAnalyzer) error {
	const bin = 5
	var s dsp.Spectrum
	frame := utils.GenerateSineFrame(config.FrameSize, config.SampleRate, bin*config.BinWidthHz, 0.5)
	if err := a.AnalyzeInto(&s, frame); err != nil {
		return err
	}
	if got := formant.MaxPitchBin(&s); got < bin-1 || got > bin+1 {
		return fmt.Errorf("tone at bin %d detected at bin %d", bin, got)
	}
	return nil
}

func checkOverride(analysis.SpectrumAnalyzer) error {
	var s dsp.Spectrum
	s[3], s[4] = 500, formant.OverrideThreshold+1
	if got := formant.MaxPitchBin(&s); got != 5 {
		return fmt.Errorf("bin 3 with leakage gave %d, want 5", got)
	}
	s[4] = formant.OverrideThreshold
	if got := formant.MaxPitchBin(&s); got != 3 {
		return fmt.Errorf("bin 3 at threshold gave %d, want 3", got)
	}
	return nil
}

func checkTable(analysis.SpectrumAnalyzer) error {
	for _, f := range formant.Table() {
		if got := formant.Classify(f.Bin); got != f {
			return fmt.Errorf("bin %d classified as %v", f.Bin, got)
		}
	}
	if got := formant.Classify(formant.NoBin); got.Detected() {
		return fmt.Errorf("sentinel classified as %v", got)
	}
	return nil
}
