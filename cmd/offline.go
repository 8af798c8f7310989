// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"formant/internal/acquisition"
	"formant/internal/analysis"
	"formant/internal/config"
	"formant/internal/dsp"
	"formant/internal/formant"
)

// AnalyzeFile classifies every whole frame of a WAV file and writes one line
// per frame followed by a per-note summary. Frames the gate closes are
// listed as gated. gate may be nil.
func AnalyzeFile(w io.Writer, path string, a analysis.SpectrumAnalyzer, gate *analysis.Gate) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open wav file: %w", err)
	}
	defer f.Close()

	samples, err := acquisition.DecodeWAV(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	frames := len(samples) / config.FrameSize
	if frames == 0 {
		return fmt.Errorf("%s: shorter than one %d-sample frame", path, config.FrameSize)
	}

	var spec dsp.Spectrum
	counts := make(map[string]int)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FRAME\tTIME\tBIN\tRESULT")
	for i := range frames {
		frame := samples[i*config.FrameSize : (i+1)*config.FrameSize]
		at := time.Duration(i) * config.FramePeriod

		if gate != nil && !gate.Open(frame) {
			counts["gated"]++
			fmt.Fprintf(tw, "%d\t%s\t-\tgated\n", i, at)
			continue
		}
		if err := a.AnalyzeInto(&spec, frame); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		bin := formant.MaxPitchBin(&spec)
		note := formant.Classify(bin)
		counts[note.String()]++
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", i, at, bin, note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d frames (%s), %d trailing samples ignored\n",
		frames, time.Duration(frames)*config.FramePeriod, len(samples)%config.FrameSize)
	for _, ft := range formant.Table() {
		if n := counts[ft.String()]; n > 0 {
			fmt.Fprintf(w, "  %-16s %d\n", ft.String(), n)
		}
	}
	if n := counts[formant.NoPitch.String()]; n > 0 {
		fmt.Fprintf(w, "  %-16s %d\n", formant.NoPitch.String(), n)
	}
	if n := counts["gated"]; n > 0 {
		fmt.Fprintf(w, "  %-16s %d\n", "gated", n)
	}
	return nil
}

// PrintTable writes the bin to note table.
func PrintTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BIN\tCENTER\tNOTE\tNOMINAL")
	for _, f := range formant.Table() {
		fmt.Fprintf(tw, "%d\t%.0f Hz\t%s\t%d Hz\n", f.Bin, dsp.BinHz(f.Bin), f.Note, f.NominalHz)
	}
	fmt.Fprintf(tw, "\nBin 3 is promoted to bin 5 when bin 4 exceeds %d.\n", formant.OverrideThreshold)
	return tw.Flush()
}
