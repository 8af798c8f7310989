// SPDX-License-Identifier: MIT
package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"formant/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaultsRunTUI(t *testing.T) {
	opts, err := parse(nil)
	require.NoError(t, err)
	assert.Empty(t, opts.Command)
	assert.True(t, opts.TUIMode)
	require.NotNil(t, opts.Config)
	assert.Equal(t, config.DefaultSourceKind, opts.Config.Source.Kind)
	assert.Equal(t, config.DefaultAnalysisEngine, opts.Config.Analysis.Engine)
}

func TestParseHeadlessOverrides(t *testing.T) {
	opts, err := parse([]string{
		"--headless", "-s", "tone", "--tone", "2500", "-e", "float", "--window", "hamming",
		"--gate", "0.01", "--poll", "spin", "--touch-every", "3s", "-r", "-o", "/tmp/snaps",
		"--ws", "--metrics", "--listen", ":9000", "--udp", "--udp-target", "127.0.0.1:7000", "-v",
	})
	require.NoError(t, err)
	assert.False(t, opts.TUIMode)

	c := opts.Config
	assert.True(t, c.Debug)
	assert.Equal(t, config.SourceTone, c.Source.Kind)
	assert.Equal(t, 2500.0, c.Source.ToneHz)
	assert.Equal(t, config.EngineFloat, c.Analysis.Engine)
	assert.Equal(t, "hamming", c.Analysis.FFTWindow)
	assert.Equal(t, 0.01, c.Analysis.GateThreshold)
	assert.Equal(t, config.PollSpin, c.Control.PollMode)
	assert.Equal(t, 3*time.Second, c.Control.TouchEvery)
	assert.True(t, c.Recording.Enabled)
	assert.Equal(t, "/tmp/snaps", c.Recording.OutputDir)
	assert.True(t, c.Transport.WSEnabled)
	assert.True(t, c.Transport.MetricsEnabled)
	assert.Equal(t, ":9000", c.Transport.WSAddress)
	assert.True(t, c.Transport.UDPEnabled)
	assert.Equal(t, "127.0.0.1:7000", c.Transport.UDPTargetAddress)
}

func TestParseFlagsOverrideFileOnlyWhenSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formant.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n  kind: tone\n  tone_hz: 400\ncontrol:\n  poll_mode: spin\n"), 0o644))

	opts, err := parse([]string{"--headless", "-f", path, "--tone", "800"})
	require.NoError(t, err)
	assert.Equal(t, config.SourceTone, opts.Config.Source.Kind, "unset flag keeps the file value")
	assert.Equal(t, config.PollSpin, opts.Config.Control.PollMode)
	assert.Equal(t, 800.0, opts.Config.Source.ToneHz)
}

func TestParseWAVImpliesSource(t *testing.T) {
	opts, err := parse([]string{"--headless", "-w", "take.wav"})
	require.NoError(t, err)
	assert.Equal(t, config.SourceWAV, opts.Config.Source.Kind)
	assert.Equal(t, "take.wav", opts.Config.Source.WAVFile)
}

func TestParseSubcommands(t *testing.T) {
	opts, err := parse([]string{"list", "-i"})
	require.NoError(t, err)
	assert.Equal(t, CommandList, opts.Command)
	assert.True(t, opts.Interactive)
	assert.False(t, opts.TUIMode)

	opts, err = parse([]string{"analyze", "take.wav", "-e", "float"})
	require.NoError(t, err)
	assert.Equal(t, CommandAnalyze, opts.Command)
	assert.Equal(t, []string{"take.wav"}, opts.Args)
	assert.Equal(t, config.EngineFloat, opts.Config.Analysis.Engine)

	opts, err = parse([]string{"table"})
	require.NoError(t, err)
	assert.Equal(t, CommandTable, opts.Command)

	opts, err = parse([]string{"selftest"})
	require.NoError(t, err)
	assert.Equal(t, CommandSelfTest, opts.Command)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"analyze without file", []string{"analyze"}},
		{"unknown engine", []string{"--engine", "simd"}},
		{"gate out of range", []string{"--gate", "2"}},
		{"bad poll mode", []string{"--poll", "sleep"}},
		{"missing config file", []string{"-f", "does-not-exist.yaml"}},
		{"stray argument", []string{"now"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(tt.args)
			assert.Error(t, err)
		})
	}
}
