// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"os"
	"time"

	"formant/internal/config"
	"formant/pkg/build"

	"github.com/spf13/cobra"
)

// Commands selected on the command line. The empty command runs the loop.
const (
	CommandList     = "list"
	CommandAnalyze  = "analyze"
	CommandTable    = "table"
	CommandSelfTest = "selftest"
)

// Options is the parsed command line: the merged configuration plus the
// command to execute.
type Options struct {
	Config      *config.Config
	Command     string
	Args        []string
	TUIMode     bool
	Interactive bool // For "list": pick a device in the TUI.
}

// flagValues holds raw flag values until the config file is loaded. Only
// flags the user set override the file.
type flagValues struct {
	configPath string
	verbose    bool
	headless   bool

	device     int
	lowLatency bool
	source     string
	wavFile    string
	toneHz     float64

	engine string
	window string
	gate   float64

	poll       string
	touchEvery time.Duration

	record bool
	output string

	ws        bool
	metrics   bool
	wsAddr    string
	udp       bool
	udpTarget string
}

// ParseArgs parses os.Args into Options.
func ParseArgs() (*Options, error) {
	return parse(os.Args[1:])
}

func parse(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	opts := &Options{}
	var fv flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.String(),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(fv.configPath)
			if err != nil {
				return err
			}
			fv.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid flags: %w", err)
			}
			opts.Config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.TUIMode = !fv.headless
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	listCmd := &cobra.Command{
		Use:   CommandList,
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandList
			return nil
		},
	}
	listCmd.Flags().BoolVarP(&opts.Interactive, "interactive", "i", false,
		"Browse devices in the terminal UI and print the chosen ID")
	rootCmd.AddCommand(listCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandAnalyze + " <file.wav>",
		Short: "Classify every frame of a mono 8192 Hz WAV file offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandAnalyze
			opts.Args = args
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandTable,
		Short: "Print the bin to note table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandTable
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandSelfTest,
		Short: "Run the startup self-tests against the configured analyzer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Command = CommandSelfTest
			return nil
		},
	})

	pf := rootCmd.PersistentFlags()

	// General
	pf.StringVarP(&fv.configPath, "config", "f", "",
		"Path to a YAML config file (default: ./config.yaml or ./formant.yaml if present)")
	pf.BoolVarP(&fv.verbose, "verbose", "v", false,
		"Show verbose output")
	rootCmd.Flags().BoolVar(&fv.headless, "headless", false,
		"Run without the terminal UI; reports go to the log")

	// Source
	pf.StringVarP(&fv.source, "source", "s", config.DefaultSourceKind,
		"Sample source: mic, tone or wav")
	pf.IntVarP(&fv.device, "device", "d", config.DefaultInputDevice,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.BoolVarP(&fv.lowLatency, "low-latency", "l", false,
		"Use low latency mode for the input device")
	pf.StringVarP(&fv.wavFile, "wav", "w", "",
		"WAV file replayed by the wav source")
	pf.Float64Var(&fv.toneHz, "tone", config.DefaultToneHz,
		"Frequency of the tone source in Hz")

	// Analysis
	pf.StringVarP(&fv.engine, "engine", "e", config.DefaultAnalysisEngine,
		"Analysis engine: fixed (Q15) or float (gonum)")
	pf.StringVar(&fv.window, "window", config.DefaultFFTWindow,
		"Window for the float engine: Hann, Hamming, Blackman, BlackmanNuttall, BartlettHann, Lanczos, Nuttall")
	pf.Float64Var(&fv.gate, "gate", 0,
		"Noise gate threshold as a fraction of full scale (0 disables)")

	// Control
	pf.StringVar(&fv.poll, "poll", config.DefaultPollMode,
		"Frame wait strategy: notify or spin")
	pf.DurationVar(&fv.touchEvery, "touch-every", 0,
		"Pulse the touch trigger at this interval (0 disables)")

	// Outputs
	pf.BoolVarP(&fv.record, "record", "r", false,
		"Save the frame behind every report as a WAV snapshot")
	pf.StringVarP(&fv.output, "output", "o", config.DefaultOutputDir,
		"Snapshot directory")
	pf.BoolVar(&fv.ws, "ws", false,
		"Broadcast reports and events to WebSocket clients on /ws")
	pf.BoolVar(&fv.metrics, "metrics", false,
		"Serve Prometheus metrics on /metrics")
	pf.StringVar(&fv.wsAddr, "listen", config.DefaultWSAddress,
		"Listen address for the WebSocket and metrics server")
	pf.BoolVar(&fv.udp, "udp", false,
		"Stream spectrum packets over UDP")
	pf.StringVar(&fv.udpTarget, "udp-target", config.DefaultUDPTarget,
		"UDP target address")

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return opts, nil
}

// apply copies the flags the user set onto cfg.
func (fv *flagValues) apply(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("verbose") && fv.verbose {
		cfg.Debug = true
	}
	if set("source") {
		cfg.Source.Kind = fv.source
	}
	if set("device") {
		cfg.Source.InputDevice = fv.device
	}
	if set("low-latency") {
		cfg.Source.LowLatency = fv.lowLatency
	}
	if set("wav") {
		cfg.Source.WAVFile = fv.wavFile
		if !set("source") {
			cfg.Source.Kind = config.SourceWAV
		}
	}
	if set("tone") {
		cfg.Source.ToneHz = fv.toneHz
	}
	if set("engine") {
		cfg.Analysis.Engine = fv.engine
	}
	if set("window") {
		cfg.Analysis.FFTWindow = fv.window
	}
	if set("gate") {
		cfg.Analysis.GateThreshold = fv.gate
	}
	if set("poll") {
		cfg.Control.PollMode = fv.poll
	}
	if set("touch-every") {
		cfg.Control.TouchEvery = fv.touchEvery
	}
	if set("record") {
		cfg.Recording.Enabled = fv.record
	}
	if set("output") {
		cfg.Recording.OutputDir = fv.output
	}
	if set("ws") {
		cfg.Transport.WSEnabled = fv.ws
	}
	if set("metrics") {
		cfg.Transport.MetricsEnabled = fv.metrics
	}
	if set("listen") {
		cfg.Transport.WSAddress = fv.wsAddr
	}
	if set("udp") {
		cfg.Transport.UDPEnabled = fv.udp
	}
	if set("udp-target") {
		cfg.Transport.UDPTargetAddress = fv.udpTarget
	}
}
