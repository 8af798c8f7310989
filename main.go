// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"formant/cmd"
	"formant/internal/acquisition"
	"formant/internal/analysis"
	"formant/internal/audio"
	"formant/internal/config"
	"formant/internal/control"
	"formant/internal/exchange"
	"formant/internal/log"
	"formant/internal/metrics"
	"formant/internal/touch"
	"formant/internal/transport"
	"formant/internal/transport/udp"
	"formant/internal/tui"
	"formant/pkg/build"
)

// main is the entry point. The program flow is divided into three phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information and parse the command line
//   - Execute one-off commands if requested
//   - Run the self-tests and build the pipeline
//
// 2. Concurrent Phase (Hot Path):
//   - Start acquisition into the exchange buffers
//   - Run the control loop, touch script and UI until cancelled
//
// 3. Shutdown Phase (Cold Path):
//   - Stop acquisition, drain snapshot writes, close transports
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	buildErr := build.Initialize()

	opts, err := cmd.ParseArgs()
	if err != nil {
		log.Fatalf("%v", err)
	}
	cfg := opts.Config

	level, ok := log.ParseLevel(cfg.LogLevel)
	if !ok {
		log.Warnf("Main: Unknown log level %q, using %s", cfg.LogLevel, level)
	}
	if cfg.Debug {
		level = log.LevelDebug
	}
	log.SetLevel(level)
	if buildErr != nil {
		log.Debugf("Main: Development build: %v", buildErr)
	}

	// Handle one-off commands that don't require the pipeline to be running.
	if opts.Command != "" {
		if err := executeCommand(opts); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts.TUIMode); err != nil {
		log.Fatalf("%v", err)
	}
}

// executeCommand handles one-off commands.
func executeCommand(opts *cmd.Options) error {
	switch opts.Command {
	case cmd.CommandList:
		if opts.Interactive {
			id, err := tui.StartDeviceListUI()
			if err != nil {
				return err
			}
			if id != config.MinDeviceID {
				fmt.Printf("--device %d\n", id)
			}
			return nil
		}
		if err := audio.Initialize(); err != nil {
			return err
		}
		defer audio.Terminate()
		return audio.ListDevices(os.Stdout)

	case cmd.CommandTable:
		return cmd.PrintTable(os.Stdout)

	case cmd.CommandAnalyze:
		analyzer, err := analysis.New(opts.Config.Analysis.Engine, opts.Config.Analysis.FFTWindow)
		if err != nil {
			return err
		}
		var gate *analysis.Gate
		if opts.Config.Analysis.GateThreshold > 0 {
			gate = analysis.NewGate(opts.Config.Analysis.GateThreshold)
		}
		return cmd.AnalyzeFile(os.Stdout, opts.Args[0], analyzer, gate)

	case cmd.CommandSelfTest:
		analyzer, err := analysis.New(opts.Config.Analysis.Engine, opts.Config.Analysis.FFTWindow)
		if err != nil {
			return err
		}
		if res := control.SelfTest(analyzer); !res.OK() {
			return fmt.Errorf("self-test failed %d/%d: %v", res.Passed, res.Total, res.Failures)
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q", opts.Command)
	}
}

// newSampler builds the configured sample source. The tone sampler is also
// returned so the UI can retune it.
func newSampler(src config.SourceConfig) (acquisition.Sampler, *acquisition.ToneSampler, error) {
	switch src.Kind {
	case config.SourceMic:
		return audio.NewMicrophone(src.InputDevice, src.LowLatency, src.ChunkFrames), nil, nil
	case config.SourceTone:
		tone := acquisition.NewToneSampler(src.ToneHz, src.ToneAmplitude, src.ChunkFrames)
		return tone, tone, nil
	case config.SourceWAV:
		w, err := acquisition.NewWAVSampler(src.WAVFile, src.ChunkFrames)
		if err != nil {
			return nil, nil, err
		}
		return w, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

// run builds the pipeline from cfg and runs it until ctx is cancelled or the
// UI exits.
func run(ctx context.Context, cfg *config.Config, tuiMode bool) error {
	if tuiMode {
		// The TUI owns the terminal.
		logFile, err := os.OpenFile("formant.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
		defer log.SetOutput(os.Stderr)
	}
	log.Infof("Main: %s", build.GetBuildFlags())

	analyzer, err := analysis.New(cfg.Analysis.Engine, cfg.Analysis.FFTWindow)
	if err != nil {
		return err
	}
	if res := control.SelfTest(analyzer); !res.OK() {
		return fmt.Errorf("self-test failed %d/%d: %v", res.Passed, res.Total, res.Failures)
	}

	sampler, tone, err := newSampler(cfg.Source)
	if err != nil {
		return err
	}

	ex := exchange.New(nil, nil)
	panel := touch.NewPanel(touch.ChannelMask(cfg.Control.TouchChannel), touch.DefaultIdleCount)
	lamps := &control.Lamps{}
	latest := &transport.Latest{}
	gate := analysis.NewGate(cfg.Analysis.GateThreshold)

	logging := transport.NewLoggingTransport()
	reporters := control.Reporters{logging}
	events := control.EventSinks{logging}
	deps := control.Deps{
		Source:    ex,
		Analyzer:  analyzer,
		Touch:     panel,
		Indicator: lamps,
		Gate:      gate,
		Spectra:   latest,
	}

	// Metrics and WebSocket share one HTTP server.
	if cfg.Transport.MetricsEnabled || cfg.Transport.WSEnabled {
		wst := transport.NewWebSocketTransport(cfg.Transport.WSAddress)
		if cfg.Transport.MetricsEnabled {
			pipe := metrics.NewPipeline()
			pipe.WatchExchange(ex)
			wst.Handle("/metrics", pipe.Handler())
			deps.Observer = pipe
		}
		if err := wst.Start(); err != nil {
			return err
		}
		defer wst.Close()
		if cfg.Transport.WSEnabled {
			reporters = append(reporters, wst)
			events = append(events, wst)
		}
	}

	if cfg.Recording.Enabled {
		rec, err := audio.NewSnapshotRecorder(cfg.Recording.OutputDir)
		if err != nil {
			return err
		}
		defer func() {
			if files, _ := rec.Close(); len(files) > 0 {
				log.Infof("Main: Snapshots saved to %s", cfg.Recording.OutputDir)
			}
		}()
		reporters = append(reporters, rec)
	}

	if cfg.Transport.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return err
		}
		defer sender.Close()
		publisher, err := udp.NewUDPPublisher(cfg.Transport.UDPSendInterval, sender, latest)
		if err != nil {
			return err
		}
		publisher.Start()
		defer publisher.Stop()
	}

	var (
		loop    *control.Loop
		monitor *tui.Monitor
	)
	if tuiMode {
		monitor, err = tui.NewMonitor(tui.MonitorDeps{
			Lamps:        lamps,
			Latest:       latest,
			Panel:        panel,
			TouchChannel: cfg.Control.TouchChannel,
			TouchDelta:   uint16(cfg.Control.TouchThreshold * 4),
			Tone:         tone,
			Gate:         gate,
			Stats:        func() control.Stats { return loop.Stats() },
		})
		if err != nil {
			return err
		}
		reporters = append(reporters, monitor)
	}

	deps.Reporter = reporters
	deps.Events = events
	loop, err = control.New(control.ConfigFrom(cfg.Control), deps)
	if err != nil {
		return err
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	engine := acquisition.NewEngine(sampler)
	if err := engine.Start(config.SampleRate, ex); err != nil {
		return err
	}
	defer func() {
		if err := engine.Stop(); err != nil {
			log.Errorf("Main: Error stopping acquisition: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup

	if cfg.Control.TouchEvery > 0 {
		hold := min(cfg.Control.TouchEvery/2, 4*config.FramePeriod)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = panel.Script(ctx, cfg.Control.TouchChannel, uint16(cfg.Control.TouchThreshold*4), cfg.Control.TouchEvery, hold)
		}()
	}

	loopErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := loop.Run(ctx)
		if err != nil {
			cancel() // Also ends the UI.
		}
		loopErr <- err
	}()

	if monitor != nil {
		if err := monitor.Run(ctx); err != nil {
			log.Errorf("Main: UI error: %v", err)
		}
		cancel()
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	err = <-loopErr
	cancel()
	wg.Wait()

	s := loop.Stats()
	es := ex.Stats()
	log.Infof("Main: %d frames, %d reports, %d deadline misses, %d overruns, %d drops",
		s.Iterations, s.Reports, s.DeadlineMisses, es.Overruns, es.Drops)
	if !tuiMode {
		fmt.Fprintf(os.Stderr, "\nStopped after %s.\n", time.Duration(s.Iterations)*config.FramePeriod)
	}
	return err
}
