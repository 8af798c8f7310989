// SPDX-License-Identifier: MIT
/*
Package control is the mainline loop: wait for a filled frame, analyze and
classify it, hand the buffer back, then evaluate the touch trigger against
that result.

State machine, evaluated once per iteration:

	Idle      --touch rising edge--> Recording   record lamp on, idle lamp off
	Recording --same iteration-----> Idle        record lamp off, idle lamp on,
	                                             pending report delivered once

A touch therefore always produces a start/stop pair and exactly one report,
no matter how long it is held.

The loop runs on one goroutine. Only the counters and the current state may be
read from elsewhere.
*/
package control

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"formant/internal/analysis"
	"formant/internal/config"
	"formant/internal/dsp"
	"formant/internal/exchange"
	"formant/internal/formant"
	"formant/internal/log"
)

// FrameSource hands out filled frames. exchange.Exchange implements it.
type FrameSource interface {
	TryTake() (*exchange.Frame, error)
	Ready() <-chan struct{}
}

// Config holds the loop settings.
type Config struct {
	TouchChannel   int
	TouchThreshold int // A magnitude strictly greater than this is a touch.
	PollMode       string
	Deadline       time.Duration
}

// ConfigFrom extracts loop settings from the application config.
func ConfigFrom(c config.ControlConfig) Config {
	return Config{
		TouchChannel:   c.TouchChannel,
		TouchThreshold: c.TouchThreshold,
		PollMode:       c.PollMode,
		Deadline:       c.Deadline,
	}
}

// Deps are the loop's collaborators. Source, Analyzer, Touch, Indicator and
// Reporter are required; the rest may be nil.
type Deps struct {
	Source    FrameSource
	Analyzer  analysis.SpectrumAnalyzer
	Touch     TouchSensor
	Indicator Indicator
	Reporter  Reporter

	Gate     *analysis.Gate
	Events   EventSink
	Spectra  SpectrumSink
	Observer Observer
}

// Stats are cumulative loop counters.
type Stats struct {
	Iterations     uint64
	Reports        uint64
	DeadlineMisses uint64
	Gated          uint64
}

// Loop is the control loop.
type Loop struct {
	cfg  Config
	deps Deps

	state     atomic.Int32
	wasAbove  bool
	pending   bool
	startedAt time.Time
	seq       uint64

	// Allocated once; reused every iteration.
	spectrum dsp.Spectrum
	snapshot exchange.SampleBuffer

	iterations atomic.Uint64
	reports    atomic.Uint64
	misses     atomic.Uint64
	gated      atomic.Uint64
}

// New validates cfg and deps and returns a loop in the Idle state. The
// indicators are set to the idle pattern.
func New(cfg Config, deps Deps) (*Loop, error) {
	switch {
	case deps.Source == nil:
		return nil, errors.New("control: frame source is required")
	case deps.Analyzer == nil:
		return nil, errors.New("control: analyzer is required")
	case deps.Touch == nil:
		return nil, errors.New("control: touch sensor is required")
	case deps.Indicator == nil:
		return nil, errors.New("control: indicator is required")
	case deps.Reporter == nil:
		return nil, errors.New("control: reporter is required")
	}
	switch cfg.PollMode {
	case config.PollNotify, config.PollSpin:
	case "":
		cfg.PollMode = config.DefaultPollMode
	default:
		return nil, fmt.Errorf("control: unknown poll mode %q", cfg.PollMode)
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = config.FramePeriod
	}

	l := &Loop{cfg: cfg, deps: deps}
	deps.Indicator.SetRecord(false)
	deps.Indicator.SetIdle(true)
	return l, nil
}

// State returns the current state. Safe from any goroutine.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Stats returns a snapshot of the loop counters. Safe from any goroutine.
func (l *Loop) Stats() Stats {
	return Stats{
		Iterations:     l.iterations.Load(),
		Reports:        l.reports.Load(),
		DeadlineMisses: l.misses.Load(),
		Gated:          l.gated.Load(),
	}
}

// Run iterates until ctx is cancelled. It returns nil on cancellation and
// the first non-transient error otherwise.
func (l *Loop) Run(ctx context.Context) error {
	log.Infof("Loop: Running (poll: %s, touch channel %d > %d, deadline %v)",
		l.cfg.PollMode, l.cfg.TouchChannel, l.cfg.TouchThreshold, l.cfg.Deadline)
	for {
		if err := l.Iterate(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Infof("Loop: Stopped after %d iterations", l.iterations.Load())
				return nil
			}
			return err
		}
	}
}

// Iterate waits for one frame and processes it.
func (l *Loop) Iterate(ctx context.Context) error {
	f, err := l.wait(ctx)
	if err != nil {
		return err
	}
	res, err := l.process(f)
	if err != nil {
		return err
	}
	l.Step(res)
	return nil
}

// wait blocks until a frame can be claimed. Notify mode sleeps on the
// completion hint between attempts; spin mode retries immediately.
func (l *Loop) wait(ctx context.Context) (*exchange.Frame, error) {
	for {
		f, err := l.deps.Source.TryTake()
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, exchange.ErrNoDataReady) {
			return nil, err
		}

		if l.cfg.PollMode == config.PollSpin {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			runtime.Gosched()
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-l.deps.Source.Ready():
		}
	}
}

// process analyzes a claimed frame and releases it.
func (l *Loop) process(f *exchange.Frame) (Result, error) {
	start := time.Now()
	samples := f.Samples()

	l.seq++
	res := Result{Seq: l.seq, Buffer: f.ID(), At: start}

	if l.deps.Gate != nil && !l.deps.Gate.Open(samples) {
		res.Gated = true
		res.Bin = formant.NoBin
		res.Formant = formant.NoPitch
		l.spectrum = dsp.Spectrum{}
	} else {
		if err := l.deps.Analyzer.AnalyzeInto(&l.spectrum, samples); err != nil {
			f.Release()
			return res, fmt.Errorf("control: analysis of frame %d: %w", res.Seq, err)
		}
		res.Bin = formant.MaxPitchBin(&l.spectrum)
		res.Formant = formant.Classify(res.Bin)
	}
	res.Level = analysis.FrameRMS(samples)
	copy(l.snapshot[:], samples)
	f.Release()

	res.Elapsed = time.Since(start)
	res.Missed = res.Elapsed > l.cfg.Deadline

	l.iterations.Add(1)
	if res.Gated {
		l.gated.Add(1)
	}
	if res.Missed {
		n := l.misses.Add(1)
		log.Warnf("Loop: Frame %d took %v, over the %v deadline (%d misses)", res.Seq, res.Elapsed, l.cfg.Deadline, n)
	}
	if o := l.deps.Observer; o != nil {
		o.FrameAnalyzed(res.Elapsed, res.Missed)
		o.InputLevel(res.Level)
		if res.Gated {
			o.FrameGated()
		}
	}
	if l.deps.Spectra != nil {
		l.deps.Spectra.Publish(&l.spectrum, res)
	}
	return res, nil
}

// Step evaluates the touch trigger against res and runs the state machine.
// It reports whether a report was delivered. Iterate calls it after every
// frame; tests call it directly.
func (l *Loop) Step(res Result) bool {
	above := l.deps.Touch.Magnitude(l.cfg.TouchChannel) > l.cfg.TouchThreshold
	rising := above && !l.wasAbove
	l.wasAbove = above

	if rising && l.State() == Idle {
		l.startRecording(res)
	}
	if l.State() == Recording {
		return l.stopRecording(res)
	}
	return false
}

func (l *Loop) startRecording(res Result) {
	l.deps.Indicator.SetIdle(false)
	l.deps.Indicator.SetRecord(true)
	l.state.Store(int32(Recording))
	l.pending = true
	l.startedAt = time.Now()

	log.Debugf("Loop: Recording started at frame %d", res.Seq)
	l.emit(RecordingStarted, res.Seq, l.startedAt)
}

func (l *Loop) stopRecording(res Result) bool {
	l.deps.Indicator.SetRecord(false)
	l.deps.Indicator.SetIdle(true)
	l.state.Store(int32(Idle))
	stoppedAt := time.Now()

	log.Debugf("Loop: Recording stopped at frame %d", res.Seq)
	l.emit(RecordingStopped, res.Seq, stoppedAt)

	if !l.pending {
		return false
	}
	l.pending = false

	l.reports.Add(1)
	if l.deps.Observer != nil {
		l.deps.Observer.Reported(res.Formant)
	}
	report := Report{Result: res, StartedAt: l.startedAt, StoppedAt: stoppedAt, Samples: &l.snapshot}
	if err := l.deps.Reporter.Report(report); err != nil {
		// A failed sink does not stop the loop.
		log.Errorf("Loop: Report for frame %d failed: %v", res.Seq, err)
	}
	return true
}

func (l *Loop) emit(kind EventKind, seq uint64, at time.Time) {
	if l.deps.Observer != nil {
		l.deps.Observer.RecordingChanged(kind == RecordingStarted)
	}
	if l.deps.Events != nil {
		l.deps.Events.Event(Event{Kind: kind, Seq: seq, At: at})
	}
}
