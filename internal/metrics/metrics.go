// SPDX-License-Identifier: MIT
// Package metrics exposes the pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"formant/internal/config"
	"formant/internal/exchange"
	"formant/internal/formant"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsSource is anything that reports exchange counters.
type StatsSource interface {
	Stats() exchange.Stats
}

// Pipeline holds the metrics of one running pipeline on its own registry.
type Pipeline struct {
	registry *prometheus.Registry

	framesAnalyzed prometheus.Counter
	framesGated    prometheus.Counter
	deadlineMisses prometheus.Counter
	analysisTime   prometheus.Histogram
	reports        *prometheus.CounterVec
	recording      prometheus.Gauge
	inputLevel     prometheus.Gauge
}

// NewPipeline creates the pipeline metrics on a fresh registry.
func NewPipeline() *Pipeline {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	// Bucket upper bounds from 0.25ms up to the frame period.
	buckets := prometheus.ExponentialBucketsRange(0.00025, config.FramePeriod.Seconds(), 9)

	return &Pipeline{
		registry: reg,
		framesAnalyzed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "formant_frames_analyzed_total",
				Help: "Total number of frames analyzed by the control loop",
			},
		),
		framesGated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "formant_frames_gated_total",
				Help: "Total number of frames treated as silence by the noise gate",
			},
		),
		deadlineMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "formant_deadline_misses_total",
				Help: "Total number of frames whose analysis exceeded the deadline",
			},
		),
		analysisTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "formant_analysis_duration_seconds",
				Help:    "Time from frame claim to release",
				Buckets: buckets,
			},
		),
		reports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "formant_reports_total",
				Help: "Total number of reports delivered, by note",
			},
			[]string{"note"},
		),
		recording: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "formant_recording",
				Help: "Whether the loop is in the recording state (1=recording, 0=idle)",
			},
		),
		inputLevel: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "formant_input_level_ratio",
				Help: "RMS level of the last analyzed frame as a fraction of full scale",
			},
		),
	}
}

// WatchExchange exports the exchange counters. They are read at scrape time.
func (p *Pipeline) WatchExchange(src StatsSource) {
	factory := promauto.With(p.registry)
	counter := func(name, help string, read func(exchange.Stats) uint64) {
		factory.NewCounterFunc(
			prometheus.CounterOpts{Name: name, Help: help},
			func() float64 { return float64(read(src.Stats())) },
		)
	}
	counter("formant_exchange_completions_total", "Total number of acquisition transfers completed",
		func(s exchange.Stats) uint64 { return s.Completions })
	counter("formant_exchange_takes_total", "Total number of frames claimed by the control loop",
		func(s exchange.Stats) uint64 { return s.Takes })
	counter("formant_exchange_overruns_total", "Total number of frames lost because the previous frame was still held",
		func(s exchange.Stats) uint64 { return s.Overruns })
	counter("formant_exchange_drops_total", "Total number of ready frames replaced before being claimed",
		func(s exchange.Stats) uint64 { return s.Drops })
}

// FrameAnalyzed records one loop iteration.
func (p *Pipeline) FrameAnalyzed(elapsed time.Duration, missed bool) {
	p.framesAnalyzed.Inc()
	p.analysisTime.Observe(elapsed.Seconds())
	if missed {
		p.deadlineMisses.Inc()
	}
}

// FrameGated records a frame rejected by the noise gate.
func (p *Pipeline) FrameGated() {
	p.framesGated.Inc()
}

// InputLevel records the RMS level of the last frame.
func (p *Pipeline) InputLevel(rms float64) {
	p.inputLevel.Set(rms)
}

// RecordingChanged tracks the loop state.
func (p *Pipeline) RecordingChanged(on bool) {
	if on {
		p.recording.Set(1)
	} else {
		p.recording.Set(0)
	}
}

// Reported counts a delivered report.
func (p *Pipeline) Reported(f formant.Formant) {
	p.reports.WithLabelValues(f.Note).Inc()
}

// Registry returns the underlying registry.
func (p *Pipeline) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}
