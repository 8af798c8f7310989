// SPDX-License-Identifier: MIT
package transport

import (
	"sync"
	"time"

	"formant/internal/control"
	"formant/internal/dsp"
)

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Message types sent by the transports.
const (
	TypeReport = "report"
	TypeEvent  = "event"
)

// ReportMessage is the wire form of a control.Report.
type ReportMessage struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Result    control.Result `json:"result"`
	StartedAt time.Time      `json:"started_at"`
	StoppedAt time.Time      `json:"stopped_at"`
}

// NewReportMessage converts a report for sending.
func NewReportMessage(r control.Report) ReportMessage {
	return ReportMessage{
		Type:      TypeReport,
		Message:   r.Result.Formant.Message(),
		Result:    r.Result,
		StartedAt: r.StartedAt,
		StoppedAt: r.StoppedAt,
	}
}

// EventMessage is the wire form of a control.Event.
type EventMessage struct {
	Type string `json:"type"`
	control.Event
}

// Latest keeps the most recently analyzed spectrum for readers on other
// goroutines (the UDP publisher, the TUI). Publish copies under the lock and
// does not allocate.
type Latest struct {
	mu   sync.RWMutex
	spec dsp.Spectrum
	res  control.Result
	seq  uint64
}

// Publish implements control.SpectrumSink.
func (l *Latest) Publish(spec *dsp.Spectrum, res control.Result) {
	l.mu.Lock()
	l.spec = *spec
	l.res = res
	l.seq++
	l.mu.Unlock()
}

// LatestInto copies the newest spectrum into dst and returns its result. ok is
// false until the first Publish.
func (l *Latest) LatestInto(dst *dsp.Spectrum) (res control.Result, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.seq == 0 {
		return control.Result{}, false
	}
	*dst = l.spec
	return l.res, true
}

// Result returns the newest result without copying the spectrum.
func (l *Latest) Result() (control.Result, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.res, l.seq != 0
}

var _ control.SpectrumSink = (*Latest)(nil)
