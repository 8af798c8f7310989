// SPDX-License-Identifier: MIT
package control

import (
	"errors"
	"sync/atomic"
)

// Lamps is an Indicator that only remembers the lamp states, for displays
// running on another goroutine.
type Lamps struct {
	record atomic.Bool
	idle   atomic.Bool
}

func (l *Lamps) SetRecord(on bool) { l.record.Store(on) }
func (l *Lamps) SetIdle(on bool) { l.idle.Store(on) }

// Record reports the record lamp.
func (l *Lamps) Record() bool { return l.record.Load() }

// Idle reports the idle lamp.
func (l *Lamps) Idle() bool { return l.idle.Load() }

// Indicators drives several indicators together.
type Indicators []Indicator

func (is Indicators) SetRecord(on bool) {
	for _, i := range is {
		i.SetRecord(on)
	}
}

func (is Indicators) SetIdle(on bool) {
	for _, i := range is {
		i.SetIdle(on)
	}
}

// Reporters delivers each report to every reporter in order. All reporters
// are called even if one fails; the errors are joined.
type Reporters []Reporter

func (rs Reporters) Report(r Report) error {
	var errs []error
	for _, rep := range rs {
		if err := rep.Report(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Report) error

func (f ReporterFunc) Report(r Report) error { return f(r) }

// EventSinks delivers each event to every sink.
type EventSinks []EventSink

func (es EventSinks) Event(e Event) {
	for _, s := range es {
		s.Event(e)
	}
}

// Compile-time checks for interface implementations.
var (
	_ Indicator = (*Lamps)(nil)
	_ Indicator = Indicators(nil)
	_ Reporter  = Reporters(nil)
	_ Reporter  = ReporterFunc(nil)
	_ EventSink = EventSinks(nil)
)
