// SPDX-License-Identifier: MIT
package control

import (
	"time"

	"formant/internal/dsp"
	"formant/internal/exchange"
	"formant/internal/formant"
)

// State is the loop's recording state.
type State int32

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// TouchSensor reads the normalized magnitude of a touch channel.
type TouchSensor interface {
	Magnitude(channel int) int
}

// Indicator drives the two status lamps.
type Indicator interface {
	SetRecord(on bool)
	SetIdle(on bool)
}

// Reporter receives the classification of a completed recording cycle. It
// is called from the loop goroutine and must not block for long.
type Reporter interface {
	Report(Report) error
}

// EventSink receives state transitions.
type EventSink interface {
	Event(Event)
}

// SpectrumSink receives every analyzed spectrum. spec is only valid for the
// duration of the call.
type SpectrumSink interface {
	Publish(spec *dsp.Spectrum, res Result)
}

// Observer collects loop measurements. metrics.Pipeline implements it.
type Observer interface {
	FrameAnalyzed(elapsed time.Duration, missed bool)
	FrameGated()
	InputLevel(rms float64)
	RecordingChanged(on bool)
	Reported(f formant.Formant)
}

// Result is the outcome of one loop iteration.
type Result struct {
	Seq     uint64            `json:"seq"`
	Buffer  exchange.BufferID `json:"buffer"`
	Bin     int               `json:"bin"`
	Formant formant.Formant   `json:"formant"`
	Gated   bool              `json:"gated"`   // Frame was below the noise gate and not analyzed.
	Level   float64           `json:"level"`   // RMS level, fraction of full scale.
	Elapsed time.Duration     `json:"elapsed"` // Claim to release.
	Missed  bool              `json:"missed"`  // Elapsed exceeded the deadline.
	At      time.Time         `json:"at"`
}

// Report is delivered once per recording cycle.
type Report struct {
	Result    Result                 `json:"result"`
	StartedAt time.Time              `json:"started_at"`
	StoppedAt time.Time              `json:"stopped_at"`
	Samples   *exchange.SampleBuffer `json:"-"` // The analyzed frame. Valid only during Report; copy to keep.
}

// EventKind names a state transition.
type EventKind int

const (
	RecordingStarted EventKind = iota
	RecordingStopped
)

func (k EventKind) String() string {
	if k == RecordingStarted {
		return "recording_started"
	}
	return "recording_stopped"
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Event is one state transition.
type Event struct {
	Kind EventKind `json:"kind"`
	Seq  uint64    `json:"seq"` // Iteration that caused it.
	At   time.Time `json:"at"`
}
