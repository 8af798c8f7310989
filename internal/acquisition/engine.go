// SPDX-License-Identifier: MIT
/*
Package acquisition drives continuous sampling into the exchange buffers.

A Sampler stands in for the timer-triggered converter: it is started at a
fixed rate and delivers raw unsigned 16-bit samples from its own context. The
Engine plays the role of the DMA channel: it copies delivered samples into the
exchange's current destination, signals completion every FrameSize samples
and re-arms itself on whatever destination the exchange selects next.

Real-Time Constraints:
- deliver runs in the sampler's context and never blocks, logs or allocates
- the write cursor and destination are owned by that context alone
*/
package acquisition

import (
	"errors"
	"fmt"
	"sync/atomic"

	"formant/internal/config"
	"formant/internal/exchange"
)

// Sampler is the periodic sampling collaborator.
//
// Start begins sampling at rate Hz and calls deliver with successive chunks
// of raw samples until Stop. Calls to deliver are sequential and the slice
// is only valid for the duration of the call.
type Sampler interface {
	Start(rate int, deliver func(samples []uint16)) error
	Stop() error
}

var (
	ErrAlreadyStarted  = errors.New("acquisition: already started")
	ErrUnsupportedRate = errors.New("acquisition: unsupported sample rate")
)

// Engine fills exchange buffers from a Sampler.
type Engine struct {
	sampler Sampler
	started atomic.Bool

	// Owned by the sampler context after Start.
	ex     *exchange.Exchange
	dst    *exchange.SampleBuffer
	cursor int
}

// NewEngine creates an engine around the given sampler.
func NewEngine(sampler Sampler) *Engine {
	return &Engine{sampler: sampler}
}

// Start begins continuous acquisition at rate Hz into ex, beginning with the
// exchange's current destination (buffer A on a fresh exchange). Only the
// compile-time rate is accepted. Start may be called once.
func (e *Engine) Start(rate int, ex *exchange.Exchange) error {
	if rate != config.SampleRate {
		return fmt.Errorf("%w: %d Hz (want %d Hz)", ErrUnsupportedRate, rate, config.SampleRate)
	}
	if ex == nil {
		return errors.New("acquisition: exchange cannot be nil")
	}
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	e.ex = ex
	e.dst = ex.Destination()
	e.cursor = 0

	if err := e.sampler.Start(rate, e.deliver); err != nil {
		return fmt.Errorf("acquisition: failed to start sampler: %w", err)
	}
	return nil
}

// Stop halts the underlying sampler. The pipeline itself never stops on its
// own; this exists for process shutdown.
func (e *Engine) Stop() error {
	if !e.started.Load() {
		return nil
	}
	return e.sampler.Stop()
}

// deliver is the transfer engine. It is called from the sampler context.
func (e *Engine) deliver(in []uint16) {
	for len(in) > 0 {
		n := copy(e.dst[e.cursor:], in)
		e.cursor += n
		in = in[n:]

		if e.cursor == len(e.dst) {
			e.ex.OnTransferComplete()
			// Re-arm: same buffer on overrun, the other one otherwise.
			e.dst = e.ex.Destination()
			e.cursor = 0
		}
	}
}
