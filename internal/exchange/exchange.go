// SPDX-License-Identifier: MIT
/*
Package exchange implements the ping-pong hand-off between the acquisition
engine and the control loop.

Two SampleBuffers (A and B) alternate roles. The acquisition side writes the
active buffer and calls OnTransferComplete when it is full; the mainline side
claims the filled buffer with TryTake and hands it back with Frame.Release.

All shared state lives in one packed atomic word, so the flip of the active
buffer and the retarget of the acquisition destination are a single
compare-and-swap. Neither side ever blocks on the other:
  - OnTransferComplete runs in the acquisition callback and finishes in a
    bounded number of CAS retries.
  - TryTake either succeeds immediately or returns ErrNoDataReady.

Buffer ownership:
  - The active buffer belongs to the acquisition engine.
  - The inactive buffer is idle, ready (filled, unclaimed) or held (claimed by
    the mainline until Release).
  - While a frame is held the exchange never retargets onto it; a completion in
    that window re-arms the same active buffer and counts an overrun.
*/
package exchange

import (
	"errors"
	"sync/atomic"

	"formant/internal/config"
)

// SampleBuffer is one acquisition frame of unsigned 16-bit samples.
type SampleBuffer [config.FrameSize]uint16

// BufferID names one of the two buffers.
type BufferID uint8

const (
	BufferA BufferID = iota
	BufferB
)

func (id BufferID) String() string {
	if id == BufferA {
		return "A"
	}
	return "B"
}

// MarshalText encodes the buffer by name.
func (id BufferID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id BufferID) other() BufferID {
	return id ^ 1
}

var (
	// ErrNoDataReady is returned by TryTake when no filled buffer is waiting.
	// It is a normal transient condition; the caller polls again.
	ErrNoDataReady = errors.New("exchange: no data ready")

	// ErrFrameHeld is returned by TryTake when the previous frame has not been
	// released. Only a caller that forgets Release can see it.
	ErrFrameHeld = errors.New("exchange: previous frame not released")
)

// State word layout.
const (
	stateActiveB uint32 = 1 << iota // Set when buffer B is the acquisition target.
	stateReady                      // The inactive buffer holds an unclaimed full frame.
	stateHeld                       // The inactive buffer is claimed by the mainline.
)

// Stats are cumulative counters since the exchange was created.
type Stats struct {
	Completions uint64 // Transfers completed by the acquisition engine.
	Takes       uint64 // Frames claimed by the mainline.
	Overruns    uint64 // Completions while a frame was held; the new frame was discarded.
	Drops       uint64 // Ready frames replaced by a newer one before being claimed.
}

// Frame is a claimed, filled buffer. It stays valid until Release.
type Frame struct {
	ex  *Exchange
	id  BufferID
	buf *SampleBuffer
}

// ID returns which buffer this frame is.
func (f *Frame) ID() BufferID { return f.id }

// Samples returns the frame's samples. The slice aliases the buffer and must
// not be used after Release.
func (f *Frame) Samples() []uint16 { return f.buf[:] }

// Release returns the buffer to the exchange so acquisition may target it
// again. Releasing a frame that is not held is a no-op.
func (f *Frame) Release() {
	s := &f.ex.state
	for {
		old := s.Load()
		if old&stateHeld == 0 {
			return
		}
		if s.CompareAndSwap(old, old&^stateHeld) {
			return
		}
	}
}

// Exchange coordinates the two buffers between acquisition and the mainline.
type Exchange struct {
	state   atomic.Uint32
	buffers [2]*SampleBuffer
	frames  [2]Frame // Pre-allocated handles so TryTake does not allocate.
	notify  chan struct{}

	completions atomic.Uint64
	takes       atomic.Uint64
	overruns    atomic.Uint64
	drops       atomic.Uint64
}

// New creates an exchange over the given buffers. Nil buffers are allocated.
// Buffer A is the first acquisition target and nothing is ready.
func New(a, b *SampleBuffer) *Exchange {
	if a == nil {
		a = new(SampleBuffer)
	}
	if b == nil {
		b = new(SampleBuffer)
	}
	e := &Exchange{
		buffers: [2]*SampleBuffer{a, b},
		notify:  make(chan struct{}, 1),
	}
	e.frames[BufferA] = Frame{ex: e, id: BufferA, buf: a}
	e.frames[BufferB] = Frame{ex: e, id: BufferB, buf: b}
	return e
}

func activeOf(state uint32) BufferID {
	if state&stateActiveB != 0 {
		return BufferB
	}
	return BufferA
}

// Destination returns the buffer the acquisition engine must fill next. It
// is the software equivalent of the DMA destination register and changes
// only inside OnTransferComplete.
func (e *Exchange) Destination() *SampleBuffer {
	return e.buffers[activeOf(e.state.Load())]
}

// ActiveID reports which buffer is currently the acquisition target.
func (e *Exchange) ActiveID() BufferID {
	return activeOf(e.state.Load())
}

// IsReady reports whether a filled, unclaimed frame is waiting.
func (e *Exchange) IsReady() bool {
	return e.state.Load()&stateReady != 0
}

// Ready returns a channel that receives after completions. It is a wake-up
// hint for waiters; TryTake remains the authority on whether data is ready.
func (e *Exchange) Ready() <-chan struct{} {
	return e.notify
}

// OnTransferComplete is called by the acquisition engine when the active
// buffer is full. It marks that buffer ready and retargets acquisition to the
// other buffer in one atomic step. If the other buffer is still held by the
// mainline the active buffer is re-armed in place and the frame is lost.
func (e *Exchange) OnTransferComplete() {
	e.completions.Add(1)
	for {
		old := e.state.Load()
		if old&stateHeld != 0 {
			e.overruns.Add(1)
			return
		}
		next := (old ^ stateActiveB) | stateReady
		if e.state.CompareAndSwap(old, next) {
			if old&stateReady != 0 {
				e.drops.Add(1)
			}
			break
		}
	}
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

// TryTake claims the ready frame and clears the ready flag. It returns
// ErrNoDataReady when acquisition has not completed a frame since the last
// take. The returned frame must be released before the next TryTake.
func (e *Exchange) TryTake() (*Frame, error) {
	for {
		old := e.state.Load()
		if old&stateHeld != 0 {
			return nil, ErrFrameHeld
		}
		if old&stateReady == 0 {
			return nil, ErrNoDataReady
		}
		next := (old &^ stateReady) | stateHeld
		if e.state.CompareAndSwap(old, next) {
			e.takes.Add(1)
			return &e.frames[activeOf(old).other()], nil
		}
	}
}

// Stats returns a snapshot of the exchange counters.
func (e *Exchange) Stats() Stats {
	return Stats{
		Completions: e.completions.Load(),
		Takes:       e.takes.Load(),
		Overruns:    e.overruns.Load(),
		Drops:       e.drops.Load(),
	}
}
