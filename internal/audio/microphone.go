// SPDX-License-Identifier: MIT
/*
Package audio connects the pipeline to the host's sound hardware through
PortAudio: device discovery, a microphone sampler for the acquisition engine
and WAV snapshots of reported frames.

Thread Safety:
- The PortAudio callback only converts into a pre-allocated buffer
- Snapshot encoding runs on its own goroutine, never on the loop
*/
package audio

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"formant/internal/acquisition"
	"formant/internal/log"

	"github.com/gordonklaus/portaudio"
)

// ErrMicrophoneStarted is returned by Start on a running microphone.
var ErrMicrophoneStarted = errors.New("audio: microphone already started")

// Microphone samples a PortAudio input device in mono and delivers
// offset-binary samples, matching the converter the pipeline expects.
type Microphone struct {
	deviceID    int
	lowLatency  bool
	chunkFrames int

	mu      sync.Mutex
	stream  *portaudio.Stream
	deliver func(samples []uint16)
	buf     []uint16 // Conversion target, reused every callback.
}

// Verify Microphone implements acquisition.Sampler at compile time.
var _ acquisition.Sampler = (*Microphone)(nil)

// NewMicrophone creates a sampler for deviceID (-1 is the system default).
// chunkFrames is the PortAudio buffer size.
func NewMicrophone(deviceID int, lowLatency bool, chunkFrames int) *Microphone {
	return &Microphone{
		deviceID:    deviceID,
		lowLatency:  lowLatency,
		chunkFrames: chunkFrames,
		buf:         make([]uint16, chunkFrames),
	}
}

// Start initializes PortAudio, opens the device at rate Hz and begins
// delivering samples.
func (m *Microphone) Start(rate int, deliver func(samples []uint16)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream != nil {
		return ErrMicrophoneStarted
	}

	if err := Initialize(); err != nil {
		return err
	}
	device, err := InputDevice(m.deviceID)
	if err != nil {
		_ = Terminate()
		return err
	}

	latency := device.DefaultHighInputLatency
	if m.lowLatency {
		latency = device.DefaultLowInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   device,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: m.chunkFrames,
		SampleRate:      float64(rate),
	}

	m.deliver = deliver
	stream, err := portaudio.OpenStream(params, m.process)
	if err != nil {
		_ = Terminate()
		return fmt.Errorf("failed to open input stream on %q: %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		_ = Terminate()
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	m.stream = stream

	log.Infof("Microphone: Capturing from %q at %d Hz (latency %s)", device.Name, rate, latency.Round(time.Microsecond))
	return nil
}

// Stop closes the stream and releases PortAudio. Stopping an idle
// microphone is a no-op.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stream == nil {
		return nil
	}

	err := m.stream.Stop()
	if cerr := m.stream.Close(); err == nil {
		err = cerr
	}
	m.stream = nil
	if terr := Terminate(); err == nil {
		err = terr
	}
	return err
}

// process is the PortAudio callback.
// Performance Critical:
// - Runs on the PortAudio thread
// - Uses the pre-allocated buffer only
func (m *Microphone) process(in []int16) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for len(in) > 0 {
		n := min(len(in), len(m.buf))
		toOffsetBinary(m.buf[:n], in[:n])
		m.deliver(m.buf[:n])
		in = in[n:]
	}
}

// toOffsetBinary converts signed PCM to unsigned samples centred on 0x8000.
// Flipping the sign bit is the same as adding 32768.
func toOffsetBinary(dst []uint16, src []int16) {
	for i, s := range src {
		dst[i] = uint16(s) ^ 0x8000
	}
}
