// SPDX-License-Identifier: MIT
package config

import "time"

// Pipeline constants. These are fixed at compile time and matched to the
// analysis deadline: one frame of FrameSize samples at SampleRate lasts
// FramePeriod, and the whole analysis chain must finish inside it.
const (
	SampleRate     = 8192                                     // Sampling frequency (Hz)
	FrameSize      = 512                                      // Samples per acquisition frame and transform size
	SampleMidpoint = 1 << 15                                  // Offset-binary zero for unsigned 16-bit samples
	BinWidthHz     = float64(SampleRate) / float64(FrameSize) // 16 Hz per transform bin
	FramePeriod    = time.Second * FrameSize / SampleRate     // 62.5ms
)

// Defaults applied before the config file and environment are read.
const (
	DefaultLogLevel       = "info"
	DefaultSourceKind     = SourceMic
	DefaultInputDevice    = MinDeviceID // System default input device
	DefaultToneHz         = 5 * BinWidthHz
	DefaultToneAmplitude  = 0.5
	DefaultChunkFrames    = 64 // Samples delivered per sampler tick
	DefaultAnalysisEngine = EngineFixed
	DefaultFFTWindow      = "Hann"
	DefaultTouchChannel   = 10
	DefaultTouchThreshold = 10
	DefaultPollMode       = PollNotify
	DefaultDeadline       = FramePeriod
	DefaultOutputDir      = "./snapshots"
	DefaultWSAddress      = ":8080"
	DefaultUDPTarget      = "127.0.0.1:9090"
	DefaultUDPInterval    = 33 * time.Millisecond

	MinDeviceID = -1 // -1 represents system default device
)

// Source kinds.
const (
	SourceMic  = "mic"
	SourceTone = "tone"
	SourceWAV  = "wav"
)

// Analysis engines.
const (
	EngineFixed = "fixed"
	EngineFloat = "float"
)

// Poll modes for the control loop wait.
const (
	PollNotify = "notify"
	PollSpin   = "spin"
)
