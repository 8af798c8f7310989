// SPDX-License-Identifier: MIT
package acquisition

import (
	"errors"
	"fmt"
	"io"
	"os"

	"formant/internal/config"

	"github.com/go-audio/wav"
)

// WAVSampler replays a recorded mono WAV file in real time, looping at the
// end of the file.
type WAVSampler struct {
	*pacedSampler

	samples []uint16
	pos     int // Owned by the pacing goroutine
}

var _ Sampler = (*WAVSampler)(nil)

// NewWAVSampler loads path and prepares it for paced replay. The file must be
// sampled at the pipeline rate.
func NewWAVSampler(path string, chunkFrames int) (*WAVSampler, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav file: %w", err)
	}
	defer f.Close()

	samples, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	w := &WAVSampler{samples: samples}
	w.pacedSampler = newPacedSampler(chunkFrames, w.fill)
	return w, nil
}

// Len returns the number of samples in the loaded file.
func (w *WAVSampler) Len() int {
	return len(w.samples)
}

func (w *WAVSampler) fill(dst []uint16) {
	for i := range dst {
		dst[i] = w.samples[w.pos]
		w.pos++
		if w.pos == len(w.samples) {
			w.pos = 0
		}
	}
}

// DecodeWAV reads a PCM WAV stream and converts its first channel to
// offset-binary unsigned 16-bit samples. Files not sampled at
// config.SampleRate are rejected; the pipeline has no resampler.
func DecodeWAV(r io.ReadSeeker) ([]uint16, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, errors.New("not a valid wav file")
	}
	if d.SampleRate != config.SampleRate {
		return nil, fmt.Errorf("wav sample rate is %d Hz, need %d Hz", d.SampleRate, config.SampleRate)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode pcm data: %w", err)
	}

	channels := int(d.NumChans)
	if channels < 1 {
		channels = 1
	}
	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, errors.New("wav file has no samples")
	}

	bitDepth := int(d.BitDepth)
	out := make([]uint16, frames)
	for i := range out {
		out[i] = toOffsetBinary(buf.Data[i*channels], bitDepth)
	}
	return out, nil
}

// toOffsetBinary scales one PCM sample of the given bit depth to the 16-bit
// offset-binary convention of the converter (0x8000 is silence).
func toOffsetBinary(v, bitDepth int) uint16 {
	switch {
	case bitDepth == 8:
		// 8-bit WAV is already unsigned.
		return uint16(v&0xFF) << 8
	case bitDepth > 16:
		v >>= bitDepth - 16
	case bitDepth < 16:
		v <<= 16 - bitDepth
	}
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return uint16(v + config.SampleMidpoint)
}
