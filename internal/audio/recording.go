// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"formant/internal/config"
	"formant/internal/control"
	"formant/internal/exchange"
	"formant/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	// ErrRecorderBusy is returned by Report when the write queue is full.
	ErrRecorderBusy = errors.New("audio: snapshot queue full")
	// ErrRecorderClosed is returned by Report after Close.
	ErrRecorderClosed = errors.New("audio: snapshot recorder closed")
)

const snapshotQueue = 8

type snapshot struct {
	seq     uint64
	label   string
	samples exchange.SampleBuffer
}

// SnapshotRecorder saves the frame behind every report as a mono 16-bit WAV
// file. Report copies the samples and returns; encoding happens on the
// recorder's own goroutine.
type SnapshotRecorder struct {
	dir   string
	queue chan *snapshot

	mu     sync.Mutex // Guards closed and the queue send.
	closed bool
	wg     sync.WaitGroup

	written   []string // Owned by the writer goroutine until Close returns.
	sampleBuf *audio.IntBuffer
}

// Verify SnapshotRecorder implements control.Reporter at compile time.
var _ control.Reporter = (*SnapshotRecorder)(nil)

// NewSnapshotRecorder creates dir if needed and starts the writer.
func NewSnapshotRecorder(dir string) (*SnapshotRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	r := &SnapshotRecorder{
		dir:   dir,
		queue: make(chan *snapshot, snapshotQueue),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: 1,
				SampleRate:  config.SampleRate,
			},
			Data:           make([]int, config.FrameSize),
			SourceBitDepth: 16,
		},
	}
	r.wg.Add(1)
	go r.writer()
	log.Infof("SnapshotRecorder: Saving reported frames to %s", dir)
	return r, nil
}

// Report queues the report's frame for writing. Reports without samples are
// ignored.
func (r *SnapshotRecorder) Report(rep control.Report) error {
	if rep.Samples == nil {
		return nil
	}
	s := &snapshot{seq: rep.Result.Seq, label: snapshotLabel(rep)}
	s.samples = *rep.Samples

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}
	select {
	case r.queue <- s:
		return nil
	default:
		return ErrRecorderBusy
	}
}

// snapshotLabel names a file by the detected pitch.
func snapshotLabel(rep control.Report) string {
	f := rep.Result.Formant
	if !f.Detected() {
		return "none"
	}
	return fmt.Sprintf("%dHz", f.NominalHz)
}

func (r *SnapshotRecorder) writer() {
	defer r.wg.Done()
	for s := range r.queue {
		path := filepath.Join(r.dir, fmt.Sprintf("snapshot_%06d_%s.wav", s.seq, s.label))
		if err := r.write(path, &s.samples); err != nil {
			log.Errorf("SnapshotRecorder: %v", err)
			continue
		}
		r.written = append(r.written, path)
		log.Debugf("SnapshotRecorder: Wrote %s", path)
	}
}

func (r *SnapshotRecorder) write(path string, samples *exchange.SampleBuffer) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(file, config.SampleRate, 16, 1, 1)
	for i, v := range samples {
		r.sampleBuf.Data[i] = int(v) - config.SampleMidpoint
	}
	if err := enc.Write(r.sampleBuf); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to finish %s: %w", path, err)
	}
	return file.Close()
}

// Close drains the queue and stops the writer. It returns the files written.
func (r *SnapshotRecorder) Close() ([]string, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.wg.Wait()
		return r.written, nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	log.Infof("SnapshotRecorder: Saved %d snapshots", len(r.written))
	return r.written, nil
}
