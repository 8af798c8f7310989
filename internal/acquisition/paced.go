// SPDX-License-Identifier: MIT
package acquisition

import (
	"errors"
	"sync"
	"time"
)

// pacedSampler delivers generated chunks on a ticker so that samples arrive
// at the configured rate in real time. The generator fills one chunk per tick.
type pacedSampler struct {
	chunk    []uint16
	generate func(dst []uint16)

	mu       sync.Mutex
	doneChan chan struct{}
	wg       sync.WaitGroup
}

func newPacedSampler(chunkFrames int, generate func(dst []uint16)) *pacedSampler {
	return &pacedSampler{
		chunk:    make([]uint16, chunkFrames),
		generate: generate,
	}
}

// Start launches the pacing goroutine.
func (p *pacedSampler) Start(rate int, deliver func(samples []uint16)) error {
	if rate <= 0 {
		return errors.New("sampler: rate must be positive")
	}
	if len(p.chunk) == 0 {
		return errors.New("sampler: chunk size must be positive")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doneChan != nil {
		return errors.New("sampler: already running")
	}

	interval := time.Duration(int64(time.Second) * int64(len(p.chunk)) / int64(rate))
	ticker := time.NewTicker(interval)
	doneChan := make(chan struct{})
	p.doneChan = doneChan

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.generate(p.chunk)
				deliver(p.chunk)
			case <-doneChan:
				return
			}
		}
	}()
	return nil
}

// Stop signals the pacing goroutine and waits for it to exit. Safe to call
// more than once.
func (p *pacedSampler) Stop() error {
	p.mu.Lock()
	if p.doneChan == nil {
		p.mu.Unlock()
		return nil
	}
	close(p.doneChan)
	p.doneChan = nil
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}
