// SPDX-License-Identifier: MIT
/*
Package touch is a software capacitive touch panel. Each of the 16 channels
has a baseline count captured at calibration and a raw count updated by
whatever drives the panel (the TUI key handler, a scripted pulse train, a
test). Magnitude is raw minus baseline.

Counts are atomics: the driver writes from its goroutine while the control
loop reads.
*/
package touch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"formant/internal/log"
)

// Channels is the number of touch channels on the panel.
const Channels = 16

// DefaultIdleCount is the raw count of an untouched electrode.
const DefaultIdleCount = 600

// ErrChannelDisabled is returned when driving a channel outside the enable
// mask.
var ErrChannelDisabled = errors.New("touch: channel not enabled")

// Panel holds per-channel raw and baseline counts.
type Panel struct {
	enabled  uint32
	raw      [Channels]atomic.Uint32
	baseline [Channels]atomic.Uint32
}

// NewPanel creates a panel with the channels in mask enabled, every raw count
// at idle, then calibrates.
func NewPanel(mask uint32, idle uint16) *Panel {
	p := &Panel{enabled: mask & (1<<Channels - 1)}
	for ch := range Channels {
		p.raw[ch].Store(uint32(idle))
	}
	p.Calibrate()
	return p
}

// ChannelMask returns the enable mask bit for ch.
func ChannelMask(ch int) uint32 {
	return 1 << uint(ch)
}

// Enabled reports whether ch is in the enable mask.
func (p *Panel) Enabled(ch int) bool {
	return ch >= 0 && ch < Channels && p.enabled&ChannelMask(ch) != 0
}

// Calibrate captures the current raw count of every enabled channel as its
// baseline.
func (p *Panel) Calibrate() {
	for ch := range Channels {
		if p.Enabled(ch) {
			p.baseline[ch].Store(p.raw[ch].Load())
		}
	}
	log.Debugf("Touch: Calibrated baselines (mask %#04x)", p.enabled)
}

// Magnitude returns raw minus baseline for ch. Disabled channels return 0.
func (p *Panel) Magnitude(ch int) int {
	if !p.Enabled(ch) {
		return 0
	}
	return int(p.raw[ch].Load()) - int(p.baseline[ch].Load())
}

// Raw returns the raw count for ch.
func (p *Panel) Raw(ch int) uint16 {
	if ch < 0 || ch >= Channels {
		return 0
	}
	return uint16(p.raw[ch].Load())
}

// Baseline returns the calibrated baseline for ch.
func (p *Panel) Baseline(ch int) uint16 {
	if ch < 0 || ch >= Channels {
		return 0
	}
	return uint16(p.baseline[ch].Load())
}

// SetRaw stores a new scan result for ch.
func (p *Panel) SetRaw(ch int, count uint16) error {
	if !p.Enabled(ch) {
		return fmt.Errorf("%w: %d", ErrChannelDisabled, ch)
	}
	p.raw[ch].Store(uint32(count))
	return nil
}

// Press raises ch to delta counts above its baseline.
func (p *Panel) Press(ch int, delta uint16) error {
	if !p.Enabled(ch) {
		return fmt.Errorf("%w: %d", ErrChannelDisabled, ch)
	}
	p.raw[ch].Store(p.baseline[ch].Load() + uint32(delta))
	return nil
}

// Release returns ch to its baseline.
func (p *Panel) Release(ch int) error {
	if !p.Enabled(ch) {
		return fmt.Errorf("%w: %d", ErrChannelDisabled, ch)
	}
	p.raw[ch].Store(p.baseline[ch].Load())
	return nil
}

// Pulse presses ch for hold and then releases it. It returns once the
// release is scheduled.
func (p *Panel) Pulse(ch int, delta uint16, hold time.Duration) error {
	if err := p.Press(ch, delta); err != nil {
		return err
	}
	time.AfterFunc(hold, func() { _ = p.Release(ch) })
	return nil
}

// Script pulses ch every interval until ctx is done. Each pulse is held for
// hold, which should span at least one analysis frame so the loop sees it.
func (p *Panel) Script(ctx context.Context, ch int, delta uint16, every, hold time.Duration) error {
	if !p.Enabled(ch) {
		return fmt.Errorf("%w: %d", ErrChannelDisabled, ch)
	}
	if every <= 0 || hold <= 0 || hold >= every {
		return fmt.Errorf("touch: invalid pulse timing every=%v hold=%v", every, hold)
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	log.Infof("Touch: Scripted pulses on channel %d every %v", ch, every)

	for {
		select {
		case <-ctx.Done():
			_ = p.Release(ch)
			return ctx.Err()
		case <-ticker.C:
			if err := p.Press(ch, delta); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				_ = p.Release(ch)
				return ctx.Err()
			case <-time.After(hold):
			}
			_ = p.Release(ch)
		}
	}
}
