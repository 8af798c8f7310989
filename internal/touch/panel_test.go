// SPDX-License-Identifier: MIT
package touch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanelCalibrateAndMagnitude(t *testing.T) {
	p := NewPanel(ChannelMask(9)|ChannelMask(10), DefaultIdleCount)

	assert.True(t, p.Enabled(10))
	assert.False(t, p.Enabled(3))
	assert.False(t, p.Enabled(-1))
	assert.False(t, p.Enabled(Channels))

	assert.Equal(t, 0, p.Magnitude(10), "calibrated panel reads zero")
	assert.Equal(t, uint16(DefaultIdleCount), p.Baseline(10))

	require.NoError(t, p.SetRaw(10, DefaultIdleCount+25))
	assert.Equal(t, 25, p.Magnitude(10))
	assert.Equal(t, uint16(DefaultIdleCount+25), p.Raw(10))

	// Drift below baseline reads negative.
	require.NoError(t, p.SetRaw(10, DefaultIdleCount-5))
	assert.Equal(t, -5, p.Magnitude(10))

	p.Calibrate()
	assert.Equal(t, 0, p.Magnitude(10))
	assert.Equal(t, uint16(DefaultIdleCount-5), p.Baseline(10))
}

func TestPanelDisabledChannel(t *testing.T) {
	p := NewPanel(ChannelMask(10), DefaultIdleCount)

	assert.ErrorIs(t, p.SetRaw(3, 900), ErrChannelDisabled)
	assert.ErrorIs(t, p.Press(3, 50), ErrChannelDisabled)
	assert.ErrorIs(t, p.Release(3), ErrChannelDisabled)
	assert.Equal(t, 0, p.Magnitude(3))
	assert.Equal(t, uint16(0), p.Raw(99))
}

func TestPanelPressRelease(t *testing.T) {
	p := NewPanel(ChannelMask(10), DefaultIdleCount)
	require.NoError(t, p.Press(10, 40))
	assert.Equal(t, 40, p.Magnitude(10))
	require.NoError(t, p.Release(10))
	assert.Equal(t, 0, p.Magnitude(10))
}

func TestPanelPulse(t *testing.T) {
	p := NewPanel(ChannelMask(10), DefaultIdleCount)
	require.NoError(t, p.Pulse(10, 40, 20*time.Millisecond))
	assert.Equal(t, 40, p.Magnitude(10))
	assert.Eventually(t, func() bool { return p.Magnitude(10) == 0 }, time.Second, 5*time.Millisecond)
}

func TestPanelScript(t *testing.T) {
	p := NewPanel(ChannelMask(10), DefaultIdleCount)
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	var err error
	wg.Add(1)
	go func() {
		defer wg.Done()
		err = p.Script(ctx, 10, 30, 20*time.Millisecond, 10*time.Millisecond)
	}()

	assert.Eventually(t, func() bool { return p.Magnitude(10) == 30 }, time.Second, time.Millisecond)
	cancel()
	wg.Wait()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, p.Magnitude(10), "cancel releases the channel")
}

func TestPanelScriptValidation(t *testing.T) {
	p := NewPanel(ChannelMask(10), DefaultIdleCount)
	ctx := context.Background()
	assert.ErrorIs(t, p.Script(ctx, 2, 30, time.Second, time.Millisecond), ErrChannelDisabled)
	assert.Error(t, p.Script(ctx, 10, 30, time.Second, 0))
	assert.Error(t, p.Script(ctx, 10, 30, time.Millisecond, time.Second))
}
