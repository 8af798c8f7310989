// SPDX-License-Identifier: MIT
package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"formant/internal/exchange"
	"formant/internal/formant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, p *Pipeline) string {
	t.Helper()
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestPipelineCounters(t *testing.T) {
	p := NewPipeline()

	p.FrameAnalyzed(2*time.Millisecond, false)
	p.FrameAnalyzed(70*time.Millisecond, true)
	p.FrameGated()
	p.InputLevel(0.25)
	p.RecordingChanged(true)
	p.Reported(formant.Classify(5))
	p.Reported(formant.Classify(5))
	p.Reported(formant.NoPitch)

	out := scrape(t, p)
	assert.Contains(t, out, "formant_frames_analyzed_total 2")
	assert.Contains(t, out, "formant_deadline_misses_total 1")
	assert.Contains(t, out, "formant_frames_gated_total 1")
	assert.Contains(t, out, "formant_input_level_ratio 0.25")
	assert.Contains(t, out, "formant_recording 1")
	assert.Contains(t, out, `formant_reports_total{note="B5"} 2`)
	assert.Contains(t, out, `formant_reports_total{note="none"} 1`)
	assert.Contains(t, out, "formant_analysis_duration_seconds_count 2")

	p.RecordingChanged(false)
	assert.Contains(t, scrape(t, p), "formant_recording 0")
}

func TestWatchExchange(t *testing.T) {
	p := NewPipeline()
	ex := exchange.New(nil, nil)
	p.WatchExchange(ex)

	ex.OnTransferComplete()
	f, err := ex.TryTake()
	require.NoError(t, err)
	ex.OnTransferComplete() // Overrun while held.
	f.Release()
	ex.OnTransferComplete()
	ex.OnTransferComplete() // Drop.

	out := scrape(t, p)
	assert.Contains(t, out, "formant_exchange_completions_total 4")
	assert.Contains(t, out, "formant_exchange_takes_total 1")
	assert.Contains(t, out, "formant_exchange_overruns_total 1")
	assert.Contains(t, out, "formant_exchange_drops_total 1")
}

func TestPipelinesAreIndependent(t *testing.T) {
	a, b := NewPipeline(), NewPipeline()
	a.FrameGated()
	assert.Contains(t, scrape(t, a), "formant_frames_gated_total 1")
	assert.Contains(t, scrape(t, b), "formant_frames_gated_total 0")
}
