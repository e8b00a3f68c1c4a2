package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	r.NodeVisited("classify")
	r.NodeVisited("classify")
	r.Classified("fast", "fallback")
	r.Escalated("tool_call")
	r.SafetyBlocked("input")
	r.ToolDenied("render_decision")
	r.ToolExecuted("get_balance", "ok", 20*time.Millisecond)
	r.Cost("capable", "gemini-2.5-pro", 0.5)
	r.Cost("capable", "gemini-2.5-pro", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.nodeVisits.WithLabelValues("classify")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.classifications.WithLabelValues("fast", "fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.escalations.WithLabelValues("tool_call")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.safetyBlocks.WithLabelValues("input")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.toolDenials.WithLabelValues("render_decision")))
	assert.Equal(t, 0.5, testutil.ToFloat64(r.llmCost.WithLabelValues("capable", "gemini-2.5-pro")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.toolDuration))
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.NodeVisited("x")
		r.Classified("fast", "model")
		r.Escalated("error")
		r.SafetyBlocked("output")
		r.ToolDenied("x")
		r.ToolExecuted("x", "ok", time.Second)
		r.Cost("fast", "m", 1)
	})
}
