// Package metrics exposes Prometheus collectors for turn execution.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lending_agent"

type Recorder struct {
	nodeVisits      *prometheus.CounterVec
	classifications *prometheus.CounterVec
	escalations     *prometheus.CounterVec
	safetyBlocks    *prometheus.CounterVec
	toolDenials     *prometheus.CounterVec
	toolDuration    *prometheus.HistogramVec
	llmCost         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		nodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Total number of graph node executions.",
		}, []string{"node"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Tier decisions by tier and source (model or fallback).",
		}, []string{"tier", "source"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Fast tier responses discarded in favour of the capable tier.",
		}, []string{"reason"}),
		safetyBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "safety_blocks_total",
			Help:      "Messages blocked or replaced by a safety shield.",
		}, []string{"direction"}),
		toolDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_denials_total",
			Help:      "Tool calls denied by role authorization.",
		}, []string{"tool"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Duration of tool executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool", "outcome"}),
		llmCost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_cost_usd_total",
			Help:      "Accumulated model usage cost in USD.",
		}, []string{"tier", "model"}),
	}
	for _, c := range []prometheus.Collector{
		r.nodeVisits, r.classifications, r.escalations, r.safetyBlocks,
		r.toolDenials, r.toolDuration, r.llmCost,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) NodeVisited(node string) {
	if r == nil {
		return
	}
	r.nodeVisits.WithLabelValues(node).Inc()
}

func (r *Recorder) Classified(tier, source string) {
	if r == nil {
		return
	}
	r.classifications.WithLabelValues(tier, source).Inc()
}

func (r *Recorder) Escalated(reason string) {
	if r == nil {
		return
	}
	r.escalations.WithLabelValues(reason).Inc()
}

func (r *Recorder) SafetyBlocked(direction string) {
	if r == nil {
		return
	}
	r.safetyBlocks.WithLabelValues(direction).Inc()
}

func (r *Recorder) ToolDenied(tool string) {
	if r == nil {
		return
	}
	r.toolDenials.WithLabelValues(tool).Inc()
}

func (r *Recorder) ToolExecuted(tool, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.toolDuration.WithLabelValues(tool, outcome).Observe(d.Seconds())
}

func (r *Recorder) Cost(tier, model string, usd float64) {
	if r == nil || usd <= 0 {
		return
	}
	r.llmCost.WithLabelValues(tier, model).Add(usd)
}
