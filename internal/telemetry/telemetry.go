// Package telemetry exposes Prometheus metrics and LLM cost tracking.
package telemetry

import (
	"log"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/paddockai/apex/config"
)

var (
	DebatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apex_debates_total",
		Help: "Completed debates by verdict.",
	}, []string{"verdict"})

	DebateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "apex_debate_duration_seconds",
		Help:    "Wall time of completed debates.",
		Buckets: prometheus.ExponentialBuckets(5, 2, 8),
	})

	TheoriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apex_theories_total",
		Help: "Theory resolutions by status.",
	}, []string{"status"})

	LLMTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apex_llm_tokens_total",
		Help: "Tokens exchanged with the LLM backend.",
	}, []string{"direction"})

	BroadcastEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apex_broadcast_events_total",
		Help: "Events published to the live feed.",
	})
)

// CostTracker accumulates LLM spend per model. Safe for concurrent use.
type CostTracker struct {
	mu         sync.RWMutex
	enabled    bool
	modelCosts map[string]float64
	totalCost  float64
	tokens     int64
	logger     *log.Logger
}

// NewCostTracker builds a tracker honoring the cost_tracking config flag.
func NewCostTracker(cfg config.TelemetryConfig, logger *log.Logger) *CostTracker {
	if logger == nil {
		logger = log.Default()
	}
	return &CostTracker{
		enabled:    cfg.CostTracking,
		modelCosts: make(map[string]float64),
		logger:     logger,
	}
}

// Record adds one generation's usage.
func (c *CostTracker) Record(model string, inputTokens, outputTokens int64, cost float64) {
	LLMTokensTotal.WithLabelValues("input").Add(float64(inputTokens))
	LLMTokensTotal.WithLabelValues("output").Add(float64(outputTokens))
	if !c.enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modelCosts[model] += cost
	c.totalCost += cost
	c.tokens += inputTokens + outputTokens
}

// Summary is a point-in-time cost snapshot.
type Summary struct {
	TotalCost   float64            `json:"total_cost"`
	TotalTokens int64              `json:"total_tokens"`
	ByModel     map[string]float64 `json:"by_model"`
}

// Snapshot returns accumulated spend.
func (c *CostTracker) Snapshot() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byModel := make(map[string]float64, len(c.modelCosts))
	for model, cost := range c.modelCosts {
		byModel[model] = cost
	}
	return Summary{TotalCost: c.totalCost, TotalTokens: c.tokens, ByModel: byModel}
}
