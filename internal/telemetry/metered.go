package telemetry

import (
	"context"

	"github.com/paddockai/apex/internal/llm"
)

// CostModel is implemented by providers that can price a completed turn.
type CostModel interface {
	CalculateCost(inputTokens, outputTokens int64, model string) float64
}

// MeteredProvider wraps a provider so every generation is recorded by the
// cost tracker, which owns the token metrics.
type MeteredProvider struct {
	inner        llm.Provider
	costs        *CostTracker
	defaultModel string
}

// Meter wraps p. defaultModel attributes turns whose request carries no
// model of its own, so spend never lands under an empty key.
func Meter(p llm.Provider, costs *CostTracker, defaultModel string) *MeteredProvider {
	return &MeteredProvider{inner: p, costs: costs, defaultModel: defaultModel}
}

func (m *MeteredProvider) Generate(ctx context.Context, req llm.Request, onFragment func(string)) (llm.Turn, error) {
	turn, err := m.inner.Generate(ctx, req, onFragment)
	if err != nil {
		return turn, err
	}
	if m.costs != nil {
		model := req.Model
		if model == "" {
			model = m.defaultModel
		}
		var cost float64
		if priced, ok := m.inner.(CostModel); ok {
			cost = priced.CalculateCost(turn.InputTokens, turn.OutputTokens, model)
		}
		m.costs.Record(model, turn.InputTokens, turn.OutputTokens, cost)
	}
	return turn, err
}
