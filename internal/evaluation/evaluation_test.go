package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/paddockai/apex/internal/agent"
	"github.com/paddockai/apex/internal/llm"
)

type cannedProvider struct {
	reply string
	err   error
}

func (p cannedProvider) Generate(ctx context.Context, req llm.Request, onFragment func(string)) (llm.Turn, error) {
	if p.err != nil {
		return llm.Turn{}, p.err
	}
	if onFragment != nil {
		onFragment(p.reply)
	}
	return llm.Turn{Text: p.reply, StopReason: "end_turn"}, nil
}

type emptyKnowledge struct{}

func (emptyKnowledge) Search(ctx context.Context, query string, minConfidence float64, tier, limit int) ([]agent.FactHit, error) {
	return nil, nil
}

func (emptyKnowledge) Cite(ctx context.Context, factID string, tier int) (agent.FactHit, error) {
	return agent.FactHit{}, errors.New("not found")
}

func candidate(reply string) *agent.Agent {
	return agent.New(agent.Persona{ID: "c1", Name: "Scout", Tier: 3},
		cannedProvider{reply: reply}, agent.NewDispatcher(emptyKnowledge{}, nil), 0, nil)
}

func TestKeywordScore(t *testing.T) {
	cases := []struct {
		response string
		keywords []string
		want     float64
	}{
		{"The soft, medium and hard compounds", []string{"soft", "medium", "hard"}, 100},
		{"Only the SOFT compound", []string{"soft", "medium", "hard"}, 100.0 / 3},
		{"nothing relevant", []string{"soft", "medium", "hard"}, 0},
		{"anything", nil, 0},
	}
	for _, tc := range cases {
		got := KeywordScore(tc.response, tc.keywords)
		if got < tc.want-0.01 || got > tc.want+0.01 {
			t.Fatalf("KeywordScore(%q) = %v, want %v", tc.response, got, tc.want)
		}
	}
}

func TestEvaluateWithJudge(t *testing.T) {
	judge := cannedProvider{reply: "Solid answer. SCORE: 90/100"}
	e := NewEngine(judge, nil, nil)

	report, err := e.Evaluate(context.Background(), candidate("The compounds are soft, medium and hard; parc ferme freezes setup from qualifying."), 3)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if report.Average != 90 {
		t.Fatalf("expected average 90 got %v", report.Average)
	}
	if !report.Admitted {
		t.Fatal("90 should clear the tier-3 threshold of 50")
	}
	for _, a := range report.Answers {
		if a.Method != "judge" {
			t.Fatalf("expected judge scoring got %q", a.Method)
		}
	}
}

func TestEvaluateFallsBackToKeywords(t *testing.T) {
	judge := cannedProvider{err: errors.New("judge offline")}
	e := NewEngine(judge, nil, nil)

	report, err := e.Evaluate(context.Background(), candidate("mentions soft medium hard and the qualifying setup freeze"), 3)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for _, a := range report.Answers {
		if a.Method != "keywords" {
			t.Fatalf("expected keyword fallback got %q", a.Method)
		}
	}
	if report.Average <= 0 {
		t.Fatalf("keyword fallback should score the matching answer, got %v", report.Average)
	}
}

func TestEvaluateUnknownTier(t *testing.T) {
	e := NewEngine(nil, nil, nil)
	if _, err := e.Evaluate(context.Background(), candidate("x"), 9); err == nil {
		t.Fatal("expected error for missing question bank")
	}
}
