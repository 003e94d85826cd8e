package agent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/paddockai/apex/internal/llm"
)

// scriptedProvider replays a fixed sequence of turns, streaming each turn's
// text through onFragment before returning it.
type scriptedProvider struct {
	turns    []llm.Turn
	requests []llm.Request
}

func (p *scriptedProvider) Generate(ctx context.Context, req llm.Request, onFragment func(string)) (llm.Turn, error) {
	p.requests = append(p.requests, req)
	if len(p.turns) == 0 {
		return llm.Turn{Text: "exhausted", StopReason: "end_turn"}, nil
	}
	turn := p.turns[0]
	p.turns = p.turns[1:]
	if onFragment != nil && turn.Text != "" {
		onFragment(turn.Text)
	}
	return turn, nil
}

type fakeKnowledge struct {
	hits          []FactHit
	cited         []string
	searchedFloor float64
	searchedTier  int
}

func (f *fakeKnowledge) Search(ctx context.Context, query string, minConfidence float64, tier, limit int) ([]FactHit, error) {
	f.searchedFloor = minConfidence
	f.searchedTier = tier
	return f.hits, nil
}

func (f *fakeKnowledge) Cite(ctx context.Context, factID string, tier int) (FactHit, error) {
	f.cited = append(f.cited, factID)
	for _, h := range f.hits {
		if h.ID == factID {
			return h, nil
		}
	}
	return FactHit{}, context.Canceled
}

func toolUseTurn(id, name, input string) llm.Turn {
	return llm.Turn{
		StopReason: "tool_use",
		ToolCalls:  []llm.ToolCall{{ID: id, Name: name, Input: json.RawMessage(input)}},
		Content:    []llm.ContentBlock{{Type: "tool_use", ID: id, Name: name, Input: json.RawMessage(input)}},
	}
}

func newTestAgent(p *scriptedProvider, tier int) (*Agent, *fakeKnowledge) {
	k := &fakeKnowledge{hits: []FactHit{{ID: "fact-1", Content: "DRS opens at 0.8s gap", Category: "technical", Confidence: 0.9}}}
	persona := Persona{ID: "a1", Name: "Oracle", Tier: tier, SystemPrompt: "You debate."}
	return New(persona, p, NewDispatcher(k, nil), 0, nil), k
}

func TestRespondStreamsAndResolvesTools(t *testing.T) {
	provider := &scriptedProvider{turns: []llm.Turn{
		toolUseTurn("t1", "search_knowledge_base", `{"query":"DRS"}`),
		{Text: "The gap rule is documented.", StopReason: "end_turn"},
	}}
	a, _ := newTestAgent(provider, 1)

	text, err := a.RespondFull(context.Background(), []llm.Message{llm.TextMessage(llm.RoleUser, "Explain DRS")}, "", nil)
	if err != nil {
		t.Fatalf("RespondFull: %v", err)
	}
	if text != "The gap rule is documented." {
		t.Fatalf("unexpected text: %q", text)
	}

	// the second request must carry the assistant tool_use turn and a
	// tool_result user turn appended to the original history
	if len(provider.requests) != 2 {
		t.Fatalf("expected 2 generate calls got %d", len(provider.requests))
	}
	second := provider.requests[1]
	if len(second.Messages) != 3 {
		t.Fatalf("expected 3 messages on second call got %d", len(second.Messages))
	}
	result := second.Messages[2].Content[0]
	if result.Type != "tool_result" || result.ToolUseID != "t1" {
		t.Fatalf("unexpected tool result block: %+v", result)
	}
	if !strings.Contains(result.Content, "DRS opens") {
		t.Fatalf("tool result missing search hit: %q", result.Content)
	}
}

func TestRespondCapsToolIterations(t *testing.T) {
	var turns []llm.Turn
	for i := 0; i < 10; i++ {
		turns = append(turns, toolUseTurn("t", "search_knowledge_base", `{"query":"loop"}`))
	}
	provider := &scriptedProvider{turns: turns}
	a, _ := newTestAgent(provider, 1)

	if _, err := a.RespondFull(context.Background(), nil, "", nil); err != nil {
		t.Fatalf("RespondFull: %v", err)
	}
	if len(provider.requests) != DefaultMaxToolIterations {
		t.Fatalf("expected %d generate calls got %d", DefaultMaxToolIterations, len(provider.requests))
	}
}

func TestMalformedToolArgsDoNotAbortTurn(t *testing.T) {
	provider := &scriptedProvider{turns: []llm.Turn{
		toolUseTurn("t1", "search_knowledge_base", `{not json`),
		{Text: "Recovered.", StopReason: "end_turn"},
	}}
	a, _ := newTestAgent(provider, 1)

	text, err := a.RespondFull(context.Background(), nil, "", nil)
	if err != nil {
		t.Fatalf("RespondFull: %v", err)
	}
	if text != "Recovered." {
		t.Fatalf("unexpected text: %q", text)
	}
	// malformed args degrade to an empty object, so the search tool reports
	// the missing query instead of failing the dispatch
	result := provider.requests[1].Messages[1].Content[0]
	if !strings.Contains(result.Content, "requires a query") {
		t.Fatalf("unexpected tool result: %q", result.Content)
	}
}

func TestThinkingOnFirstTierOneIterationOnly(t *testing.T) {
	provider := &scriptedProvider{turns: []llm.Turn{
		toolUseTurn("t1", "cite_fact", `{"fact_id":"fact-1"}`),
		{Text: "done", StopReason: "end_turn"},
	}}
	a, _ := newTestAgent(provider, 1)

	if _, err := a.RespondFull(context.Background(), nil, "", nil); err != nil {
		t.Fatalf("RespondFull: %v", err)
	}
	if !provider.requests[0].Thinking {
		t.Fatal("first tier-1 iteration should request thinking")
	}
	if provider.requests[1].Thinking {
		t.Fatal("second iteration should not request thinking")
	}

	provider2 := &scriptedProvider{turns: []llm.Turn{{Text: "done", StopReason: "end_turn"}}}
	a2, _ := newTestAgent(provider2, 2)
	if _, err := a2.RespondFull(context.Background(), nil, "", nil); err != nil {
		t.Fatalf("RespondFull tier 2: %v", err)
	}
	if provider2.requests[0].Thinking {
		t.Fatal("tier-2 agents never request thinking")
	}
}

func TestSearchThreadsConfidenceFloorAndTier(t *testing.T) {
	k := &fakeKnowledge{hits: []FactHit{{ID: "fact-1", Content: "DRS opens at 0.8s gap", Confidence: 0.9}}}
	d := NewDispatcher(k, nil)

	out := d.Dispatch(context.Background(), Persona{Name: "Oracle", Tier: 2}, llm.ToolCall{
		Name:  "search_knowledge_base",
		Input: json.RawMessage(`{"query":"DRS","min_confidence":0.8}`),
	}, nil)
	if !strings.Contains(out, "fact-1") {
		t.Fatalf("expected hit in result, got %s", out)
	}
	if k.searchedFloor != 0.8 {
		t.Fatalf("min_confidence not forwarded, got %v", k.searchedFloor)
	}
	if k.searchedTier != 2 {
		t.Fatalf("caller tier not forwarded, got %d", k.searchedTier)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	d := NewDispatcher(&fakeKnowledge{}, nil)
	out := d.Dispatch(context.Background(), Persona{Name: "Oracle"}, llm.ToolCall{Name: "launch_rocket"}, nil)
	var parsed map[string]string
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if !strings.Contains(parsed["error"], "unknown tool") {
		t.Fatalf("unexpected result: %q", out)
	}
}

func TestSubmitTheoryRoutedToCollector(t *testing.T) {
	d := NewDispatcher(&fakeKnowledge{}, nil)
	var got []TheorySubmission
	collect := &Collector{OnTheory: func(ts TheorySubmission) { got = append(got, ts) }}

	out := d.Dispatch(context.Background(), Persona{Name: "Oracle", Tier: 1}, llm.ToolCall{
		Name:  "submit_theory",
		Input: json.RawMessage(`{"title":"Fuel trick","content":"Underfueling in Q3","confidence":0.7}`),
	}, collect)

	if !strings.Contains(out, `"submitted"`) {
		t.Fatalf("unexpected receipt: %q", out)
	}
	if len(got) != 1 || got[0].Title != "Fuel trick" || got[0].Confidence != 0.7 {
		t.Fatalf("collector missed submission: %+v", got)
	}
}

func TestSubmitTheoryClampsConfidence(t *testing.T) {
	d := NewDispatcher(&fakeKnowledge{}, nil)
	var got TheorySubmission
	collect := &Collector{OnTheory: func(ts TheorySubmission) { got = ts }}

	d.Dispatch(context.Background(), Persona{Tier: 1}, llm.ToolCall{
		Name:  "submit_theory",
		Input: json.RawMessage(`{"title":"T","content":"C","confidence":7.5}`),
	}, collect)

	if got.Confidence != 0.5 {
		t.Fatalf("out-of-range confidence should default to 0.5, got %v", got.Confidence)
	}
}

func TestCiteFactRegistersLookup(t *testing.T) {
	provider := &scriptedProvider{turns: []llm.Turn{
		toolUseTurn("t1", "cite_fact", `{"fact_id":"fact-1"}`),
		{Text: "cited", StopReason: "end_turn"},
	}}
	a, k := newTestAgent(provider, 3)

	if _, err := a.RespondFull(context.Background(), nil, "", nil); err != nil {
		t.Fatalf("RespondFull: %v", err)
	}
	if len(k.cited) != 1 || k.cited[0] != "fact-1" {
		t.Fatalf("expected one citation of fact-1, got %v", k.cited)
	}
}
