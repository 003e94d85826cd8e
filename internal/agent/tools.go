package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/paddockai/apex/internal/llm"
)

// ToolKind enumerates every tool an agent may invoke. The set is closed;
// unknown names get a structured error result instead of a dispatch.
type ToolKind string

const (
	ToolSearchKnowledge ToolKind = "search_knowledge_base"
	ToolCiteFact        ToolKind = "cite_fact"
	ToolSubmitTheory    ToolKind = "submit_theory"
	ToolValidateTheory  ToolKind = "validate_theory"
)

// FactHit is one knowledge base result handed back to an agent.
type FactHit struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Knowledge is the read surface the dispatcher exposes to agents. Search and
// Cite record lookups against the querying agent's tier.
type Knowledge interface {
	Search(ctx context.Context, query string, minConfidence float64, tier, limit int) ([]FactHit, error)
	Cite(ctx context.Context, factID string, tier int) (FactHit, error)
}

// TheorySubmission is a submit_theory call captured during a turn. The
// dispatcher only records it; persistence happens in the orchestrator.
type TheorySubmission struct {
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
}

// TheoryVerdict is a validate_theory call captured during a validator turn.
type TheoryVerdict struct {
	TheoryID  string `json:"theory_id"`
	Verdict   string `json:"verdict"`
	Reasoning string `json:"reasoning"`
}

// Collector receives tool calls with side effects so the caller can apply
// them after the turn completes. Either field may be nil.
type Collector struct {
	OnTheory  func(TheorySubmission)
	OnVerdict func(TheoryVerdict)
}

// Dispatcher translates tool calls into JSON result strings. It is stateless;
// mutations are routed through the per-turn Collector.
type Dispatcher struct {
	knowledge Knowledge
	logger    *log.Logger
}

// NewDispatcher wires a dispatcher over the knowledge read surface.
func NewDispatcher(k Knowledge, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{knowledge: k, logger: logger}
}

// Dispatch executes one tool call on behalf of the calling persona and
// returns the result as a JSON string. Malformed argument JSON is treated as
// an empty argument object; the turn never aborts on a bad tool call.
func (d *Dispatcher) Dispatch(ctx context.Context, caller Persona, call llm.ToolCall, collect *Collector) string {
	args := map[string]interface{}{}
	if len(call.Input) > 0 {
		if err := json.Unmarshal(call.Input, &args); err != nil {
			d.logger.Printf("[TOOLS] %s sent malformed args for %s, using empty object", caller.Name, call.Name)
			args = map[string]interface{}{}
		}
	}

	switch ToolKind(call.Name) {
	case ToolSearchKnowledge:
		return d.searchKnowledge(ctx, caller, args)
	case ToolCiteFact:
		return d.citeFact(ctx, caller, args)
	case ToolSubmitTheory:
		return d.submitTheory(caller, args, collect)
	case ToolValidateTheory:
		return d.validateTheory(args, collect)
	default:
		return errorResult(fmt.Sprintf("unknown tool: %s", call.Name))
	}
}

func (d *Dispatcher) searchKnowledge(ctx context.Context, caller Persona, args map[string]interface{}) string {
	query, _ := args["query"].(string)
	if query == "" {
		return errorResult("search_knowledge_base requires a query")
	}
	minConfidence, _ := args["min_confidence"].(float64)
	hits, err := d.knowledge.Search(ctx, query, minConfidence, caller.Tier, 5)
	if err != nil {
		return errorResult(fmt.Sprintf("search failed: %v", err))
	}
	out, _ := json.Marshal(map[string]interface{}{"results": hits, "count": len(hits)})
	return string(out)
}

func (d *Dispatcher) citeFact(ctx context.Context, caller Persona, args map[string]interface{}) string {
	factID, _ := args["fact_id"].(string)
	if factID == "" {
		return errorResult("cite_fact requires a fact_id")
	}
	hit, err := d.knowledge.Cite(ctx, factID, caller.Tier)
	if err != nil {
		return errorResult(fmt.Sprintf("fact %s not found", factID))
	}
	out, _ := json.Marshal(hit)
	return string(out)
}

func (d *Dispatcher) submitTheory(caller Persona, args map[string]interface{}, collect *Collector) string {
	title, _ := args["title"].(string)
	content, _ := args["content"].(string)
	confidence, _ := args["confidence"].(float64)
	if title == "" || content == "" {
		return errorResult("submit_theory requires title and content")
	}
	if confidence <= 0 || confidence > 1 {
		confidence = 0.5
	}
	if collect != nil && collect.OnTheory != nil {
		collect.OnTheory(TheorySubmission{Title: title, Content: content, Confidence: confidence})
	}
	out, _ := json.Marshal(map[string]interface{}{
		"status": "submitted",
		"title":  title,
		"by":     caller.Name,
	})
	return string(out)
}

func (d *Dispatcher) validateTheory(args map[string]interface{}, collect *Collector) string {
	theoryID, _ := args["theory_id"].(string)
	verdict, _ := args["verdict"].(string)
	reasoning, _ := args["reasoning"].(string)
	if theoryID == "" || verdict == "" {
		return errorResult("validate_theory requires theory_id and verdict")
	}
	if collect != nil && collect.OnVerdict != nil {
		collect.OnVerdict(TheoryVerdict{TheoryID: theoryID, Verdict: verdict, Reasoning: reasoning})
	}
	out, _ := json.Marshal(map[string]interface{}{
		"status":    "recorded",
		"theory_id": theoryID,
		"verdict":   verdict,
	})
	return string(out)
}

func errorResult(msg string) string {
	out, _ := json.Marshal(map[string]string{"error": msg})
	return string(out)
}
