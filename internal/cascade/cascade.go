// Package cascade promotes debate theories into shared knowledge: a
// validator agent reviews each pending theory, and validated ones become
// searchable facts at discounted confidence.
package cascade

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/paddockai/apex/internal/agent"
	"github.com/paddockai/apex/internal/broadcast"
	"github.com/paddockai/apex/internal/knowledge"
	"github.com/paddockai/apex/internal/llm"
	"github.com/paddockai/apex/internal/store"
	"github.com/paddockai/apex/internal/telemetry"
)

// promotion discount applied to a validated theory's confidence, capped so
// cascaded facts never reach certainty.
const (
	confidenceDiscount = 0.95
	confidenceCap      = 0.95
)

// anomalyScanWindow is how many recent facts the anomaly agent reviews.
const anomalyScanWindow = 20

// Cascade wires the validator and anomaly agents to the store and the
// knowledge base.
type Cascade struct {
	store     *store.Store
	knowledge *knowledge.Base
	validator *agent.Agent
	anomaly   *agent.Agent
	broadcast *broadcast.Registry
	logger    *log.Logger
}

// New builds a cascade. The anomaly agent may be nil; AnomalyScan then
// reports nothing.
func New(st *store.Store, kb *knowledge.Base, validator, anomaly *agent.Agent, bc *broadcast.Registry, logger *log.Logger) *Cascade {
	if logger == nil {
		logger = log.Default()
	}
	return &Cascade{store: st, knowledge: kb, validator: validator, anomaly: anomaly, broadcast: bc, logger: logger}
}

// ValidateTheory runs the validator agent over one pending theory and applies
// its verdict. A validated theory yields exactly one knowledge fact with
// confidence min(theory confidence x 0.95, 0.95). An unclassifiable response
// leaves the theory pending.
func (c *Cascade) ValidateTheory(ctx context.Context, theory store.Theory) (string, error) {
	prompt := fmt.Sprintf(
		"THEORY UNDER REVIEW\nTitle: %s\nClaimed confidence: %.2f\n\n%s\n\nSearch the knowledge base for supporting or contradicting facts, then classify this theory. Answer with exactly one of: VALIDATED, ANOMALY, or REJECTED, followed by one sentence of reasoning.",
		theory.Title, theory.Confidence, theory.Content)

	response, err := c.validator.RespondFull(ctx, []llm.Message{llm.TextMessage(llm.RoleUser, prompt)}, "", nil)
	if err != nil {
		return "", fmt.Errorf("validator turn failed: %w", err)
	}

	verdict := ClassifyVerdict(response)
	if verdict == store.TheoryStatusPending {
		c.logger.Printf("[CASCADE] theory %s left pending, unclassifiable response", theory.ID)
		return store.TheoryStatusPending, nil
	}

	if err := c.store.ResolveTheory(ctx, theory.ID, verdict, c.validator.Persona.ID); err != nil {
		return "", err
	}
	telemetry.TheoriesTotal.WithLabelValues(verdict).Inc()

	if verdict == store.TheoryStatusValidated {
		confidence := theory.Confidence * confidenceDiscount
		if confidence > confidenceCap {
			confidence = confidenceCap
		}
		category := "general"
		if theory.DebateID != nil {
			if sess, err := c.store.GetDebateSession(ctx, *theory.DebateID); err == nil && sess.Domain != "" {
				category = sess.Domain
			}
		}
		fact, err := c.knowledge.AddFact(ctx, store.KnowledgeFact{
			Content:        theory.Content,
			Category:       category,
			Confidence:     confidence,
			SourceTheoryID: &theory.ID,
			ValidatedBy:    &c.validator.Persona.ID,
		})
		if err != nil {
			return "", fmt.Errorf("failed to promote theory %s: %w", theory.ID, err)
		}
		c.logger.Printf("[CASCADE] theory %s promoted to fact %s (%.2f)", theory.ID, fact.ID, confidence)
	}

	c.publish(broadcast.Event{
		Type:    "theory_" + verdict,
		Agent:   c.validator.Persona.Name,
		Content: theory.Title,
	})
	return verdict, nil
}

// ClassifyVerdict maps a validator response to a theory status by
// case-insensitive substring. "Validated" wins unless the response also
// flags an anomaly; an unmatched response means no classification.
func ClassifyVerdict(response string) string {
	lower := strings.ToLower(response)
	hasAnomaly := strings.Contains(lower, "anomaly")
	switch {
	case strings.Contains(lower, "validated") && !hasAnomaly:
		return store.TheoryStatusValidated
	case hasAnomaly:
		return store.TheoryStatusAnomaly
	case strings.Contains(lower, "rejected"):
		return store.TheoryStatusRejected
	default:
		return store.TheoryStatusPending
	}
}

// ValidatePending drains up to limit pending theories, oldest first. Each
// failure is logged and skipped.
func (c *Cascade) ValidatePending(ctx context.Context, limit int) int {
	theories, err := c.store.ListPendingTheories(ctx, limit)
	if err != nil {
		c.logger.Printf("[CASCADE] failed to list pending theories: %v", err)
		return 0
	}
	resolved := 0
	for _, th := range theories {
		verdict, err := c.ValidateTheory(ctx, th)
		if err != nil {
			c.logger.Printf("[CASCADE] validation of %s failed: %v", th.ID, err)
			continue
		}
		if verdict != store.TheoryStatusPending {
			resolved++
		}
	}
	return resolved
}

// AnomalyScan asks the anomaly agent to review the most recent facts for
// contradictions. The report is advisory; agent failures are logged and an
// empty report returned.
func (c *Cascade) AnomalyScan(ctx context.Context) string {
	if c.anomaly == nil {
		return ""
	}
	facts, err := c.store.ListRecentFacts(ctx, anomalyScanWindow)
	if err != nil {
		c.logger.Printf("[CASCADE] anomaly scan could not load facts: %v", err)
		return ""
	}
	if len(facts) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Review the following knowledge facts for contradictions, duplicates or implausible claims. Report anything suspicious, or state that the set is consistent.\n\n")
	for _, f := range facts {
		fmt.Fprintf(&sb, "- [%s, %.2f] %s\n", f.Category, f.Confidence, f.Content)
	}

	report, err := c.anomaly.RespondFull(ctx, []llm.Message{llm.TextMessage(llm.RoleUser, sb.String())}, "", nil)
	if err != nil {
		c.logger.Printf("[CASCADE] anomaly scan failed: %v", err)
		return ""
	}
	c.publish(broadcast.Event{
		Type:    "anomaly_report",
		Agent:   c.anomaly.Persona.Name,
		Content: report,
	})
	return report
}

func (c *Cascade) publish(ev broadcast.Event) {
	if c.broadcast == nil {
		return
	}
	ev.Timestamp = time.Now().UTC()
	c.broadcast.Publish(ev)
}
