// Package evaluation scores candidate agents against the tier question
// banks and decides admission.
package evaluation

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/paddockai/apex/internal/agent"
	"github.com/paddockai/apex/internal/domain/f1"
	"github.com/paddockai/apex/internal/llm"
	"github.com/paddockai/apex/internal/store"
)

var scoreRe = regexp.MustCompile(`SCORE:\s*(\d+)\s*/\s*100`)

// Report is the outcome of one admission evaluation.
type Report struct {
	AgentName string         `json:"agent_name"`
	Tier      int            `json:"tier"`
	Average   float64        `json:"average"`
	Threshold float64        `json:"threshold"`
	Admitted  bool           `json:"admitted"`
	Answers   []ScoredAnswer `json:"answers"`
}

// ScoredAnswer is one question, the candidate's answer and its score.
type ScoredAnswer struct {
	Question string  `json:"question"`
	Response string  `json:"response"`
	Score    float64 `json:"score"`
	Method   string  `json:"method"`
}

// Engine runs evaluations. The judge provider grades answers; when it fails,
// keyword coverage scoring takes over so evaluations always complete.
type Engine struct {
	judge  llm.Provider
	store  *store.Store
	logger *log.Logger
}

// NewEngine builds an evaluation engine. judge may be nil to force keyword
// scoring.
func NewEngine(judge llm.Provider, st *store.Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{judge: judge, store: st, logger: logger}
}

// Evaluate runs the candidate through its tier's question bank and compares
// the average score with the tier threshold.
func (e *Engine) Evaluate(ctx context.Context, candidate *agent.Agent, tier int) (Report, error) {
	bank, ok := f1.QuestionBanks[tier]
	if !ok || len(bank) == 0 {
		return Report{}, fmt.Errorf("no question bank for tier %d", tier)
	}
	threshold := f1.TierThresholds[tier]

	report := Report{AgentName: candidate.Persona.Name, Tier: tier, Threshold: threshold}
	total := 0.0
	for _, q := range bank {
		response, err := candidate.RespondFull(ctx, []llm.Message{llm.TextMessage(llm.RoleUser, q.Question)}, "", nil)
		if err != nil {
			return Report{}, fmt.Errorf("candidate failed question %q: %w", q.Question, err)
		}
		score, method := e.scoreAnswer(ctx, q, response)
		total += score
		report.Answers = append(report.Answers, ScoredAnswer{Question: q.Question, Response: response, Score: score, Method: method})

		if e.store != nil {
			if _, err := e.store.CreateEvaluationResult(ctx, store.EvaluationResult{
				AgentID:  candidate.Persona.ID,
				Question: q.Question,
				Response: response,
				Score:    score,
				Method:   method,
			}); err != nil {
				e.logger.Printf("[EVAL] failed to persist result for %s: %v", candidate.Persona.Name, err)
			}
		}
	}

	report.Average = total / float64(len(bank))
	report.Admitted = report.Average >= threshold
	e.logger.Printf("[EVAL] %s tier %d: %.1f (threshold %.0f, admitted=%v)",
		candidate.Persona.Name, tier, report.Average, threshold, report.Admitted)
	return report, nil
}

// scoreAnswer grades one answer with the judge model, falling back to
// keyword coverage.
func (e *Engine) scoreAnswer(ctx context.Context, q f1.EvalQuestion, response string) (float64, string) {
	if e.judge != nil {
		prompt := fmt.Sprintf(
			"Grade this answer to a Formula 1 knowledge question from 0 to 100 for accuracy and depth. End with a line of the exact form 'SCORE: <0-100>/100'.\n\nQUESTION: %s\n\nANSWER: %s",
			q.Question, response)
		turn, err := e.judge.Generate(ctx, llm.Request{Messages: []llm.Message{llm.TextMessage(llm.RoleUser, prompt)}}, nil)
		if err == nil {
			if m := scoreRe.FindStringSubmatch(turn.Text); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil && n >= 0 && n <= 100 {
					return float64(n), "judge"
				}
			}
		} else {
			e.logger.Printf("[EVAL] judge failed, using keyword scoring: %v", err)
		}
	}
	return KeywordScore(response, q.Keywords), "keywords"
}

// KeywordScore is the proportion of expected keywords the answer mentions,
// scaled to 0-100. Matching is case-insensitive.
func KeywordScore(response string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	lower := strings.ToLower(response)
	matched := 0
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched++
		}
	}
	return 100 * float64(matched) / float64(len(keywords))
}
