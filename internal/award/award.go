// Package award tracks predictions and the season standings that decide the
// Apex Award.
package award

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/paddockai/apex/internal/agent"
	"github.com/paddockai/apex/internal/llm"
	"github.com/paddockai/apex/internal/store"
)

// predictionRe matches explicit prediction lines in debate conclusions, e.g.
// "PREDICTION: Norris wins at Zandvoort".
var predictionRe = regexp.MustCompile(`(?m)^PREDICTION:\s*(.+)$`)

// Service manages predictions and the leaderboard.
type Service struct {
	store  *store.Store
	logger *log.Logger
}

// NewService builds an award service.
func NewService(st *store.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: st, logger: logger}
}

// ExtractPredictions records every PREDICTION line in a debate message as an
// unscored prediction for the authoring agent.
func (s *Service) ExtractPredictions(ctx context.Context, agentID, debateID, category, text string, confidence float64) int {
	matches := predictionRe.FindAllStringSubmatch(text, -1)
	recorded := 0
	for _, m := range matches {
		if _, err := s.store.CreatePrediction(ctx, store.Prediction{
			AgentID:    agentID,
			DebateID:   &debateID,
			Claim:      m[1],
			Category:   category,
			Confidence: confidence,
		}); err != nil {
			s.logger.Printf("[AWARD] failed to record prediction: %v", err)
			continue
		}
		recorded++
	}
	return recorded
}

// Settle scores a prediction once its outcome is known. Correct predictions
// earn their stated confidence; wrong ones lose it.
func (s *Service) Settle(ctx context.Context, predictionID string, correct bool) error {
	score := 0.0
	preds, err := s.findPrediction(ctx, predictionID)
	if err != nil {
		return err
	}
	if correct {
		score = preds.Confidence
	} else {
		score = -preds.Confidence
	}
	return s.store.ScorePrediction(ctx, predictionID, correct, score)
}

// predictionVerdict is the JSON shape the judge is asked to answer with.
type predictionVerdict struct {
	Resolved bool   `json:"resolved"`
	Correct  bool   `json:"correct"`
	Reason   string `json:"reason"`
}

// ValidateAgainstNews asks the judge agent to settle open predictions using
// recent news. A response whose JSON cannot be parsed, or that reports the
// outcome as still unknown, leaves the prediction open. Returns how many
// predictions were settled.
func (s *Service) ValidateAgainstNews(ctx context.Context, judge *agent.Agent, newsContext string, limit int) int {
	if strings.TrimSpace(newsContext) == "" {
		return 0
	}
	preds, err := s.store.ListUnscoredPredictions(ctx, limit)
	if err != nil {
		s.logger.Printf("[AWARD] failed to list open predictions: %v", err)
		return 0
	}
	settled := 0
	for _, p := range preds {
		prompt := fmt.Sprintf(
			"PREDICTION UNDER REVIEW\nClaim: %s\n\nRECENT NEWS\n%s\n\nDid the news resolve this prediction? Answer with only a JSON object: {\"resolved\": bool, \"correct\": bool, \"reason\": string}. Use resolved=false when the news does not settle the claim either way.",
			p.Claim, newsContext)
		response, err := judge.RespondFull(ctx, []llm.Message{llm.TextMessage(llm.RoleUser, prompt)}, "", nil)
		if err != nil {
			s.logger.Printf("[AWARD] judge turn failed for prediction %s: %v", p.ID, err)
			continue
		}
		verdict, ok := parseVerdict(response)
		if !ok || !verdict.Resolved {
			continue
		}
		if err := s.Settle(ctx, p.ID, verdict.Correct); err != nil {
			s.logger.Printf("[AWARD] failed to settle prediction %s: %v", p.ID, err)
			continue
		}
		s.logger.Printf("[AWARD] prediction %s settled correct=%v: %s", p.ID, verdict.Correct, verdict.Reason)
		settled++
	}
	return settled
}

// parseVerdict extracts the first JSON object from a judge response.
func parseVerdict(response string) (predictionVerdict, bool) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return predictionVerdict{}, false
	}
	var v predictionVerdict
	if err := json.Unmarshal([]byte(response[start:end+1]), &v); err != nil {
		return predictionVerdict{}, false
	}
	return v, true
}

func (s *Service) findPrediction(ctx context.Context, id string) (store.Prediction, error) {
	var p store.Prediction
	err := s.store.DB.QueryRowContext(ctx,
		`SELECT id, agent_id, confidence FROM predictions WHERE id = $1`, id).
		Scan(&p.ID, &p.AgentID, &p.Confidence)
	if err != nil {
		return store.Prediction{}, fmt.Errorf("prediction %s not found: %w", id, err)
	}
	return p, nil
}

// Leaderboard returns the current standings.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]store.LeaderboardEntry, error) {
	return s.store.Leaderboard(ctx, limit)
}

// Winner returns the current Apex Award holder: the agent leading the
// standings by debate wins, validated theories, then prediction score.
func (s *Service) Winner(ctx context.Context) (store.LeaderboardEntry, error) {
	entries, err := s.store.Leaderboard(ctx, 1)
	if err != nil {
		return store.LeaderboardEntry{}, err
	}
	if len(entries) == 0 {
		return store.LeaderboardEntry{}, fmt.Errorf("no agents on the leaderboard")
	}
	return entries[0], nil
}
