package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Prediction is an agent's forward-looking claim extracted from a debate,
// scored later once the outcome is known.
type Prediction struct {
	ID         string     `json:"id"`
	AgentID    string     `json:"agent_id"`
	DebateID   *string    `json:"debate_id,omitempty"`
	Claim      string     `json:"claim"`
	Category   string     `json:"category"`
	Confidence float64    `json:"confidence"`
	Outcome    *bool      `json:"outcome,omitempty"`
	Score      *float64   `json:"score,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ScoredAt   *time.Time `json:"scored_at,omitempty"`
}

// EvaluationResult is one scored agent response from the evaluation engine.
type EvaluationResult struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	Question  string    `json:"question"`
	Response  string    `json:"response"`
	Score     float64   `json:"score"`
	Method    string    `json:"method"`
	CreatedAt time.Time `json:"created_at"`
}

// CreatePrediction records a new unscored prediction.
func (s *Store) CreatePrediction(ctx context.Context, p Prediction) (Prediction, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO predictions (id, agent_id, debate_id, claim, category, confidence, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.AgentID, p.DebateID, p.Claim, p.Category, p.Confidence, p.CreatedAt)
	if err != nil {
		return Prediction{}, fmt.Errorf("failed to create prediction: %w", err)
	}
	return p, nil
}

// ScorePrediction records the outcome and score for a prediction.
func (s *Store) ScorePrediction(ctx context.Context, id string, outcome bool, score float64) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE predictions SET outcome = $1, score = $2, scored_at = NOW() WHERE id = $3 AND scored_at IS NULL`,
		outcome, score, id)
	if err != nil {
		return fmt.Errorf("failed to score prediction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("prediction %s already scored or missing", id)
	}
	return nil
}

// ListUnscoredPredictions returns predictions awaiting an outcome, oldest
// first so long-open claims settle before fresh ones.
func (s *Store) ListUnscoredPredictions(ctx context.Context, limit int) ([]Prediction, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, agent_id, debate_id, claim, category, confidence, outcome, score, created_at, scored_at
		 FROM predictions WHERE scored_at IS NULL ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Prediction
	for rows.Next() {
		var p Prediction
		if err := rows.Scan(&p.ID, &p.AgentID, &p.DebateID, &p.Claim, &p.Category, &p.Confidence,
			&p.Outcome, &p.Score, &p.CreatedAt, &p.ScoredAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPredictionsByAgent returns an agent's predictions, newest first.
func (s *Store) ListPredictionsByAgent(ctx context.Context, agentID string, limit int) ([]Prediction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, agent_id, debate_id, claim, category, confidence, outcome, score, created_at, scored_at
		 FROM predictions WHERE agent_id = $1 ORDER BY created_at DESC LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Prediction
	for rows.Next() {
		var p Prediction
		if err := rows.Scan(&p.ID, &p.AgentID, &p.DebateID, &p.Claim, &p.Category,
			&p.Confidence, &p.Outcome, &p.Score, &p.CreatedAt, &p.ScoredAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LeaderboardEntry aggregates an agent's standing across debates, theories
// and scored predictions.
type LeaderboardEntry struct {
	AgentID          string  `json:"agent_id"`
	AgentName        string  `json:"agent_name"`
	Wins             int     `json:"wins"`
	ValidatedCount   int     `json:"validated_count"`
	PredictionScore  float64 `json:"prediction_score"`
	PredictionsMade  int     `json:"predictions_made"`
}

// Leaderboard ranks agents by debate wins, then validated theories, then
// cumulative prediction score.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT a.id, a.name, a.wins,
		        COALESCE(t.validated, 0),
		        COALESCE(p.total_score, 0),
		        COALESCE(p.n, 0)
		 FROM agents a
		 LEFT JOIN (SELECT agent_id, COUNT(*) AS validated FROM theories WHERE status = 'validated' GROUP BY agent_id) t ON t.agent_id = a.id
		 LEFT JOIN (SELECT agent_id, SUM(score) AS total_score, COUNT(*) AS n FROM predictions WHERE score IS NOT NULL GROUP BY agent_id) p ON p.agent_id = a.id
		 WHERE a.status = 'active'
		 ORDER BY a.wins DESC, COALESCE(t.validated, 0) DESC, COALESCE(p.total_score, 0) DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.AgentID, &e.AgentName, &e.Wins, &e.ValidatedCount, &e.PredictionScore, &e.PredictionsMade); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CreateEvaluationResult stores one scored evaluation answer.
func (s *Store) CreateEvaluationResult(ctx context.Context, r EvaluationResult) (EvaluationResult, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO evaluation_results (id, agent_id, question, response, score, method, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.AgentID, r.Question, r.Response, r.Score, r.Method, r.CreatedAt)
	if err != nil {
		return EvaluationResult{}, fmt.Errorf("failed to create evaluation result: %w", err)
	}
	return r, nil
}

// ListEvaluationResults returns an agent's evaluation history, newest first.
func (s *Store) ListEvaluationResults(ctx context.Context, agentID string, limit int) ([]EvaluationResult, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, agent_id, question, response, score, method, created_at
		 FROM evaluation_results WHERE agent_id = $1 ORDER BY created_at DESC LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EvaluationResult
	for rows.Next() {
		var r EvaluationResult
		if err := rows.Scan(&r.ID, &r.AgentID, &r.Question, &r.Response, &r.Score, &r.Method, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats is the platform-wide activity snapshot served by the observer API.
type Stats struct {
	Agents            int            `json:"agents"`
	DebatesRun        int            `json:"debates_run"`
	ActiveDebates     int            `json:"active_debates"`
	Facts             int            `json:"facts"`
	TheoriesByStatus  map[string]int `json:"theories_by_status"`
	UnprocessedNews   int            `json:"unprocessed_news"`
}

// PlatformStats gathers the counters in one call.
func (s *Store) PlatformStats(ctx context.Context) (Stats, error) {
	var st Stats
	var err error
	if st.Agents, err = s.CountAgentsByTier(ctx, 0); err != nil {
		return st, err
	}
	if st.DebatesRun, err = s.CountDebates(ctx, DebateStatusCompleted); err != nil {
		return st, err
	}
	if st.ActiveDebates, err = s.CountDebates(ctx, DebateStatusActive); err != nil {
		return st, err
	}
	if st.Facts, err = s.CountFacts(ctx); err != nil {
		return st, err
	}
	if st.TheoriesByStatus, err = s.CountTheoriesByStatus(ctx); err != nil {
		return st, err
	}
	err = s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM news_events WHERE processed = FALSE`).Scan(&st.UnprocessedNews)
	return st, err
}
