package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Theory is an agent-submitted claim awaiting validation. Status moves
// pending -> validated | anomaly | rejected and never back.
type Theory struct {
	ID          string     `json:"id"`
	AgentID     string     `json:"agent_id"`
	DebateID    *string    `json:"debate_id,omitempty"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Confidence  float64    `json:"confidence"`
	Status      string     `json:"status"`
	ValidatedBy *string    `json:"validated_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
}

// KnowledgeFact is validated knowledge available to all agents. Lookup
// counters are tracked per tier of the querying agent.
type KnowledgeFact struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	Category       string    `json:"category"`
	Confidence     float64   `json:"confidence"`
	IsSeed         bool      `json:"is_seed"`
	SourceTheoryID *string   `json:"source_theory_id,omitempty"`
	ValidatedBy    *string   `json:"validated_by,omitempty"`
	T2Lookups      int       `json:"t2_lookups"`
	T3Lookups      int       `json:"t3_lookups"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateTheory records a new pending theory.
func (s *Store) CreateTheory(ctx context.Context, agentID string, debateID *string, title, content string, confidence float64) (Theory, error) {
	th := Theory{
		ID:         uuid.NewString(),
		AgentID:    agentID,
		DebateID:   debateID,
		Title:      title,
		Content:    content,
		Confidence: confidence,
		Status:     TheoryStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO theories (id, agent_id, debate_id, title, content, confidence, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		th.ID, th.AgentID, th.DebateID, th.Title, th.Content, th.Confidence, th.Status, th.CreatedAt)
	if err != nil {
		return Theory{}, fmt.Errorf("failed to create theory: %w", err)
	}
	return th, nil
}

const theoryColumns = `id, agent_id, debate_id, title, content, confidence, status, validated_by, created_at, validated_at`

func scanTheory(row interface{ Scan(...interface{}) error }) (Theory, error) {
	var t Theory
	err := row.Scan(&t.ID, &t.AgentID, &t.DebateID, &t.Title, &t.Content,
		&t.Confidence, &t.Status, &t.ValidatedBy, &t.CreatedAt, &t.ValidatedAt)
	return t, err
}

// GetTheory fetches one theory by id.
func (s *Store) GetTheory(ctx context.Context, id string) (Theory, error) {
	return scanTheory(s.DB.QueryRowContext(ctx,
		`SELECT `+theoryColumns+` FROM theories WHERE id = $1`, id))
}

// ListPendingTheories returns the oldest pending theories first, so the
// validation backlog drains in submission order.
func (s *Store) ListPendingTheories(ctx context.Context, limit int) ([]Theory, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+theoryColumns+` FROM theories WHERE status = $1 ORDER BY created_at LIMIT $2`,
		TheoryStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTheories(rows)
}

// ListTheoriesByStatus returns recent theories with the given status, or all
// statuses when status is empty.
func (s *Store) ListTheoriesByStatus(ctx context.Context, status string, limit int) ([]Theory, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.DB.QueryContext(ctx,
			`SELECT `+theoryColumns+` FROM theories ORDER BY created_at DESC LIMIT $1`, limit)
	} else {
		rows, err = s.DB.QueryContext(ctx,
			`SELECT `+theoryColumns+` FROM theories WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
			status, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTheories(rows)
}

func collectTheories(rows *sql.Rows) ([]Theory, error) {
	var out []Theory
	for rows.Next() {
		t, err := scanTheory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ResolveTheory moves a pending theory to a terminal status. Resolving an
// already-resolved theory is an error.
func (s *Store) ResolveTheory(ctx context.Context, id, status, validatorID string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE theories SET status = $1, validated_by = $2, validated_at = NOW()
		 WHERE id = $3 AND status = $4`,
		status, validatorID, id, TheoryStatusPending)
	if err != nil {
		return fmt.Errorf("failed to resolve theory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("theory %s is not pending", id)
	}
	return nil
}

// CountTheoriesByStatus returns counts keyed by status.
func (s *Store) CountTheoriesByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM theories GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

const factColumns = `id, content, category, confidence, is_seed, source_theory_id, validated_by, t2_lookups, t3_lookups, created_at`

// CreateFact inserts a knowledge fact.
func (s *Store) CreateFact(ctx context.Context, f KnowledgeFact) (KnowledgeFact, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO knowledge_facts (id, content, category, confidence, is_seed, source_theory_id, validated_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.Content, f.Category, f.Confidence, f.IsSeed, f.SourceTheoryID, f.ValidatedBy, f.CreatedAt)
	if err != nil {
		return KnowledgeFact{}, fmt.Errorf("failed to create fact: %w", err)
	}
	return f, nil
}

func scanFact(row interface{ Scan(...interface{}) error }) (KnowledgeFact, error) {
	var f KnowledgeFact
	err := row.Scan(&f.ID, &f.Content, &f.Category, &f.Confidence, &f.IsSeed,
		&f.SourceTheoryID, &f.ValidatedBy, &f.T2Lookups, &f.T3Lookups, &f.CreatedAt)
	return f, err
}

// ListFacts returns facts at or above the confidence floor, newest first.
func (s *Store) ListFacts(ctx context.Context, minConfidence float64, limit int) ([]KnowledgeFact, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+factColumns+` FROM knowledge_facts WHERE confidence >= $1 ORDER BY created_at DESC LIMIT $2`,
		minConfidence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFacts(rows)
}

// ListRecentFacts returns the newest facts regardless of confidence.
func (s *Store) ListRecentFacts(ctx context.Context, limit int) ([]KnowledgeFact, error) {
	return s.ListFacts(ctx, 0, limit)
}

func collectFacts(rows *sql.Rows) ([]KnowledgeFact, error) {
	var out []KnowledgeFact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// IncrementFactLookup bumps the tier-scoped lookup counter for a fact. Tiers
// other than 2 and 3 are not tracked.
func (s *Store) IncrementFactLookup(ctx context.Context, factID string, tier int) error {
	var col string
	switch tier {
	case 2:
		col = "t2_lookups"
	case 3:
		col = "t3_lookups"
	default:
		return nil
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE knowledge_facts SET `+col+` = `+col+` + 1 WHERE id = $1`, factID)
	if err != nil {
		return fmt.Errorf("failed to increment fact lookup: %w", err)
	}
	return nil
}

// CountFacts returns the total number of facts.
func (s *Store) CountFacts(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_facts`).Scan(&n)
	return n, err
}
