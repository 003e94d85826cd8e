package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// DebateSession is one multi-round debate. The participant set is fixed at
// creation; the session completes exactly once, with verdict and summary.
type DebateSession struct {
	ID                string         `json:"id"`
	Topic             string         `json:"topic"`
	Domain            string         `json:"domain"`
	ParticipantIDs    []string       `json:"participant_ids"`
	Status            string         `json:"status"`
	Summary           string         `json:"summary,omitempty"`
	Verdict           string         `json:"verdict,omitempty"`
	VerdictConfidence float64        `json:"verdict_confidence,omitempty"`
	AgentScores       map[string]int `json:"agent_scores,omitempty"`
	NewsEventID       *string        `json:"news_event_id,omitempty"`
	StartedAt         time.Time      `json:"started_at"`
	EndedAt           *time.Time     `json:"ended_at,omitempty"`
}

// DebateMessage is one agent turn within a session. Append-only.
type DebateMessage struct {
	ID        string    `json:"id"`
	DebateID  string    `json:"debate_id"`
	AgentID   string    `json:"agent_id"`
	Content   string    `json:"content"`
	MsgType   string    `json:"msg_type"`
	Round     int       `json:"round"`
	Timestamp time.Time `json:"timestamp"`
}

// CreateDebateSession inserts a new active session.
func (s *Store) CreateDebateSession(ctx context.Context, topic, domain string, participantIDs []string, newsEventID *string) (DebateSession, error) {
	sess := DebateSession{
		ID:             uuid.NewString(),
		Topic:          topic,
		Domain:         domain,
		ParticipantIDs: participantIDs,
		Status:         DebateStatusActive,
		NewsEventID:    newsEventID,
		StartedAt:      time.Now().UTC(),
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO debate_sessions (id, topic, domain, participant_ids, status, news_event_id, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sess.ID, sess.Topic, sess.Domain, pq.Array(sess.ParticipantIDs), sess.Status, sess.NewsEventID, sess.StartedAt)
	if err != nil {
		return DebateSession{}, fmt.Errorf("failed to create debate session: %w", err)
	}
	return sess, nil
}

// CompleteDebateSession closes a session with its verdict and summary. The
// active-status guard makes the transition happen at most once.
func (s *Store) CompleteDebateSession(ctx context.Context, id, summary, verdict string, confidence float64, scores map[string]int) error {
	scoresJSON, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("failed to marshal agent scores: %w", err)
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE debate_sessions
		 SET status = $1, summary = $2, verdict = $3, verdict_confidence = $4, agent_scores = $5, ended_at = NOW()
		 WHERE id = $6 AND status = $7`,
		DebateStatusCompleted, summary, verdict, confidence, scoresJSON, id, DebateStatusActive)
	if err != nil {
		return fmt.Errorf("failed to complete debate session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("debate session %s is not active", id)
	}
	return nil
}

func scanDebateSession(row interface{ Scan(...interface{}) error }) (DebateSession, error) {
	var d DebateSession
	var summary, verdict sql.NullString
	var confidence sql.NullFloat64
	var scoresJSON []byte
	err := row.Scan(&d.ID, &d.Topic, &d.Domain, pq.Array(&d.ParticipantIDs), &d.Status,
		&summary, &verdict, &confidence, &scoresJSON, &d.NewsEventID, &d.StartedAt, &d.EndedAt)
	if err != nil {
		return DebateSession{}, err
	}
	d.Summary = summary.String
	d.Verdict = verdict.String
	d.VerdictConfidence = confidence.Float64
	if len(scoresJSON) > 0 {
		_ = json.Unmarshal(scoresJSON, &d.AgentScores)
	}
	return d, nil
}

const debateColumns = `id, topic, domain, participant_ids, status, summary, verdict, verdict_confidence, agent_scores, news_event_id, started_at, ended_at`

// GetDebateSession fetches one session by id.
func (s *Store) GetDebateSession(ctx context.Context, id string) (DebateSession, error) {
	return scanDebateSession(s.DB.QueryRowContext(ctx,
		`SELECT `+debateColumns+` FROM debate_sessions WHERE id = $1`, id))
}

// ListDebateSessions returns the most recent sessions.
func (s *Store) ListDebateSessions(ctx context.Context, limit int) ([]DebateSession, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+debateColumns+` FROM debate_sessions ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DebateSession
	for rows.Next() {
		d, err := scanDebateSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountDebates returns the number of sessions, optionally filtered by status.
func (s *Store) CountDebates(ctx context.Context, status string) (int, error) {
	var n int
	var err error
	if status == "" {
		err = s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM debate_sessions`).Scan(&n)
	} else {
		err = s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM debate_sessions WHERE status = $1`, status).Scan(&n)
	}
	return n, err
}

// CreateDebateMessage appends one turn to a session's message log.
func (s *Store) CreateDebateMessage(ctx context.Context, m DebateMessage) (DebateMessage, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO debate_messages (id, debate_id, agent_id, content, msg_type, round_number, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.DebateID, m.AgentID, m.Content, m.MsgType, m.Round, m.Timestamp)
	if err != nil {
		return DebateMessage{}, fmt.Errorf("failed to create debate message: %w", err)
	}
	return m, nil
}

// ListDebateMessages returns a session's messages in chronological order.
func (s *Store) ListDebateMessages(ctx context.Context, debateID string) ([]DebateMessage, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, debate_id, agent_id, content, msg_type, round_number, created_at
		 FROM debate_messages WHERE debate_id = $1 ORDER BY created_at`, debateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DebateMessage
	for rows.Next() {
		var m DebateMessage
		if err := rows.Scan(&m.ID, &m.DebateID, &m.AgentID, &m.Content, &m.MsgType, &m.Round, &m.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
