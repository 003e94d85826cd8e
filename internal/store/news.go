package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewsEvent is an ingested headline that can seed a debate topic. Processed
// events are never picked again.
type NewsEvent struct {
	ID        string    `json:"id"`
	Headline  string    `json:"headline"`
	Body      string    `json:"body,omitempty"`
	Source    string    `json:"source,omitempty"`
	URL       string    `json:"url,omitempty"`
	Category  string    `json:"category,omitempty"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateNewsEvent inserts one event.
func (s *Store) CreateNewsEvent(ctx context.Context, e NewsEvent) (NewsEvent, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO news_events (id, headline, body, source, url, category, processed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.Headline, e.Body, e.Source, e.URL, e.Category, e.Processed, e.CreatedAt)
	if err != nil {
		return NewsEvent{}, fmt.Errorf("failed to create news event: %w", err)
	}
	return e, nil
}

const newsColumns = `id, headline, body, source, url, category, processed, created_at`

func collectNews(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]NewsEvent, error) {
	var out []NewsEvent
	for rows.Next() {
		var e NewsEvent
		if err := rows.Scan(&e.ID, &e.Headline, &e.Body, &e.Source, &e.URL, &e.Category, &e.Processed, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListUnprocessedNews returns unprocessed events, oldest first.
func (s *Store) ListUnprocessedNews(ctx context.Context, limit int) ([]NewsEvent, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+newsColumns+` FROM news_events WHERE processed = FALSE ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNews(rows)
}

// ListRecentNews returns the newest events regardless of processed state.
func (s *Store) ListRecentNews(ctx context.Context, limit int) ([]NewsEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+newsColumns+` FROM news_events ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNews(rows)
}

// MarkNewsProcessed flags an event as consumed.
func (s *Store) MarkNewsProcessed(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE news_events SET processed = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark news processed: %w", err)
	}
	return nil
}
