package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Agent statuses.
const (
	AgentStatusActive   = "active"
	AgentStatusPending  = "pending"
	AgentStatusRejected = "rejected"
)

// Debate session statuses.
const (
	DebateStatusActive    = "active"
	DebateStatusCompleted = "completed"
)

// Theory statuses. Transitions are monotonic: pending may move to exactly one
// of the terminal states and never back.
const (
	TheoryStatusPending   = "pending"
	TheoryStatusValidated = "validated"
	TheoryStatusAnomaly   = "anomaly"
	TheoryStatusRejected  = "rejected"
)

// Store wraps the Postgres connection for all platform records.
type Store struct {
	DB *sql.DB
}

// New creates a Store around an existing connection.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// NewWithDSN opens a Postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.DB.Close()
}

// ---- users (auth) ----

// CreateUser inserts a user with a bcrypt password hash.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES ($1, $2, $3, NOW())`,
		uuid.NewString(), email, passwordHash)
	return err
}

// GetUserByEmail returns the user id and password hash for login checks.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (string, string, error) {
	var id, hash string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE email = $1`, email).Scan(&id, &hash)
	if err != nil {
		return "", "", err
	}
	return id, hash, nil
}

// ---- agents ----

// Agent is a registered platform agent. Immutable after creation except the
// wins counter and status; agents are deactivated, never deleted.
type Agent struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Tier         int       `json:"tier"`
	Domain       string    `json:"domain"`
	Specialty    string    `json:"specialty"`
	ModelID      string    `json:"model_id"`
	SystemPrompt string    `json:"system_prompt"`
	Bio          string    `json:"bio"`
	Status       string    `json:"status"`
	Wins         int       `json:"wins"`
	CreatedAt    time.Time `json:"created_at"`
}

const agentColumns = `id, name, tier, domain, specialty, model_id, system_prompt, bio, status, wins, created_at`

func scanAgent(row interface{ Scan(...interface{}) error }) (Agent, error) {
	var a Agent
	err := row.Scan(&a.ID, &a.Name, &a.Tier, &a.Domain, &a.Specialty, &a.ModelID, &a.SystemPrompt, &a.Bio, &a.Status, &a.Wins, &a.CreatedAt)
	return a, err
}

// CreateAgent inserts an agent if its name is not already taken and returns
// the stored row.
func (s *Store) CreateAgent(ctx context.Context, a Agent) (Agent, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = AgentStatusActive
	}
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO agents (id, name, tier, domain, specialty, model_id, system_prompt, bio, status, wins, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, NOW())
		 RETURNING `+agentColumns,
		a.ID, a.Name, a.Tier, a.Domain, a.Specialty, a.ModelID, a.SystemPrompt, a.Bio, a.Status).
		Scan(&a.ID, &a.Name, &a.Tier, &a.Domain, &a.Specialty, &a.ModelID, &a.SystemPrompt, &a.Bio, &a.Status, &a.Wins, &a.CreatedAt)
	if err != nil {
		return Agent{}, fmt.Errorf("failed to create agent: %w", err)
	}
	return a, nil
}

// GetAgentByName fetches one agent by its unique name.
func (s *Store) GetAgentByName(ctx context.Context, name string) (Agent, error) {
	return scanAgent(s.DB.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE name = $1`, name))
}

// GetAgentByID fetches one agent by id.
func (s *Store) GetAgentByID(ctx context.Context, id string) (Agent, error) {
	return scanAgent(s.DB.QueryRowContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
}

// ListAgents returns all active agents ordered by tier then name.
func (s *Store) ListAgents(ctx context.Context) ([]Agent, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE status = $1 ORDER BY tier, name`, AgentStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListAgentsByTier returns active agents of the given tier ordered by name.
func (s *Store) ListAgentsByTier(ctx context.Context, tier int) ([]Agent, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE tier = $1 AND status = $2 ORDER BY name`, tier, AgentStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// IncrementAgentWins bumps the monotonic win counter.
func (s *Store) IncrementAgentWins(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE agents SET wins = wins + 1 WHERE id = $1`, id)
	return err
}

// CountAgentsByTier returns the number of active agents in a tier; tier 0
// counts all active agents.
func (s *Store) CountAgentsByTier(ctx context.Context, tier int) (int, error) {
	var n int
	var err error
	if tier == 0 {
		err = s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents WHERE status = $1`, AgentStatusActive).Scan(&n)
	} else {
		err = s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM agents WHERE tier = $1 AND status = $2`, tier, AgentStatusActive).Scan(&n)
	}
	return n, err
}
