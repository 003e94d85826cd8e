//go:build integration

package store_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/paddockai/apex/internal/server"
	"github.com/paddockai/apex/internal/store"
)

func startPostgres(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "apex",
			"POSTGRES_PASSWORD": "apex",
			"POSTGRES_DB":       "apex",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(1).WithStartupTimeout(60 * time.Second),
	}
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("failed to start postgres: %v", err)
	}
	port, err := pg.MappedPort(ctx, "5432")
	if err != nil {
		_ = pg.Terminate(ctx)
		t.Fatalf("failed to get mapped port: %v", err)
	}
	host, err := pg.Host(ctx)
	if err != nil {
		_ = pg.Terminate(ctx)
		t.Fatalf("failed to get host: %v", err)
	}
	dsn := fmt.Sprintf("postgres://apex:apex@%s:%s/apex?sslmode=disable", host, port.Port())
	return pg, dsn
}

func findMigrationsDir(t *testing.T) string {
	t.Helper()
	cwd, _ := os.Getwd()
	for i := 0; i < 6; i++ {
		candidate := filepath.Join(cwd, "migrations")
		if st, err := os.Stat(candidate); err == nil && st.IsDir() {
			return "file://" + candidate
		}
		cwd = filepath.Dir(cwd)
	}
	t.Fatalf("could not locate migrations directory from test cwd")
	return ""
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	pg, dsn := startPostgres(t, ctx)
	defer func() { _ = pg.Terminate(ctx) }()

	if err := server.Migrate(findMigrationsDir(t), dsn, "up", 0); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	s, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store.NewWithDSN: %v", err)
	}
	defer s.Close()

	oracle, err := s.CreateAgent(ctx, store.Agent{Name: "Oracle", Tier: 1, Domain: "conspiracy"})
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	validator, err := s.CreateAgent(ctx, store.Agent{Name: "Apex-Val", Tier: 2, Domain: "validation"})
	if err != nil {
		t.Fatalf("CreateAgent validator: %v", err)
	}

	sess, err := s.CreateDebateSession(ctx, "Is the floor legal?", "technical", []string{oracle.ID}, nil)
	if err != nil {
		t.Fatalf("CreateDebateSession: %v", err)
	}
	if _, err := s.CreateDebateMessage(ctx, store.DebateMessage{
		DebateID: sess.ID, AgentID: oracle.ID, Content: "Opening argument", MsgType: "argument", Round: 1,
	}); err != nil {
		t.Fatalf("CreateDebateMessage: %v", err)
	}
	if err := s.CompleteDebateSession(ctx, sess.ID, "resolved", "pass", 73.3, map[string]int{oracle.ID: 80}); err != nil {
		t.Fatalf("CompleteDebateSession: %v", err)
	}
	if err := s.CompleteDebateSession(ctx, sess.ID, "again", "fail", 10, nil); err == nil {
		t.Fatal("expected second completion to fail")
	}

	got, err := s.GetDebateSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetDebateSession: %v", err)
	}
	if got.Status != store.DebateStatusCompleted || got.Verdict != "pass" {
		t.Fatalf("unexpected session state: %+v", got)
	}

	th, err := s.CreateTheory(ctx, oracle.ID, &sess.ID, "Floor trick", "Flexi floor under load", 0.8)
	if err != nil {
		t.Fatalf("CreateTheory: %v", err)
	}
	if err := s.ResolveTheory(ctx, th.ID, store.TheoryStatusValidated, validator.ID); err != nil {
		t.Fatalf("ResolveTheory: %v", err)
	}
	fact, err := s.CreateFact(ctx, store.KnowledgeFact{
		Content: "Flexi floor under load", Category: "technical", Confidence: 0.76,
		SourceTheoryID: &th.ID, ValidatedBy: &validator.ID,
	})
	if err != nil {
		t.Fatalf("CreateFact: %v", err)
	}
	if err := s.IncrementFactLookup(ctx, fact.ID, 2); err != nil {
		t.Fatalf("IncrementFactLookup: %v", err)
	}

	facts, err := s.ListFacts(ctx, 0.7, 10)
	if err != nil {
		t.Fatalf("ListFacts: %v", err)
	}
	if len(facts) != 1 || facts[0].T2Lookups != 1 {
		t.Fatalf("unexpected facts: %+v", facts)
	}

	stats, err := s.PlatformStats(ctx)
	if err != nil {
		t.Fatalf("PlatformStats: %v", err)
	}
	if stats.Agents != 2 || stats.DebatesRun != 1 || stats.Facts != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
