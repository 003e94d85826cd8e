package cascade

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/paddockai/apex/internal/agent"
	"github.com/paddockai/apex/internal/knowledge"
	"github.com/paddockai/apex/internal/llm"
	"github.com/paddockai/apex/internal/store"
)

type fixedProvider struct {
	reply string
	calls int
}

func (p *fixedProvider) Generate(ctx context.Context, req llm.Request, onFragment func(string)) (llm.Turn, error) {
	p.calls++
	if onFragment != nil {
		onFragment(p.reply)
	}
	return llm.Turn{Text: p.reply, StopReason: "end_turn"}, nil
}

func newValidator(reply string, kb *knowledge.Base) *agent.Agent {
	return agent.New(agent.Persona{
		ID: "val-1", Name: "Apex-Val", Tier: 2, SystemPrompt: "validate",
	}, &fixedProvider{reply: reply}, agent.NewDispatcher(kb, nil), 0, nil)
}

func newCascade(t *testing.T, reply string) (*Cascade, sqlmock.Sqlmock, *knowledge.Base) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	st := &store.Store{DB: db}
	kb, err := knowledge.NewBase(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("knowledge.NewBase: %v", err)
	}
	c := New(st, kb, newValidator(reply, kb), nil, nil, nil)
	return c, mock, kb
}

func TestClassifyVerdict(t *testing.T) {
	cases := []struct {
		response string
		want     string
	}{
		{"VALIDATED. The claim matches known regulations.", store.TheoryStatusValidated},
		{"validated, this holds up", store.TheoryStatusValidated},
		{"VALIDATED but this is an anomaly worth flagging", store.TheoryStatusAnomaly},
		{"ANOMALY: contradicts fact f2", store.TheoryStatusAnomaly},
		{"REJECTED. No supporting evidence.", store.TheoryStatusRejected},
		{"I cannot decide.", store.TheoryStatusPending},
		{"", store.TheoryStatusPending},
	}
	for _, tc := range cases {
		if got := ClassifyVerdict(tc.response); got != tc.want {
			t.Fatalf("ClassifyVerdict(%q) = %s, want %s", tc.response, got, tc.want)
		}
	}
}

func TestValidateTheoryPromotesFact(t *testing.T) {
	c, mock, kb := newCascade(t, "VALIDATED. Consistent with tyre data.")

	mock.ExpectExec(`UPDATE theories SET status`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	theory := store.Theory{ID: "th-1", AgentID: "a1", Title: "Undercut edge", Content: "Fresh softs gain 1.2s on out-laps", Confidence: 0.8}
	verdict, err := c.ValidateTheory(context.Background(), theory)
	if err != nil {
		t.Fatalf("ValidateTheory: %v", err)
	}
	if verdict != store.TheoryStatusValidated {
		t.Fatalf("expected validated got %s", verdict)
	}
	if kb.Size() != 1 {
		t.Fatalf("expected 1 promoted fact got %d", kb.Size())
	}

	hits, err := kb.Search(context.Background(), "softs out-laps", 0, 0, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("promoted fact is not searchable")
	}
	// 0.8 x 0.95
	if hits[0].Confidence < 0.759 || hits[0].Confidence > 0.761 {
		t.Fatalf("expected discounted confidence 0.76 got %v", hits[0].Confidence)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestValidateTheoryConfidenceCap(t *testing.T) {
	c, mock, kb := newCascade(t, "VALIDATED.")

	mock.ExpectExec(`UPDATE theories SET status`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	theory := store.Theory{ID: "th-2", Title: "Sure thing", Content: "A certainty", Confidence: 1.0}
	if _, err := c.ValidateTheory(context.Background(), theory); err != nil {
		t.Fatalf("ValidateTheory: %v", err)
	}
	hits, err := kb.Search(context.Background(), "certainty", 0, 0, 5)
	if err != nil || len(hits) != 1 {
		t.Fatalf("promoted fact missing: %v %d", err, len(hits))
	}
	if hits[0].Confidence != 0.95 {
		t.Fatalf("expected capped confidence 0.95 got %v", hits[0].Confidence)
	}
}

func TestValidateTheoryRejectedCreatesNoFact(t *testing.T) {
	c, mock, kb := newCascade(t, "REJECTED. Baseless.")

	mock.ExpectExec(`UPDATE theories SET status`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	verdict, err := c.ValidateTheory(context.Background(), store.Theory{ID: "th-3", Title: "Wild claim", Content: "X", Confidence: 0.9})
	if err != nil {
		t.Fatalf("ValidateTheory: %v", err)
	}
	if verdict != store.TheoryStatusRejected {
		t.Fatalf("expected rejected got %s", verdict)
	}
	if kb.Size() != 0 {
		t.Fatalf("rejected theory must not produce a fact")
	}
}

func TestValidateTheoryPendingIsNoOp(t *testing.T) {
	c, _, kb := newCascade(t, "Hmm, unclear.")

	verdict, err := c.ValidateTheory(context.Background(), store.Theory{ID: "th-4", Title: "T", Content: "C", Confidence: 0.5})
	if err != nil {
		t.Fatalf("ValidateTheory: %v", err)
	}
	if verdict != store.TheoryStatusPending {
		t.Fatalf("expected pending got %s", verdict)
	}
	if kb.Size() != 0 {
		t.Fatalf("pending theory must not produce a fact")
	}
}

func TestAnomalyScanSurvivesAgentFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &store.Store{DB: db}
	kb, _ := knowledge.NewBase(context.Background(), nil, nil)

	mock.ExpectQuery(`SELECT .+ FROM knowledge_facts`).
		WillReturnError(context.DeadlineExceeded)

	c := New(st, kb, newValidator("x", kb), newValidator("x", kb), nil, nil)
	if report := c.AnomalyScan(context.Background()); report != "" {
		t.Fatalf("expected empty report on failure got %q", report)
	}
}
