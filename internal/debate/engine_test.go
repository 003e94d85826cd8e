package debate

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/paddockai/apex/internal/agent"
	"github.com/paddockai/apex/internal/broadcast"
	"github.com/paddockai/apex/internal/llm"
	"github.com/paddockai/apex/internal/store"
)

// echoProvider answers every prompt with a fixed conclusion line.
type echoProvider struct {
	reply string
}

func (p *echoProvider) Generate(ctx context.Context, req llm.Request, onFragment func(string)) (llm.Turn, error) {
	if onFragment != nil {
		onFragment(p.reply)
	}
	return llm.Turn{Text: p.reply, StopReason: "end_turn"}, nil
}

type noopKnowledge struct{}

func (noopKnowledge) Search(ctx context.Context, query string, minConfidence float64, tier, limit int) ([]agent.FactHit, error) {
	return nil, nil
}

func (noopKnowledge) Cite(ctx context.Context, factID string, tier int) (agent.FactHit, error) {
	return agent.FactHit{}, nil
}

type sinkSubscriber struct {
	events []broadcast.Event
}

func (s *sinkSubscriber) Send(ev broadcast.Event) error {
	s.events = append(s.events, ev)
	return nil
}

func testRoster(reply string) *agent.Roster {
	provider := &echoProvider{reply: reply}
	dispatcher := agent.NewDispatcher(noopKnowledge{}, nil)
	var agents []*agent.Agent
	for _, name := range []string{"Oracle", "Vector", "Podium"} {
		agents = append(agents, agent.New(agent.Persona{
			ID: "id-" + name, Name: name, Tier: 1, SystemPrompt: "debate",
		}, provider, dispatcher, 0, nil))
	}
	return agent.NewRoster(agents)
}

func TestRunFullDebate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &store.Store{DB: db}

	mock.ExpectExec(`INSERT INTO debate_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// 3 agents x 3 rounds
	for i := 0; i < 9; i++ {
		mock.ExpectExec(`INSERT INTO debate_messages`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(`UPDATE debate_sessions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE agents SET wins`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	bc := broadcast.NewRegistry(0)
	sink := &sinkSubscriber{}
	bc.SubscribeGlobal(sink)

	engine := NewEngine(st, testRoster("I stand by the claim. RESOLUTION: 80/100"), bc, 3, time.Millisecond, nil)
	res, err := engine.Run(context.Background(), "Is the floor flexing?", "technical", []string{"Oracle", "Vector", "Podium"}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Verdict.Outcome != VerdictPass {
		t.Fatalf("expected pass got %s", res.Verdict.Outcome)
	}
	if res.Verdict.Confidence != 80 {
		t.Fatalf("expected confidence 80 got %v", res.Verdict.Confidence)
	}
	for _, name := range []string{"Oracle", "Vector", "Podium"} {
		if res.Verdict.Scores[name] != 80 {
			t.Fatalf("expected score 80 for %s got %d", name, res.Verdict.Scores[name])
		}
	}

	var start, end bool
	messages := 0
	for _, ev := range sink.events {
		switch ev.Type {
		case "debate_start":
			start = true
		case "message":
			messages++
		case "debate_end":
			end = true
			if ev.Verdict != VerdictPass || ev.VerdictConfidence != 80 {
				t.Fatalf("terminal event mismatch: %+v", ev)
			}
			if len(ev.AgentScores) != 3 {
				t.Fatalf("terminal event missing agent scores: %+v", ev)
			}
		}
	}
	if !start || !end {
		t.Fatalf("missing lifecycle events: start=%v end=%v", start, end)
	}
	if messages != 9 {
		t.Fatalf("expected 9 full messages got %d", messages)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRunCancelledDuringPause(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	st := &store.Store{DB: db}

	mock.ExpectExec(`INSERT INTO debate_sessions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO debate_messages`).WillReturnResult(sqlmock.NewResult(0, 1))

	ctx, cancel := context.WithCancel(context.Background())
	engine := NewEngine(st, testRoster("opening"), nil, 3, time.Hour, nil)

	done := make(chan error, 1)
	go func() {
		_, err := engine.Run(ctx, "topic", "technical", []string{"Oracle", "Vector", "Podium"}, nil)
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected cancellation error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not exit after cancellation")
	}
}

func TestSelectParticipantsFallsBackToRandomSample(t *testing.T) {
	engine := NewEngine(nil, testRoster("x"), nil, 2, time.Millisecond, nil)

	// unknown name invalidates the requested lineup
	lineup, err := engine.selectParticipants([]string{"Oracle", "Ghost"})
	if err != nil {
		t.Fatalf("selectParticipants: %v", err)
	}
	if len(lineup) != 2 {
		t.Fatalf("expected sample of 2 got %d", len(lineup))
	}
	seen := map[string]bool{}
	for _, a := range lineup {
		if seen[a.Persona.Name] {
			t.Fatalf("duplicate participant %s", a.Persona.Name)
		}
		seen[a.Persona.Name] = true
	}

	// valid subset keeps caller order
	lineup, err = engine.selectParticipants([]string{"Podium", "Oracle"})
	if err != nil {
		t.Fatalf("selectParticipants subset: %v", err)
	}
	if lineup[0].Persona.Name != "Podium" || lineup[1].Persona.Name != "Oracle" {
		t.Fatalf("caller order not preserved: %v", []string{lineup[0].Persona.Name, lineup[1].Persona.Name})
	}
}
