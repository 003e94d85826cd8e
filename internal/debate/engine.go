// Package debate runs the three-round debate sessions: participant
// selection, sequential agent turns, verdict scoring and summary.
package debate

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/paddockai/apex/internal/agent"
	"github.com/paddockai/apex/internal/broadcast"
	"github.com/paddockai/apex/internal/llm"
	"github.com/paddockai/apex/internal/store"
	"github.com/paddockai/apex/internal/telemetry"
)

var engineTracer trace.Tracer = otel.Tracer("apex/internal/debate")

// transcriptWindow is how many recent transcript entries each turn sees.
const transcriptWindow = 6

const rounds = 3

var roundInstructions = [rounds + 1]string{
	"",
	"Round 1 of 3 (OPENING). State your position on the topic in 2-4 sentences. Search the knowledge base for relevant facts before committing to a stance.",
	"Round 2 of 3 (EVIDENCE). Respond to the other agents' arguments. Cite specific facts that support or undermine their positions.",
	"Round 3 of 3 (CONCLUSION). Give your final assessment. You MUST end with a line of the exact form 'RESOLUTION: <0-100>/100' scoring how strongly the topic's claim holds. If this debate surfaced a new insight worth preserving, submit it as a theory.",
}

var roundMessageTypes = [rounds + 1]string{"", "opening", "evidence", "conclusion"}

// Engine orchestrates debates. One Engine serves many sessions; per-session
// state is local to Run.
type Engine struct {
	store      *store.Store
	roster     *agent.Roster
	broadcast  *broadcast.Registry
	debateSize int
	pause      time.Duration
	logger     *log.Logger
	awards     PredictionSink
}

// PredictionSink receives explicit prediction lines found in conclusion
// turns. Satisfied by the award service.
type PredictionSink interface {
	ExtractPredictions(ctx context.Context, agentID, debateID, category, text string, confidence float64) int
}

// SetPredictionSink enables prediction capture from conclusion rounds.
func (e *Engine) SetPredictionSink(sink PredictionSink) { e.awards = sink }

// NewEngine builds a debate engine. debateSize <= 0 defaults to 3 and
// pause <= 0 to 500ms.
func NewEngine(st *store.Store, roster *agent.Roster, bc *broadcast.Registry, debateSize int, pause time.Duration, logger *log.Logger) *Engine {
	if debateSize <= 0 {
		debateSize = 3
	}
	if pause <= 0 {
		pause = 500 * time.Millisecond
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		store:      st,
		roster:     roster,
		broadcast:  bc,
		debateSize: debateSize,
		pause:      pause,
		logger:     logger,
	}
}

// Result is the outcome of one finished debate.
type Result struct {
	Session store.DebateSession
	Verdict Verdict
	Summary string
}

type transcriptEntry struct {
	agentName string
	content   string
}

// Run executes one full debate on the topic. requested, when every name is a
// known tier-1 persona, fixes the lineup in caller order; otherwise the
// engine samples a random lineup from the tier-1 roster.
func (e *Engine) Run(ctx context.Context, topic, domain string, requested []string, newsEventID *string) (Result, error) {
	ctx, span := engineTracer.Start(ctx, "debate.run",
		trace.WithAttributes(attribute.String("debate.topic", topic)))
	defer span.End()
	started := time.Now()

	participants, err := e.selectParticipants(requested)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	ids := make([]string, len(participants))
	names := make([]string, len(participants))
	for i, p := range participants {
		ids[i] = p.Persona.ID
		names[i] = p.Persona.Name
	}

	sess, err := e.store.CreateDebateSession(ctx, topic, domain, ids, newsEventID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(attribute.String("debate.id", sess.ID))
	e.logger.Printf("[DEBATE] %s started: %q with %s", sess.ID, topic, strings.Join(names, ", "))

	e.publish(broadcast.Event{
		Type:     "debate_start",
		DebateID: sess.ID,
		Topic:    topic,
		Category: domain,
		Content:  strings.Join(names, ", "),
	})

	var transcript []transcriptEntry
	conclusions := make(map[string]string, len(participants))

	for round := 1; round <= rounds; round++ {
		for _, p := range participants {
			text, err := e.turn(ctx, sess.ID, topic, round, p, transcript)
			if err != nil {
				if ctx.Err() != nil {
					span.SetStatus(codes.Error, "cancelled")
					return Result{}, ctx.Err()
				}
				// one failed agent does not sink the debate
				e.logger.Printf("[DEBATE] %s turn failed for %s: %v", sess.ID, p.Persona.Name, err)
				text = "(no response)"
			}
			transcript = append(transcript, transcriptEntry{agentName: p.Persona.Name, content: text})
			if round == rounds {
				conclusions[p.Persona.Name] = text
			}
			if err := e.sleep(ctx); err != nil {
				span.SetStatus(codes.Error, "cancelled")
				return Result{}, err
			}
		}
	}

	scores := make(map[string]int, len(participants))
	for name, text := range conclusions {
		scores[name] = ExtractScore(text)
	}
	verdict := Score(scores)
	if e.awards != nil {
		for _, p := range participants {
			text := conclusions[p.Persona.Name]
			e.awards.ExtractPredictions(ctx, p.Persona.ID, sess.ID, domain, text, float64(scores[p.Persona.Name])/100)
		}
	}
	span.SetAttributes(
		attribute.String("debate.verdict", verdict.Outcome),
		attribute.Float64("debate.confidence", verdict.Confidence),
	)

	winner := topScorer(participants, scores)
	summary, err := e.summarize(ctx, topic, winner, transcript, verdict)
	if err != nil {
		e.logger.Printf("[DEBATE] %s summary failed: %v", sess.ID, err)
		summary = fmt.Sprintf("Debate on %q ended %s (confidence %.1f).", topic, verdict.Outcome, verdict.Confidence)
	}

	if err := e.store.CompleteDebateSession(ctx, sess.ID, summary, verdict.Outcome, verdict.Confidence, scores); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	if err := e.store.IncrementAgentWins(ctx, winner.Persona.ID); err != nil {
		e.logger.Printf("[DEBATE] %s failed to credit win to %s: %v", sess.ID, winner.Persona.Name, err)
	}

	e.publish(broadcast.Event{
		Type:              "debate_end",
		DebateID:          sess.ID,
		Content:           summary,
		Verdict:           verdict.Outcome,
		VerdictConfidence: verdict.Confidence,
		AgentScores:       scores,
	})
	span.SetStatus(codes.Ok, "completed")
	telemetry.DebatesTotal.WithLabelValues(verdict.Outcome).Inc()
	telemetry.DebateDuration.Observe(time.Since(started).Seconds())
	e.logger.Printf("[DEBATE] %s ended: %s (%.1f)", sess.ID, verdict.Outcome, verdict.Confidence)

	sess.Status = store.DebateStatusCompleted
	sess.Summary = summary
	sess.Verdict = verdict.Outcome
	sess.VerdictConfidence = verdict.Confidence
	sess.AgentScores = scores
	return Result{Session: sess, Verdict: verdict, Summary: summary}, nil
}

// selectParticipants honors a caller-provided lineup when every name matches
// a tier-1 persona, and otherwise samples without replacement.
func (e *Engine) selectParticipants(requested []string) ([]*agent.Agent, error) {
	if len(requested) > 0 {
		lineup := make([]*agent.Agent, 0, len(requested))
		valid := true
		for _, name := range requested {
			a, ok := e.roster.Get(name)
			if !ok || a.Persona.Tier != 1 {
				valid = false
				break
			}
			lineup = append(lineup, a)
		}
		if valid {
			return lineup, nil
		}
	}
	pool := e.roster.Tier(1)
	if len(pool) == 0 {
		return nil, fmt.Errorf("no tier-1 agents available")
	}
	n := e.debateSize
	if n > len(pool) {
		n = len(pool)
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	return pool[:n], nil
}

func (e *Engine) turn(ctx context.Context, debateID, topic string, round int, p *agent.Agent, transcript []transcriptEntry) (string, error) {
	prompt := buildTurnPrompt(topic, round, transcript)

	collect := &agent.Collector{OnTheory: func(ts agent.TheorySubmission) {
		if _, err := e.store.CreateTheory(ctx, p.Persona.ID, &debateID, ts.Title, ts.Content, ts.Confidence); err != nil {
			e.logger.Printf("[DEBATE] %s failed to persist theory from %s: %v", debateID, p.Persona.Name, err)
			return
		}
		e.publish(broadcast.Event{
			Type:     "theory_submitted",
			Agent:    p.Persona.Name,
			Content:  ts.Title,
			DebateID: debateID,
		})
	}}

	var sb strings.Builder
	for chunk := range p.Respond(ctx, []llm.Message{llm.TextMessage(llm.RoleUser, prompt)}, "", collect) {
		if chunk.Err != nil {
			return sb.String(), chunk.Err
		}
		sb.WriteString(chunk.Text)
		e.publish(broadcast.Event{
			Type:     "fragment",
			Agent:    p.Persona.Name,
			Content:  chunk.Text,
			Round:    round,
			DebateID: debateID,
		})
	}
	text := sb.String()

	if _, err := e.store.CreateDebateMessage(ctx, store.DebateMessage{
		DebateID: debateID,
		AgentID:  p.Persona.ID,
		Content:  text,
		MsgType:  roundMessageTypes[round],
		Round:    round,
	}); err != nil {
		return text, err
	}
	e.publish(broadcast.Event{
		Type:     "message",
		Agent:    p.Persona.Name,
		Content:  text,
		Round:    round,
		DebateID: debateID,
	})
	return text, nil
}

func buildTurnPrompt(topic string, round int, transcript []transcriptEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "DEBATE TOPIC: %s\n\n", topic)
	window := transcript
	if len(window) > transcriptWindow {
		window = window[len(window)-transcriptWindow:]
	}
	if len(window) > 0 {
		sb.WriteString("RECENT ARGUMENTS:\n")
		for _, entry := range window {
			fmt.Fprintf(&sb, "%s: %s\n\n", entry.agentName, entry.content)
		}
	}
	sb.WriteString(roundInstructions[round])
	return sb.String()
}

// summarize asks the highest scorer to write the closing summary. Ties go to
// the earliest participant in lineup order.
func (e *Engine) summarize(ctx context.Context, topic string, winner *agent.Agent, transcript []transcriptEntry, verdict Verdict) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "The debate on %q has concluded with verdict %s (confidence %.1f).\n\nFULL TRANSCRIPT:\n", topic, verdict.Outcome, verdict.Confidence)
	for _, entry := range transcript {
		fmt.Fprintf(&sb, "%s: %s\n\n", entry.agentName, entry.content)
	}
	sb.WriteString("Write a neutral 3-4 sentence summary of the strongest arguments and the outcome.")
	return winner.RespondFull(ctx, []llm.Message{llm.TextMessage(llm.RoleUser, sb.String())}, "", nil)
}

func topScorer(participants []*agent.Agent, scores map[string]int) *agent.Agent {
	best := participants[0]
	for _, p := range participants[1:] {
		if scores[p.Persona.Name] > scores[best.Persona.Name] {
			best = p
		}
	}
	return best
}

func (e *Engine) publish(ev broadcast.Event) {
	if e.broadcast == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	e.broadcast.Publish(ev)
}

func (e *Engine) sleep(ctx context.Context) error {
	timer := time.NewTimer(e.pause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
