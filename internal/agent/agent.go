// Package agent implements the capability agents that argue debates, query
// the knowledge base and submit theories through a streaming tool-use loop.
package agent

import (
	"context"
	"log"
	"strings"

	"github.com/paddockai/apex/internal/llm"
)

// DefaultMaxToolIterations bounds the tool-use loop so a model that keeps
// asking for tools cannot spin a turn forever.
const DefaultMaxToolIterations = 6

// Chunk is one streamed piece of an agent turn. Err is set on the final chunk
// when the turn failed.
type Chunk struct {
	Text string
	Err  error
}

// Agent binds a persona to the generative backend and the tool dispatcher.
type Agent struct {
	Persona       Persona
	provider      llm.Provider
	dispatcher    *Dispatcher
	maxIterations int
	logger        *log.Logger
}

// New builds an agent for the given persona. maxIterations <= 0 uses
// DefaultMaxToolIterations.
func New(p Persona, provider llm.Provider, dispatcher *Dispatcher, maxIterations int, logger *log.Logger) *Agent {
	if logger == nil {
		logger = log.Default()
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxToolIterations
	}
	if len(p.Tools) == 0 {
		p.Tools = DefaultTools(p.Tier)
	}
	return &Agent{Persona: p, provider: provider, dispatcher: dispatcher, maxIterations: maxIterations, logger: logger}
}

// Respond runs one turn of the agentic loop and streams text fragments as
// they arrive. When the model stops to use tools, every requested tool is
// executed, the results are appended as a synthetic user turn, and generation
// resumes. The channel closes when the turn completes or fails.
func (a *Agent) Respond(ctx context.Context, history []llm.Message, extraContext string, collect *Collector) <-chan Chunk {
	out := make(chan Chunk, 16)
	go func() {
		defer close(out)
		a.run(ctx, history, extraContext, collect, out)
	}()
	return out
}

// RespondFull drains Respond into a single string.
func (a *Agent) RespondFull(ctx context.Context, history []llm.Message, extraContext string, collect *Collector) (string, error) {
	var sb strings.Builder
	for chunk := range a.Respond(ctx, history, extraContext, collect) {
		if chunk.Err != nil {
			return sb.String(), chunk.Err
		}
		sb.WriteString(chunk.Text)
	}
	return sb.String(), nil
}

func (a *Agent) run(ctx context.Context, history []llm.Message, extraContext string, collect *Collector, out chan<- Chunk) {
	system := a.Persona.SystemPrompt
	if extraContext != "" {
		system += "\n\n" + extraContext
	}

	messages := make([]llm.Message, len(history))
	copy(messages, history)

	emit := func(fragment string) {
		select {
		case out <- Chunk{Text: fragment}:
		case <-ctx.Done():
		}
	}

	for iteration := 0; iteration < a.maxIterations; iteration++ {
		turn, err := a.provider.Generate(ctx, llm.Request{
			Model:    a.Persona.ModelID,
			System:   system,
			Messages: messages,
			Tools:    a.Persona.Tools,
			Thinking: a.Persona.Tier == 1 && iteration == 0,
		}, emit)
		if err != nil {
			out <- Chunk{Err: err}
			return
		}

		if turn.StopReason != "tool_use" || len(turn.ToolCalls) == 0 {
			return
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: turn.Content})
		results := make([]llm.ContentBlock, 0, len(turn.ToolCalls))
		for _, call := range turn.ToolCalls {
			a.logger.Printf("[AGENT] %s -> %s", a.Persona.Name, call.Name)
			results = append(results, llm.ContentBlock{
				Type:      "tool_result",
				ToolUseID: call.ID,
				Content:   a.dispatcher.Dispatch(ctx, a.Persona, call, collect),
			})
		}
		messages = append(messages, llm.ToolResultMessage(results))
	}
	a.logger.Printf("[AGENT] %s hit the tool iteration cap", a.Persona.Name)
}
