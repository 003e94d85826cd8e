package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/paddockai/apex/config"
)

const defaultAnthropicURL = "https://api.anthropic.com/v1/messages"

// AnthropicProvider implements Provider against the Anthropic Messages API
// with server-sent-event streaming.
type AnthropicProvider struct {
	apiKey      string
	baseURL     string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
}

// NewAnthropicProvider creates a provider from the LLM config section.
func NewAnthropicProvider(cfg config.LLMConfig) *AnthropicProvider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &AnthropicProvider{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

type anthropicRequest struct {
	Model     string                 `json:"model"`
	MaxTokens int                    `json:"max_tokens"`
	System    string                 `json:"system,omitempty"`
	Messages  []Message              `json:"messages"`
	Tools     []ToolDef              `json:"tools,omitempty"`
	Thinking  map[string]interface{} `json:"thinking,omitempty"`
	Stream    bool                   `json:"stream"`
}

// streamEvent covers the union of SSE payloads the Messages API emits.
type streamEvent struct {
	Type    string `json:"type"`
	Index   int    `json:"index"`
	Message struct {
		Usage struct {
			InputTokens int64 `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	ContentBlock struct {
		Type string `json:"type"`
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"content_block"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		StopReason  string `json:"stop_reason"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type blockAccum struct {
	kind  string
	id    string
	name  string
	text  strings.Builder
	input strings.Builder
}

// Generate issues one streaming generation call. Text fragments are passed to
// onFragment as they arrive; the returned Turn carries the terminal state.
func (p *AnthropicProvider) Generate(ctx context.Context, req Request, onFragment func(string)) (Turn, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	body := anthropicRequest{
		Model:     model,
		MaxTokens: p.maxTokens,
		System:    req.System,
		Messages:  req.Messages,
		Tools:     req.Tools,
		Stream:    true,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = 4096
	}
	if req.Thinking {
		body.Thinking = map[string]interface{}{"type": "adaptive"}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return Turn{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return Turn{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Turn{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Turn{}, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	return parseStream(resp.Body, onFragment)
}

// parseStream consumes the SSE body and assembles the terminal Turn.
func parseStream(r io.Reader, onFragment func(string)) (Turn, error) {
	var turn Turn
	blocks := map[int]*blockAccum{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			// Partial frames are skipped, the stream carries redundant state
			continue
		}
		switch ev.Type {
		case "message_start":
			turn.InputTokens = ev.Message.Usage.InputTokens
		case "content_block_start":
			blocks[ev.Index] = &blockAccum{kind: ev.ContentBlock.Type, id: ev.ContentBlock.ID, name: ev.ContentBlock.Name}
		case "content_block_delta":
			blk := blocks[ev.Index]
			if blk == nil {
				blk = &blockAccum{kind: "text"}
				blocks[ev.Index] = blk
			}
			switch ev.Delta.Type {
			case "text_delta":
				blk.text.WriteString(ev.Delta.Text)
				if onFragment != nil && ev.Delta.Text != "" {
					onFragment(ev.Delta.Text)
				}
			case "input_json_delta":
				blk.input.WriteString(ev.Delta.PartialJSON)
			}
		case "message_delta":
			if ev.Delta.StopReason != "" {
				turn.StopReason = ev.Delta.StopReason
			}
			if ev.Usage.OutputTokens > 0 {
				turn.OutputTokens = ev.Usage.OutputTokens
			}
		case "error":
			return turn, fmt.Errorf("stream error (%s): %s", ev.Error.Type, ev.Error.Message)
		}
	}
	if err := scanner.Err(); err != nil {
		return turn, fmt.Errorf("failed to read stream: %w", err)
	}

	indexes := make([]int, 0, len(blocks))
	for idx := range blocks {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	var text strings.Builder
	for _, idx := range indexes {
		blk := blocks[idx]
		switch blk.kind {
		case "text":
			text.WriteString(blk.text.String())
			turn.Content = append(turn.Content, ContentBlock{Type: "text", Text: blk.text.String()})
		case "tool_use":
			input := strings.TrimSpace(blk.input.String())
			if input == "" {
				input = "{}"
			}
			turn.ToolCalls = append(turn.ToolCalls, ToolCall{ID: blk.id, Name: blk.name, Input: json.RawMessage(input)})
			turn.Content = append(turn.Content, ContentBlock{Type: "tool_use", ID: blk.id, Name: blk.name, Input: json.RawMessage(input)})
		}
	}
	turn.Text = text.String()
	return turn, nil
}

// CalculateCost estimates the dollar cost of a call for cost tracking.
func (p *AnthropicProvider) CalculateCost(inputTokens, outputTokens int64, model string) float64 {
	// per-million-token pricing; unknown models use the sonnet rate
	type rate struct{ in, out float64 }
	rates := map[string]rate{
		"claude-opus-4-20250514":    {15.0, 75.0},
		"claude-sonnet-4-20250514":  {3.0, 15.0},
		"claude-3-5-haiku-20241022": {0.8, 4.0},
	}
	r, ok := rates[model]
	if !ok {
		r = rate{3.0, 15.0}
	}
	return float64(inputTokens)/1e6*r.in + float64(outputTokens)/1e6*r.out
}
