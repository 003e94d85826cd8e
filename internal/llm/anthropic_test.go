package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const sampleStream = `event: message_start
data: {"type":"message_start","message":{"usage":{"input_tokens":42}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello "}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"world"}}

event: content_block_start
data: {"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"tu_1","name":"search_knowledge_base"}}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"query\":"}}

event: content_block_delta
data: {"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"\"tyres\"}"}}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":17}}

event: message_stop
data: {"type":"message_stop"}
`

func TestParseStreamAssemblesTurn(t *testing.T) {
	var fragments []string
	turn, err := parseStream(strings.NewReader(sampleStream), func(s string) { fragments = append(fragments, s) })
	if err != nil {
		t.Fatalf("parseStream: %v", err)
	}
	if turn.Text != "Hello world" {
		t.Fatalf("expected text 'Hello world', got %q", turn.Text)
	}
	if len(fragments) != 2 || fragments[0] != "Hello " || fragments[1] != "world" {
		t.Fatalf("unexpected fragments: %v", fragments)
	}
	if turn.StopReason != "tool_use" {
		t.Fatalf("expected stop reason tool_use, got %q", turn.StopReason)
	}
	if len(turn.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(turn.ToolCalls))
	}
	tc := turn.ToolCalls[0]
	if tc.Name != "search_knowledge_base" || tc.ID != "tu_1" {
		t.Fatalf("unexpected tool call: %+v", tc)
	}
	if string(tc.Input) != `{"query":"tyres"}` {
		t.Fatalf("unexpected tool input: %s", tc.Input)
	}
	if turn.InputTokens != 42 || turn.OutputTokens != 17 {
		t.Fatalf("unexpected usage: in=%d out=%d", turn.InputTokens, turn.OutputTokens)
	}
}

func TestParseStreamEmptyToolInputDefaultsToObject(t *testing.T) {
	stream := `data: {"type":"content_block_start","index":0,"content_block":{"type":"tool_use","id":"tu_9","name":"cite_fact"}}
data: {"type":"message_delta","delta":{"stop_reason":"tool_use"}}
`
	turn, err := parseStream(strings.NewReader(stream), nil)
	if err != nil {
		t.Fatalf("parseStream: %v", err)
	}
	if len(turn.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(turn.ToolCalls))
	}
	if string(turn.ToolCalls[0].Input) != "{}" {
		t.Fatalf("expected empty object input, got %s", turn.ToolCalls[0].Input)
	}
}

func TestGenerateAgainstStubServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("missing anthropic-version header")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(sampleStream))
	}))
	defer srv.Close()

	p := &AnthropicProvider{
		apiKey:     "test-key",
		baseURL:    srv.URL,
		model:      "claude-sonnet-4-20250514",
		maxTokens:  1024,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
	turn, err := p.Generate(context.Background(), Request{
		Messages: []Message{TextMessage(RoleUser, "hi")},
	}, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if turn.Text != "Hello world" {
		t.Fatalf("expected streamed text, got %q", turn.Text)
	}
}

func TestGenerateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := &AnthropicProvider{apiKey: "k", baseURL: srv.URL, httpClient: srv.Client()}
	if _, err := p.Generate(context.Background(), Request{}, nil); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}
