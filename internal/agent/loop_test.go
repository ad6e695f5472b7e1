package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/microclaw/microclaw/internal/models"
)

// fakeStore is a minimal in-memory MessageStore for loop tests.
type fakeStore struct {
	history map[string][]models.Message
}

func newFakeStore() *fakeStore {
	return &fakeStore{history: make(map[string][]models.Message)}
}

func (s *fakeStore) AppendMessage(ctx context.Context, sessionID string, msg models.Message) error {
	s.history[sessionID] = append(s.history[sessionID], msg)
	return nil
}

func (s *fakeStore) History(ctx context.Context, sessionID string) ([]models.Message, error) {
	return s.history[sessionID], nil
}

// scriptedProvider returns one canned response per call to Complete, in
// order, looping on the last entry once exhausted.
type scriptedProvider struct {
	responses [][]ResponseChunk
	calls     int
}

func (p *scriptedProvider) Complete(ctx context.Context, req CompletionRequest) (<-chan ResponseChunk, error) {
	idx := p.calls
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	p.calls++

	ch := make(chan ResponseChunk, len(p.responses[idx]))
	for _, c := range p.responses[idx] {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func drain(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatal("timed out waiting for loop events")
			return out
		}
	}
}

func TestLoopCompletesWithoutToolCalls(t *testing.T) {
	provider := &scriptedProvider{responses: [][]ResponseChunk{
		{{Type: ChunkText, Text: "hello there"}},
	}}
	store := newFakeStore()
	registry := NewToolRegistry()
	executor := NewExecutor(registry, DefaultExecutorConfig())
	loop := NewAgenticLoop(provider, registry, executor, NewApprovalGate(), store, DefaultLoopConfig())

	events := drain(t, loop.Run(context.Background(), "sess-1", "web", "chat-1", "hi"))

	last := events[len(events)-1]
	if last.Type != "done" {
		t.Fatalf("expected the turn to finish with a done event, got %s", last.Type)
	}
	if last.Data["text"] != "hello there" {
		t.Fatalf("unexpected final text: %v", last.Data["text"])
	}

	history := store.history["sess-1"]
	if len(history) != 2 {
		t.Fatalf("expected the user message and assistant reply to be persisted, got %d", len(history))
	}
}

func TestLoopExecutesLowRiskToolThenCompletes(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&fakeTool{name: "lookup", risk: RiskLow})
	executor := NewExecutor(registry, DefaultExecutorConfig())

	provider := &scriptedProvider{responses: [][]ResponseChunk{
		{{Type: ChunkToolCall, ToolCall: &models.ToolCall{ID: "call-1", Name: "lookup", Input: json.RawMessage(`{}`)}}},
		{{Type: ChunkText, Text: "done looking"}},
	}}

	store := newFakeStore()
	loop := NewAgenticLoop(provider, registry, executor, NewApprovalGate(), store, DefaultLoopConfig())

	events := drain(t, loop.Run(context.Background(), "sess-2", "web", "chat-2", "look something up"))

	last := events[len(events)-1]
	if last.Type != "done" {
		t.Fatalf("expected the turn to finish with done, got %s", last.Type)
	}

	var sawToolResult bool
	for _, e := range events {
		if e.Type == "tool_result" {
			sawToolResult = true
			if e.Data["is_error"] == true {
				t.Fatal("expected the tool call to succeed")
			}
		}
	}
	if !sawToolResult {
		t.Fatal("expected a tool_result event for the tool call")
	}
}

func TestLoopRequiresApprovalForHighRiskTool(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&fakeTool{name: "run_shell", risk: RiskHigh})
	executor := NewExecutor(registry, DefaultExecutorConfig())

	provider := &scriptedProvider{responses: [][]ResponseChunk{
		{{Type: ChunkToolCall, ToolCall: &models.ToolCall{ID: "call-1", Name: "run_shell", Input: json.RawMessage(`{}`)}}},
		{{Type: ChunkText, Text: "finished"}},
	}}

	store := newFakeStore()
	loop := NewAgenticLoop(provider, registry, executor, NewApprovalGate(), store, DefaultLoopConfig())

	events := drain(t, loop.Run(context.Background(), "sess-3", "web", "chat-3", "run it"))

	var result *Event
	for i := range events {
		if events[i].Type == "tool_result" {
			result = &events[i]
		}
	}
	if result == nil || result.Data["is_error"] != true {
		t.Fatal("expected the unapproved high-risk tool call to be blocked")
	}
	if result.Data["error_type"] != "approval_required" {
		t.Fatalf("expected error_type approval_required, got %v", result.Data["error_type"])
	}
	wantMsg := "Approval required for high-risk tool 'run_shell' (risk: high). Re-run the same tool call to confirm."
	if result.Data["preview"] != wantMsg {
		t.Fatalf("unexpected approval message: %v", result.Data["preview"])
	}
}

func TestLoopSecondIdenticalHighRiskCallSelfCommits(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&fakeTool{name: "run_shell", risk: RiskHigh})
	executor := NewExecutor(registry, DefaultExecutorConfig())
	gate := NewApprovalGate()

	firstCall := []ResponseChunk{{Type: ChunkToolCall, ToolCall: &models.ToolCall{ID: "call-1", Name: "run_shell", Input: json.RawMessage(`{}`)}}}
	provider := &scriptedProvider{responses: [][]ResponseChunk{
		firstCall,
		{{Type: ChunkText, Text: "denied"}},
	}}
	store := newFakeStore()
	loop := NewAgenticLoop(provider, registry, executor, gate, store, DefaultLoopConfig())
	drain(t, loop.Run(context.Background(), "sess-3b", "web", "chat-3b", "run it"))

	// Re-issue the identical call: the gate must now self-commit.
	provider2 := &scriptedProvider{responses: [][]ResponseChunk{
		firstCall,
		{{Type: ChunkText, Text: "ran it"}},
	}}
	loop2 := NewAgenticLoop(provider2, registry, executor, gate, store, DefaultLoopConfig())
	events := drain(t, loop2.Run(context.Background(), "sess-3c", "web", "chat-3b", "run it again"))

	var sawSuccess bool
	for _, e := range events {
		if e.Type == "tool_result" {
			if e.Data["is_error"] == true {
				t.Fatalf("expected the re-issued call to be auto-approved, got error: %v", e.Data["preview"])
			}
			sawSuccess = true
		}
	}
	if !sawSuccess {
		t.Fatal("expected a tool_result event for the re-issued call")
	}
}

func TestLoopDoesNotGateHighRiskToolForNonControlNonWebChat(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&fakeTool{name: "run_shell", risk: RiskHigh})
	executor := NewExecutor(registry, DefaultExecutorConfig())

	provider := &scriptedProvider{responses: [][]ResponseChunk{
		{{Type: ChunkToolCall, ToolCall: &models.ToolCall{ID: "call-1", Name: "run_shell", Input: json.RawMessage(`{}`)}}},
		{{Type: ChunkText, Text: "finished"}},
	}}

	store := newFakeStore()
	loop := NewAgenticLoop(provider, registry, executor, NewApprovalGate(), store, DefaultLoopConfig())

	events := drain(t, loop.Run(context.Background(), "sess-3d", "telegram", "chat-3d", "run it"))

	for _, e := range events {
		if e.Type == "tool_result" && e.Data["is_error"] == true {
			t.Fatalf("expected a non-control, non-web chat's high-risk call to run unapproved, got error: %v", e.Data["preview"])
		}
	}
}

func TestLoopStopsAtMaxIterations(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&fakeTool{name: "looper", risk: RiskLow})
	executor := NewExecutor(registry, DefaultExecutorConfig())

	toolCallResponse := []ResponseChunk{{Type: ChunkToolCall, ToolCall: &models.ToolCall{ID: "x", Name: "looper", Input: json.RawMessage(`{}`)}}}
	provider := &scriptedProvider{responses: [][]ResponseChunk{toolCallResponse}}

	store := newFakeStore()
	cfg := DefaultLoopConfig()
	cfg.MaxIterations = 2
	loop := NewAgenticLoop(provider, registry, executor, NewApprovalGate(), store, cfg)

	events := drain(t, loop.Run(context.Background(), "sess-4", "web", "chat-4", "loop forever"))

	last := events[len(events)-1]
	if last.Type != "error" {
		t.Fatalf("expected the loop to bail with an error event once max iterations is hit, got %s", last.Type)
	}
}
