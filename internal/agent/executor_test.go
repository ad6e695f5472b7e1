package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTool struct {
	name    string
	risk    RiskLevel
	delay   time.Duration
	failN   int32 // fail the first failN calls, then succeed
	calls   int32
	isError bool
}

func (f *fakeTool) Name() string               { return f.name }
func (f *fakeTool) Description() string        { return "fake tool for tests" }
func (f *fakeTool) Risk() RiskLevel             { return f.risk }
func (f *fakeTool) Schema() json.RawMessage     { return json.RawMessage(`{}`) }
func (f *fakeTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= f.failN {
		return nil, errors.New("transient failure")
	}
	return &ToolResult{Content: "ok", IsError: f.isError}, nil
}

func newTestExecutor(tools ...Tool) *Executor {
	registry := NewToolRegistry()
	for _, t := range tools {
		registry.Register(t)
	}
	cfg := DefaultExecutorConfig()
	cfg.DefaultTimeout = 200 * time.Millisecond
	cfg.RetryBackoff = time.Millisecond
	cfg.MaxRetryBackoff = 5 * time.Millisecond
	return NewExecutor(registry, cfg)
}

func TestExecuteAllPreservesOrder(t *testing.T) {
	e := newTestExecutor(&fakeTool{name: "a"}, &fakeTool{name: "b"}, &fakeTool{name: "c"})

	calls := []Call{{ID: "1", Name: "c"}, {ID: "2", Name: "a"}, {ID: "3", Name: "b"}}
	results := e.ExecuteAll(context.Background(), calls)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.CallID != calls[i].ID {
			t.Fatalf("result %d out of order: expected call id %s, got %s", i, calls[i].ID, r.CallID)
		}
	}
}

func TestExecuteUnknownToolReturnsToolError(t *testing.T) {
	e := newTestExecutor()
	results := e.ExecuteAll(context.Background(), []Call{{ID: "1", Name: "nonexistent"}})

	if results[0].Error != nil {
		t.Fatalf("unexpected transport error: %v", results[0].Error)
	}
	if !results[0].Result.IsError {
		t.Fatal("expected an unknown tool to produce an IsError result")
	}
}

func TestExecuteRejectsEmptyToolName(t *testing.T) {
	e := newTestExecutor()
	results := e.ExecuteAll(context.Background(), []Call{{ID: "1", Name: ""}})

	if results[0].Error == nil {
		t.Fatal("expected an empty tool name to be rejected")
	}
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	tool := &fakeTool{name: "flaky", failN: 1}
	e := newTestExecutor(tool)

	results := e.ExecuteAll(context.Background(), []Call{{ID: "1", Name: "flaky"}})

	if results[0].Error != nil {
		t.Fatalf("expected the retry to eventually succeed, got error: %v", results[0].Error)
	}
	if results[0].Attempts != 2 {
		t.Fatalf("expected 2 attempts (1 failure + 1 success), got %d", results[0].Attempts)
	}
}

func TestExecuteGivesUpAfterMaxRetries(t *testing.T) {
	tool := &fakeTool{name: "always-fails", failN: 100}
	e := newTestExecutor(tool)
	e.config.DefaultRetries = 1

	results := e.ExecuteAll(context.Background(), []Call{{ID: "1", Name: "always-fails"}})

	if results[0].Error == nil {
		t.Fatal("expected the call to fail after exhausting retries")
	}
	if results[0].Attempts != 2 {
		t.Fatalf("expected 2 attempts (1 retry), got %d", results[0].Attempts)
	}
}

func TestExecuteTimesOutSlowTool(t *testing.T) {
	tool := &fakeTool{name: "slow", delay: time.Second}
	e := newTestExecutor(tool)
	e.config.DefaultTimeout = 20 * time.Millisecond
	e.config.DefaultRetries = 0

	results := e.ExecuteAll(context.Background(), []Call{{ID: "1", Name: "slow"}})

	if results[0].Error == nil {
		t.Fatal("expected a timeout error")
	}

	snap := e.Metrics()
	if snap.TotalTimeouts == 0 {
		t.Fatal("expected the executor metrics to record at least one timeout")
	}
}

func TestExecuteRecoversToolPanic(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(&panicTool{})
	e := NewExecutor(registry, DefaultExecutorConfig())
	e.config.DefaultRetries = 0

	results := e.ExecuteAll(context.Background(), []Call{{ID: "1", Name: "panics"}})
	if results[0].Error == nil {
		t.Fatal("expected a panicking tool to surface as an error, not crash the test")
	}
}

type panicTool struct{}

func (p *panicTool) Name() string           { return "panics" }
func (p *panicTool) Description() string    { return "always panics" }
func (p *panicTool) Risk() RiskLevel         { return RiskLow }
func (p *panicTool) Schema() json.RawMessage { return json.RawMessage(`{}`) }
func (p *panicTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	panic("boom")
}
