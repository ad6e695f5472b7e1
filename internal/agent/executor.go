package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/microclaw/microclaw/internal/metrics"
)

// ExecutorConfig bounds concurrency and per-tool retry/timeout behavior for
// ExecuteAll.
type ExecutorConfig struct {
	MaxConcurrency  int
	DefaultTimeout  time.Duration
	DefaultRetries  int
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
}

// DefaultExecutorConfig returns sane defaults: 5-way concurrency, 30s
// per-call timeout, 2 retries with exponential backoff capped at 5s.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrency:  5,
		DefaultTimeout:  30 * time.Second,
		DefaultRetries:  2,
		RetryBackoff:    100 * time.Millisecond,
		MaxRetryBackoff: 5 * time.Second,
	}
}

// ExecutorMetrics accumulates counters across the executor's lifetime under
// a single mutex — cheap enough given tool-call volume and simpler than
// per-field atomics.
type ExecutorMetrics struct {
	mu              sync.Mutex
	TotalExecutions int64
	TotalRetries    int64
	TotalFailures   int64
	TotalTimeouts   int64
	TotalPanics     int64
}

func (m *ExecutorMetrics) snapshot() ExecutorMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ExecutorMetrics{
		TotalExecutions: m.TotalExecutions,
		TotalRetries:    m.TotalRetries,
		TotalFailures:   m.TotalFailures,
		TotalTimeouts:   m.TotalTimeouts,
		TotalPanics:     m.TotalPanics,
	}
}

// Executor runs tool calls concurrently against a ToolRegistry, preserving
// result ordering relative to the input call slice even though execution
// itself is unordered.
type Executor struct {
	registry  *ToolRegistry
	config    ExecutorConfig
	sem       chan struct{}
	metrics   *ExecutorMetrics
	collector *metrics.Collector
}

// SetCollector attaches a Prometheus collector. Left unset, ExecuteAll
// still maintains its in-process ExecutorMetrics counters but emits no
// Prometheus series.
func (e *Executor) SetCollector(c *metrics.Collector) {
	e.collector = c
}

func (e *Executor) record(toolName, status string, dur time.Duration) {
	if e.collector == nil {
		return
	}
	e.collector.ToolCallTotal.WithLabelValues(toolName, status).Inc()
	e.collector.ToolCallDuration.WithLabelValues(toolName).Observe(dur.Seconds())
}

// NewExecutor builds an Executor bound to registry.
func NewExecutor(registry *ToolRegistry, cfg ExecutorConfig) *Executor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 5
	}
	return &Executor{
		registry: registry,
		config:   cfg,
		sem:      make(chan struct{}, cfg.MaxConcurrency),
		metrics:  &ExecutorMetrics{},
	}
}

// Metrics returns a point-in-time copy of the executor's counters.
func (e *Executor) Metrics() ExecutorMetrics {
	return e.metrics.snapshot()
}

// Call is one pending tool invocation.
type Call struct {
	ID     string
	Name   string
	Params json.RawMessage
}

// ExecutionResult is the outcome of one Call, always present in the same
// index as its Call in the input slice to ExecuteAll.
type ExecutionResult struct {
	CallID   string
	ToolName string
	Result   *ToolResult
	Error    error
	Duration time.Duration
	Attempts int
}

// ExecuteAll runs every call concurrently (bounded by MaxConcurrency) and
// returns results in the same order as calls, regardless of completion
// order.
func (e *Executor) ExecuteAll(ctx context.Context, calls []Call) []ExecutionResult {
	results := make([]ExecutionResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call Call) {
			defer wg.Done()
			results[i] = e.execute(ctx, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

func (e *Executor) execute(ctx context.Context, call Call) ExecutionResult {
	start := time.Now()
	e.metrics.mu.Lock()
	e.metrics.TotalExecutions++
	e.metrics.mu.Unlock()

	if err := validateName(call.Name); err != nil {
		e.record(call.Name, "invalid", time.Since(start))
		return ExecutionResult{CallID: call.ID, ToolName: call.Name, Error: err, Duration: time.Since(start)}
	}
	if err := validateParamsSize(call.Params); err != nil {
		e.record(call.Name, "invalid", time.Since(start))
		return ExecutionResult{CallID: call.ID, ToolName: call.Name, Error: err, Duration: time.Since(start)}
	}

	tool, ok := e.registry.Get(call.Name)
	if !ok {
		e.record(call.Name, "unknown_tool", time.Since(start))
		return ExecutionResult{
			CallID:   call.ID,
			ToolName: call.Name,
			Result:   &ToolResult{Content: fmt.Sprintf("unknown tool: %s", call.Name), IsError: true},
			Duration: time.Since(start),
		}
	}

	timeout := e.config.DefaultTimeout
	backoff := e.config.RetryBackoff
	maxBackoff := e.config.MaxRetryBackoff

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= e.config.DefaultRetries; attempt++ {
		attempts++
		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			return ExecutionResult{CallID: call.ID, ToolName: call.Name, Error: ctx.Err(), Duration: time.Since(start), Attempts: attempts}
		}

		result, err := e.executeWithTimeout(ctx, tool, call.Params, timeout)
		<-e.sem

		if err == nil {
			status := "ok"
			if result != nil && result.IsError {
				status = "tool_error"
			}
			e.record(call.Name, status, time.Since(start))
			return ExecutionResult{CallID: call.ID, ToolName: call.Name, Result: result, Duration: time.Since(start), Attempts: attempts}
		}

		lastErr = err
		if !isRetryable(err) || attempt == e.config.DefaultRetries {
			break
		}

		e.metrics.mu.Lock()
		e.metrics.TotalRetries++
		e.metrics.mu.Unlock()

		sleep := backoff * time.Duration(1<<uint(attempt))
		if sleep > maxBackoff {
			sleep = maxBackoff
		}
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = e.config.DefaultRetries
		}
	}

	e.metrics.mu.Lock()
	e.metrics.TotalFailures++
	e.metrics.mu.Unlock()
	e.record(call.Name, "failed", time.Since(start))

	return ExecutionResult{CallID: call.ID, ToolName: call.Name, Error: lastErr, Duration: time.Since(start), Attempts: attempts}
}

// executeWithTimeout races tool.Execute against a deadline and recovers
// panics into an error result rather than crashing the loop goroutine.
func (e *Executor) executeWithTimeout(ctx context.Context, tool Tool, params json.RawMessage, timeout time.Duration) (*ToolResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result *ToolResult
		err    error
	}
	ch := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.metrics.mu.Lock()
				e.metrics.TotalPanics++
				e.metrics.mu.Unlock()
				ch <- outcome{err: fmt.Errorf("tool panic: %v\n%s", r, debug.Stack())}
			}
		}()
		result, err := tool.Execute(runCtx, params)
		ch <- outcome{result: result, err: err}
	}()

	select {
	case o := <-ch:
		return o.result, o.err
	case <-runCtx.Done():
		e.metrics.mu.Lock()
		e.metrics.TotalTimeouts++
		e.metrics.mu.Unlock()
		return nil, fmt.Errorf("tool %s timed out after %s", tool.Name(), timeout)
	}
}

func isRetryable(err error) bool {
	return !errors.Is(err, context.Canceled)
}
