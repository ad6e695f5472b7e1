// Package exec implements the bash tool, routing every command through the
// sandbox.Router so execution lands in the per-session container (or the
// host shell runner fallback) rather than running unconfined.
package exec

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/microclaw/microclaw/internal/agent"
	"github.com/microclaw/microclaw/internal/sandbox"
)

// ShellTool implements bash, the agent's command-execution tool and the
// only tool in the high-risk approval tier.
type ShellTool struct {
	Router     *sandbox.Router
	SessionKey string
	Timeout    time.Duration
}

// NewShellTool returns a tool bound to a single session's sandbox key, so
// successive calls from the same session reuse one long-lived container.
func NewShellTool(router *sandbox.Router, sessionKey string) *ShellTool {
	return &ShellTool{Router: router, SessionKey: sessionKey, Timeout: 30 * time.Second}
}

func (t *ShellTool) Name() string { return "bash" }
func (t *ShellTool) Description() string {
	return "Run a shell command in the sandboxed workspace and return its stdout/stderr/exit code."
}
func (t *ShellTool) Risk() agent.RiskLevel { return agent.RiskHigh }
func (t *ShellTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"command":{"type":"string"}},"required":["command"]}`)
}

func (t *ShellTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in struct{ Command string }
	if err := json.Unmarshal(params, &in); err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	if in.Command == "" {
		return &agent.ToolResult{Content: "command must not be empty", IsError: true}, nil
	}

	timeout := t.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := t.Router.Run(runCtx, t.SessionKey, []string{"sh", "-c", in.Command})
	if err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}

	out := fmt.Sprintf("exit=%d\n--- stdout ---\n%s\n--- stderr ---\n%s", res.ExitCode, res.Stdout, res.Stderr)
	if res.Timeout {
		out = "command timed out\n" + out
	}
	return &agent.ToolResult{Content: out, IsError: res.Timeout || res.ExitCode != 0}, nil
}
