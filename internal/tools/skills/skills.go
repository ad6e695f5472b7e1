// Package skills implements the sync_skills tool, reloading SKILL.md
// definitions from the workspace and reporting which ones loaded.
package skills

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/microclaw/microclaw/internal/agent"
	skillpkg "github.com/microclaw/microclaw/internal/skills"
)

// SyncTool implements sync_skills.
type SyncTool struct {
	Manager *skillpkg.Manager
}

func (t *SyncTool) Name() string { return "sync_skills" }
func (t *SyncTool) Description() string {
	return "Reload SKILL.md definitions from the workspace and report which skills are available."
}
func (t *SyncTool) Risk() agent.RiskLevel     { return agent.RiskMedium }
func (t *SyncTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object","properties":{}}`) }

func (t *SyncTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	names, err := t.Manager.Sync()
	if err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	return &agent.ToolResult{Content: "loaded skills: " + strings.Join(names, ", ")}, nil
}
