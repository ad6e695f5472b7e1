// Package cron implements the schedule_task/pause_scheduled_task/
// resume_scheduled_task/cancel_scheduled_task tool family, wrapping
// internal/cron.Scheduler.
package cron

import (
	"context"
	"encoding/json"

	"github.com/microclaw/microclaw/internal/agent"
	cronpkg "github.com/microclaw/microclaw/internal/cron"
)

// Dispatch is invoked on a scheduled task's fire, outside any agent turn's
// goroutine — implementations should start a fresh run rather than block.
type Dispatch func(taskID, chatID, prompt string)

// ScheduleTool implements schedule_task.
type ScheduleTool struct {
	Scheduler *cronpkg.Scheduler
	ChatID    string
	OnFire    Dispatch
}

func (t *ScheduleTool) Name() string { return "schedule_task" }
func (t *ScheduleTool) Description() string {
	return "Schedule a recurring prompt to run on a cron spec, identified by a task id."
}
func (t *ScheduleTool) Risk() agent.RiskLevel { return agent.RiskMedium }
func (t *ScheduleTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"task_id":{"type":"string"},"cron":{"type":"string"},"prompt":{"type":"string"}},"required":["task_id","cron","prompt"]}`)
}

func (t *ScheduleTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in struct{ TaskID, Cron, Prompt string }
	if err := json.Unmarshal(params, &in); err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}

	chatID, prompt := t.ChatID, in.Prompt
	err := t.Scheduler.Schedule(in.TaskID, in.Cron, func() {
		t.OnFire(in.TaskID, chatID, prompt)
	})
	if err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	return &agent.ToolResult{Content: "scheduled " + in.TaskID}, nil
}

// controlTool implements the shared shape of pause/resume/cancel_scheduled_task.
type controlTool struct {
	name      string
	desc      string
	scheduler *cronpkg.Scheduler
	apply     func(*cronpkg.Scheduler, string) error
}

func (t *controlTool) Name() string          { return t.name }
func (t *controlTool) Description() string   { return t.desc }
func (t *controlTool) Risk() agent.RiskLevel { return agent.RiskMedium }
func (t *controlTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"task_id":{"type":"string"}},"required":["task_id"]}`)
}

func (t *controlTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in struct{ TaskID string }
	if err := json.Unmarshal(params, &in); err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	if err := t.apply(t.scheduler, in.TaskID); err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	return &agent.ToolResult{Content: t.name + " " + in.TaskID}, nil
}

// NewPauseTool implements pause_scheduled_task.
func NewPauseTool(s *cronpkg.Scheduler) agent.Tool {
	return &controlTool{name: "pause_scheduled_task", desc: "Pause a scheduled task without forgetting it.", scheduler: s, apply: (*cronpkg.Scheduler).Pause}
}

// NewResumeTool implements resume_scheduled_task.
func NewResumeTool(s *cronpkg.Scheduler) agent.Tool {
	return &controlTool{name: "resume_scheduled_task", desc: "Resume a previously paused scheduled task.", scheduler: s, apply: (*cronpkg.Scheduler).Resume}
}

// NewCancelTool implements cancel_scheduled_task.
func NewCancelTool(s *cronpkg.Scheduler) agent.Tool {
	return &controlTool{name: "cancel_scheduled_task", desc: "Permanently cancel a scheduled task.", scheduler: s, apply: (*cronpkg.Scheduler).Cancel}
}
