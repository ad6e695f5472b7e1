package cron

import (
	"context"
	"encoding/json"
	"testing"

	cronpkg "github.com/microclaw/microclaw/internal/cron"
)

func TestScheduleToolRegistersTask(t *testing.T) {
	scheduler := cronpkg.New()
	defer scheduler.Stop()

	tool := &ScheduleTool{
		Scheduler: scheduler,
		ChatID:    "chat-1",
		OnFire:    func(string, string, string) {},
	}

	params, _ := json.Marshal(map[string]string{"task_id": "reminder", "cron": "@every 1h", "prompt": "say hi"})
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("schedule_task reported a tool error: %s", res.Content)
	}

	if err := scheduler.Pause("reminder"); err != nil {
		t.Fatalf("expected the task to exist after scheduling: %v", err)
	}
}

func TestScheduleToolRejectsDuplicateTaskID(t *testing.T) {
	scheduler := cronpkg.New()
	defer scheduler.Stop()

	tool := &ScheduleTool{Scheduler: scheduler, OnFire: func(string, string, string) {}}
	params, _ := json.Marshal(map[string]string{"task_id": "dup", "cron": "@every 1h", "prompt": "x"})

	if _, err := tool.Execute(context.Background(), params); err != nil {
		t.Fatal(err)
	}
	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected scheduling a duplicate task id to be reported as a tool error")
	}
}

func TestControlToolsRoundTrip(t *testing.T) {
	scheduler := cronpkg.New()
	defer scheduler.Stop()

	schedule := &ScheduleTool{Scheduler: scheduler, OnFire: func(string, string, string) {}}
	params, _ := json.Marshal(map[string]string{"task_id": "job", "cron": "@every 1h", "prompt": "x"})
	if _, err := schedule.Execute(context.Background(), params); err != nil {
		t.Fatal(err)
	}

	pause := NewPauseTool(scheduler)
	idParams, _ := json.Marshal(map[string]string{"task_id": "job"})
	res, err := pause.Execute(context.Background(), idParams)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("pause_scheduled_task reported a tool error: %s", res.Content)
	}

	resume := NewResumeTool(scheduler)
	res, err = resume.Execute(context.Background(), idParams)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("resume_scheduled_task reported a tool error: %s", res.Content)
	}

	cancel := NewCancelTool(scheduler)
	res, err = cancel.Execute(context.Background(), idParams)
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("cancel_scheduled_task reported a tool error: %s", res.Content)
	}

	res, err = cancel.Execute(context.Background(), idParams)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Fatal("expected cancelling an already-cancelled task to report a tool error")
	}
}
