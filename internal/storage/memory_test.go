package storage

import (
	"context"
	"testing"
	"time"

	"github.com/microclaw/microclaw/internal/models"
)

func TestChatUpsertAndLookupByExternalID(t *testing.T) {
	store := NewMemoryBackend()
	ctx := context.Background()

	chat := models.Chat{ID: "chat-1", ChannelName: "telegram", ExternalID: "ext-1", CreatedAt: time.Now()}
	if err := store.UpsertChat(ctx, chat); err != nil {
		t.Fatal(err)
	}

	found, err := store.FindChatByExternalID(ctx, "telegram", "ext-1")
	if err != nil {
		t.Fatal(err)
	}
	if found == nil || found.ID != "chat-1" {
		t.Fatalf("expected to find chat-1, got %+v", found)
	}

	missing, err := store.FindChatByExternalID(ctx, "telegram", "no-such-ext")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatalf("expected no chat for an unknown external id, got %+v", missing)
	}
}

func TestGetChatNotFound(t *testing.T) {
	store := NewMemoryBackend()
	if _, err := store.GetChat(context.Background(), "missing"); err == nil {
		t.Fatal("expected an error for an unknown chat id")
	}
}

func TestGetActiveSessionForChatPicksMostRecentRoot(t *testing.T) {
	store := NewMemoryBackend()
	ctx := context.Background()

	older := models.Session{ID: "s1", ChatID: "chat-1", CreatedAt: time.Now().Add(-time.Hour)}
	newer := models.Session{ID: "s2", ChatID: "chat-1", CreatedAt: time.Now()}
	forked := models.Session{ID: "s3", ChatID: "chat-1", ParentSessionID: "s2", CreatedAt: time.Now().Add(time.Hour)}

	for _, s := range []models.Session{older, newer, forked} {
		if err := store.CreateSession(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	active, err := store.GetActiveSessionForChat(ctx, "chat-1")
	if err != nil {
		t.Fatal(err)
	}
	if active == nil || active.ID != "s2" {
		t.Fatalf("expected the most recent root session s2, got %+v", active)
	}
}

func TestListChildSessions(t *testing.T) {
	store := NewMemoryBackend()
	ctx := context.Background()

	root := models.Session{ID: "root", ChatID: "chat-1"}
	child1 := models.Session{ID: "child-1", ChatID: "chat-1", ParentSessionID: "root"}
	child2 := models.Session{ID: "child-2", ChatID: "chat-1", ParentSessionID: "root"}

	for _, s := range []models.Session{root, child1, child2} {
		if err := store.CreateSession(ctx, s); err != nil {
			t.Fatal(err)
		}
	}

	children, err := store.ListChildSessions(ctx, "root")
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
}

func TestRunLifecycleAndEventReplay(t *testing.T) {
	store := NewMemoryBackend()
	ctx := context.Background()

	run := models.Run{ID: "run-1", ChatID: "chat-1", SessionID: "sess-1", Status: models.RunStatusRunning, StartedAt: time.Now()}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	if err := store.AppendEvent(ctx, models.RunEvent{RunID: "run-1", Seq: 1, Type: "delta"}); err != nil {
		t.Fatal(err)
	}
	if err := store.AppendEvent(ctx, models.RunEvent{RunID: "run-1", Seq: 2, Type: "done"}); err != nil {
		t.Fatal(err)
	}

	events, err := store.EventsSince(ctx, "run-1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Seq != 2 {
		t.Fatalf("expected only the event after seq 1, got %+v", events)
	}

	if err := store.UpdateRunStatus(ctx, "run-1", models.RunStatusCompleted, ""); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.RunStatusCompleted {
		t.Fatalf("expected status %q, got %q", models.RunStatusCompleted, got.Status)
	}
}

func TestUpdateRunStatusUnknownRun(t *testing.T) {
	store := NewMemoryBackend()
	if err := store.UpdateRunStatus(context.Background(), "missing", models.RunStatusFailed, "boom"); err == nil {
		t.Fatal("expected an error updating an unknown run")
	}
}
