package memory

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/microclaw/microclaw/internal/agent"
	"github.com/microclaw/microclaw/internal/storage"
)

func newStore() *storage.MemoryBackend {
	return storage.NewMemoryBackend()
}

func withAuth(t *testing.T, fields map[string]any, auth agent.ToolAuthContext) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal fields: %v", err)
	}
	return agent.InjectAuthContext(raw, auth)
}

func TestWriteToolSavesChatScoped(t *testing.T) {
	store := newStore()
	tool := &WriteTool{Store: store}

	params := withAuth(t, map[string]any{"content": "User prefers dark mode", "category": "PROFILE"},
		agent.ToolAuthContext{CallerChannel: "web", CallerChatID: "chat-1"})

	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("write_memory reported a tool error: %s", res.Content)
	}

	mems, err := store.SearchMemories(context.Background(), "chat-1", "dark mode", 10, false)
	if err != nil || len(mems) != 1 {
		t.Fatalf("expected the memory to be findable, got %v err=%v", mems, err)
	}
	if mems[0].IsGlobal() {
		t.Fatal("expected a chat-scoped memory, got global")
	}
}

func TestWriteToolRejectsOversizedContent(t *testing.T) {
	store := newStore()
	tool := &WriteTool{Store: store}
	params := withAuth(t, map[string]any{"content": strings.Repeat("x", 301), "category": "KNOWLEDGE"},
		agent.ToolAuthContext{CallerChannel: "web", CallerChatID: "chat-1"})

	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected content over 300 characters to be rejected")
	}
}

func TestWriteToolRejectsInvalidCategory(t *testing.T) {
	store := newStore()
	tool := &WriteTool{Store: store}
	params := withAuth(t, map[string]any{"content": "something worth remembering", "category": "NOTES"},
		agent.ToolAuthContext{CallerChannel: "web", CallerChatID: "chat-1"})

	res, _ := tool.Execute(context.Background(), params)
	if !res.IsError {
		t.Fatal("expected an invalid category to be rejected")
	}
}

func TestWriteToolGlobalRequiresControlChat(t *testing.T) {
	store := newStore()
	tool := &WriteTool{Store: store}
	params := withAuth(t, map[string]any{"content": "org-wide deploy freeze on Fridays", "category": "EVENT", "global": true},
		agent.ToolAuthContext{CallerChannel: "web", CallerChatID: "chat-1"})

	res, _ := tool.Execute(context.Background(), params)
	if !res.IsError {
		t.Fatal("expected a non-control chat to be denied a global write")
	}

	controlParams := withAuth(t, map[string]any{"content": "org-wide deploy freeze on Fridays", "category": "EVENT", "global": true},
		agent.ToolAuthContext{CallerChannel: "web", CallerChatID: "control-chat", ControlChatIDs: []string{"control-chat"}})
	res2, err := tool.Execute(context.Background(), controlParams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res2.IsError {
		t.Fatalf("expected a control chat to write a global memory, got error: %s", res2.Content)
	}
}

func TestSearchToolReturnsNoMatchMessage(t *testing.T) {
	store := newStore()
	tool := &SearchTool{Store: store}
	params := withAuth(t, map[string]any{"query": "nonexistent"}, agent.ToolAuthContext{CallerChannel: "web", CallerChatID: "chat-1"})

	res, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("expected an empty search to succeed with no results, got error: %s", res.Content)
	}
	if res.Content != "No memories found matching that query." {
		t.Fatalf("unexpected message: %s", res.Content)
	}
}

func TestSearchToolClampsLimit(t *testing.T) {
	store := newStore()
	tool := &SearchTool{Store: store}
	params := withAuth(t, map[string]any{"query": "x", "limit": 500}, agent.ToolAuthContext{CallerChannel: "web", CallerChatID: "chat-1"})

	if _, err := tool.Execute(context.Background(), params); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteToolEnforcesOwnership(t *testing.T) {
	store := newStore()
	writeTool := &WriteTool{Store: store}
	writeParams := withAuth(t, map[string]any{"content": "only chat-1 should see this", "category": "KNOWLEDGE"},
		agent.ToolAuthContext{CallerChannel: "web", CallerChatID: "chat-1"})
	writeTool.Execute(context.Background(), writeParams)

	mems, _ := store.SearchMemories(context.Background(), "chat-1", "only chat-1", 10, false)
	if len(mems) != 1 {
		t.Fatalf("expected the memory to exist, got %v", mems)
	}
	id := mems[0].ID

	deleteTool := &DeleteTool{Store: store}
	deniedParams := withAuth(t, map[string]any{"id": id}, agent.ToolAuthContext{CallerChannel: "web", CallerChatID: "chat-2"})
	res, _ := deleteTool.Execute(context.Background(), deniedParams)
	if !res.IsError {
		t.Fatal("expected a different chat to be denied deletion")
	}

	allowedParams := withAuth(t, map[string]any{"id": id}, agent.ToolAuthContext{CallerChannel: "web", CallerChatID: "chat-1"})
	res2, err := deleteTool.Execute(context.Background(), allowedParams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res2.IsError {
		t.Fatalf("expected the owning chat to delete successfully, got error: %s", res2.Content)
	}

	withArchived, _ := store.SearchMemories(context.Background(), "chat-1", "only chat-1", 10, true)
	if len(withArchived) != 1 || !withArchived[0].IsArchived {
		t.Fatal("expected the memory to still exist, archived")
	}
}

func TestUpdateToolValidatesContentAndOwnership(t *testing.T) {
	store := newStore()
	writeTool := &WriteTool{Store: store}
	writeParams := withAuth(t, map[string]any{"content": "old fact", "category": "KNOWLEDGE"},
		agent.ToolAuthContext{CallerChannel: "web", CallerChatID: "chat-1"})
	writeTool.Execute(context.Background(), writeParams)
	mems, _ := store.SearchMemories(context.Background(), "chat-1", "old fact", 10, false)
	id := mems[0].ID

	updateTool := &UpdateTool{Store: store}

	tooLong := withAuth(t, map[string]any{"id": id, "content": strings.Repeat("y", 301)},
		agent.ToolAuthContext{CallerChannel: "web", CallerChatID: "chat-1"})
	if res, _ := updateTool.Execute(context.Background(), tooLong); !res.IsError {
		t.Fatal("expected oversized content to be rejected")
	}

	denied := withAuth(t, map[string]any{"id": id, "content": "updated fact"},
		agent.ToolAuthContext{CallerChannel: "web", CallerChatID: "chat-2"})
	if res, _ := updateTool.Execute(context.Background(), denied); !res.IsError {
		t.Fatal("expected a different chat to be denied update")
	}

	ok := withAuth(t, map[string]any{"id": id, "content": "updated fact"},
		agent.ToolAuthContext{CallerChannel: "web", CallerChatID: "chat-1"})
	res, err := updateTool.Execute(context.Background(), ok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsError {
		t.Fatalf("expected the owning chat to update successfully, got error: %s", res.Content)
	}

	refreshed, err := store.GetMemory(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refreshed.Content != "updated fact" {
		t.Fatalf("expected content to be updated, got %q", refreshed.Content)
	}
}
