// Package memory implements the write_memory tool and the
// structured_memory_search/delete/update family, wired to
// storage.MemoryStore so durable facts survive session resets and forks.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/microclaw/microclaw/internal/agent"
	"github.com/microclaw/microclaw/internal/models"
	"github.com/microclaw/microclaw/internal/storage"
)

// validCategories mirrors the category enum every structured memory is
// classified into.
var validCategories = map[string]bool{"PROFILE": true, "KNOWLEDGE": true, "EVENT": true}

const maxContentChars = 300

// callerChatID reads the injected auth context, defaulting to "" (an
// unscoped call, e.g. a direct unit test) rather than failing outright.
func callerChatID(params json.RawMessage) string {
	auth, ok := agent.AuthContextFromInput(params)
	if !ok {
		return ""
	}
	return auth.CallerChatID
}

// WriteTool implements write_memory: save a new durable fact, scoped to the
// calling chat unless the caller is a control chat requesting global scope.
type WriteTool struct {
	Store storage.MemoryStore
}

func (t *WriteTool) Name() string { return "write_memory" }
func (t *WriteTool) Description() string {
	return "Save a durable fact extracted from conversation, categorized as PROFILE, KNOWLEDGE, or EVENT."
}
func (t *WriteTool) Risk() agent.RiskLevel { return agent.RiskMedium }
func (t *WriteTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"content": {"type": "string", "description": "Fact to remember (max 300 characters)"},
			"category": {"type": "string", "enum": ["PROFILE", "KNOWLEDGE", "EVENT"]},
			"global": {"type": "boolean", "description": "Save as a global memory visible to every chat (control chats only, default false)"}
		},
		"required": ["content", "category"]
	}`)
}

func (t *WriteTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in struct {
		Content  string `json:"content"`
		Category string `json:"category"`
		Global   bool   `json:"global"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return &agent.ToolResult{Content: "Missing or empty 'content' parameter", IsError: true}, nil
	}
	if len(content) > maxContentChars {
		return &agent.ToolResult{Content: "Content exceeds 300 character limit", IsError: true}, nil
	}
	if !validCategories[in.Category] {
		return &agent.ToolResult{Content: fmt.Sprintf("Invalid category %q. Must be one of: PROFILE, KNOWLEDGE, EVENT", in.Category), IsError: true}, nil
	}

	var chatID *string
	if in.Global {
		auth, ok := agent.AuthContextFromInput(params)
		if !ok || !auth.IsControlChat() {
			caller := callerChatID(params)
			return &agent.ToolResult{Content: fmt.Sprintf("Permission denied: only control chats can write global memories (caller: %s)", caller), IsError: true}, nil
		}
	} else {
		caller := callerChatID(params)
		chatID = &caller
	}

	now := time.Now()
	mem := models.StructuredMemory{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Category:  in.Category,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.Store.SaveMemory(ctx, mem); err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	return &agent.ToolResult{Content: fmt.Sprintf("Memory id=%s saved.", mem.ID)}, nil
}

// SearchTool implements structured_memory_search.
type SearchTool struct {
	Store storage.MemoryStore
}

func (t *SearchTool) Name() string { return "structured_memory_search" }
func (t *SearchTool) Description() string {
	return "Search structured memories extracted from past conversations. Returns memories whose content contains the query string."
}
func (t *SearchTool) Risk() agent.RiskLevel { return agent.RiskLow }
func (t *SearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Keyword(s) to search for in memory content"},
			"limit": {"type": "integer", "description": "Maximum number of results to return (default 10, max 50)"},
			"include_archived": {"type": "boolean", "description": "Whether to include archived memories in results (default false)"}
		},
		"required": ["query"]
	}`)
}

func (t *SearchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in struct {
		Query           string `json:"query"`
		Limit           int    `json:"limit"`
		IncludeArchived bool   `json:"include_archived"`
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}

	query := strings.TrimSpace(in.Query)
	if query == "" {
		return &agent.ToolResult{Content: "Missing or empty 'query' parameter", IsError: true}, nil
	}

	limit := in.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	mems, err := t.Store.SearchMemories(ctx, callerChatID(params), query, limit, in.IncludeArchived)
	if err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("Search failed: %s", err), IsError: true}, nil
	}
	if len(mems) == 0 {
		return &agent.ToolResult{Content: "No memories found matching that query."}, nil
	}

	lines := make([]string, 0, len(mems))
	for _, m := range mems {
		scope := "chat"
		if m.IsGlobal() {
			scope = "global"
		}
		lines = append(lines, fmt.Sprintf("[id=%s] [%s] [%s] %s", m.ID, m.Category, scope, m.Content))
	}
	return &agent.ToolResult{Content: strings.Join(lines, "\n")}, nil
}

// authorizeMemoryAccess enforces structured_memory_delete/update's shared
// ownership rule: a chat-owned memory requires caller_chat_id access to
// that chat; a global memory requires the caller to be a control chat.
func authorizeMemoryAccess(params json.RawMessage, mem models.StructuredMemory, action string) error {
	if mem.IsGlobal() {
		auth, ok := agent.AuthContextFromInput(params)
		if ok && !auth.IsControlChat() {
			return fmt.Errorf("Permission denied: only control chats can %s global memories (caller: %s)", action, auth.CallerChatID)
		}
		return nil
	}
	return agent.AuthorizeChatAccess(params, *mem.ChatID)
}

// DeleteTool implements structured_memory_delete.
type DeleteTool struct {
	Store storage.MemoryStore
}

func (t *DeleteTool) Name() string { return "structured_memory_delete" }
func (t *DeleteTool) Description() string {
	return "Archive a structured memory by its id (soft delete). Use structured_memory_search first to find the id. You can only archive memories that belong to the current chat or global memories if you are a control chat."
}
func (t *DeleteTool) Risk() agent.RiskLevel { return agent.RiskMedium }
func (t *DeleteTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"id":{"type":"string","description":"The id of the memory to delete"}},"required":["id"]}`)
}

func (t *DeleteTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in struct{ ID string }
	if err := json.Unmarshal(params, &in); err != nil || in.ID == "" {
		return &agent.ToolResult{Content: "Missing 'id' parameter", IsError: true}, nil
	}

	mem, err := t.Store.GetMemory(ctx, in.ID)
	if err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("Memory id=%s not found", in.ID), IsError: true}, nil
	}

	if err := authorizeMemoryAccess(params, *mem, "delete"); err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}

	if err := t.Store.ArchiveMemory(ctx, in.ID); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("Delete failed: %s", err), IsError: true}, nil
	}
	return &agent.ToolResult{Content: fmt.Sprintf("Memory id=%s archived.", in.ID)}, nil
}

// UpdateTool implements structured_memory_update.
type UpdateTool struct {
	Store storage.MemoryStore
}

func (t *UpdateTool) Name() string { return "structured_memory_update" }
func (t *UpdateTool) Description() string {
	return "Update the content or category of an existing structured memory. Use this to correct outdated or wrong memories instead of creating a duplicate."
}
func (t *UpdateTool) Risk() agent.RiskLevel { return agent.RiskMedium }
func (t *UpdateTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"id": {"type": "string", "description": "The id of the memory to update"},
			"content": {"type": "string", "description": "New content for the memory (max 300 characters)"},
			"category": {"type": "string", "description": "Category: PROFILE, KNOWLEDGE, or EVENT", "enum": ["PROFILE", "KNOWLEDGE", "EVENT"]}
		},
		"required": ["id", "content"]
	}`)
}

func (t *UpdateTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in struct {
		ID       string  `json:"id"`
		Content  string  `json:"content"`
		Category *string `json:"category"`
	}
	if err := json.Unmarshal(params, &in); err != nil || in.ID == "" {
		return &agent.ToolResult{Content: "Missing 'id' parameter", IsError: true}, nil
	}

	content := strings.TrimSpace(in.Content)
	if content == "" {
		return &agent.ToolResult{Content: "Missing or empty 'content' parameter", IsError: true}, nil
	}
	if len(content) > maxContentChars {
		return &agent.ToolResult{Content: "Content exceeds 300 character limit", IsError: true}, nil
	}

	mem, err := t.Store.GetMemory(ctx, in.ID)
	if err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("Memory id=%s not found", in.ID), IsError: true}, nil
	}

	if err := authorizeMemoryAccess(params, *mem, "update"); err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}

	category := mem.Category
	if in.Category != nil {
		category = *in.Category
	}
	if !validCategories[category] {
		return &agent.ToolResult{Content: fmt.Sprintf("Invalid category %q. Must be one of: PROFILE, KNOWLEDGE, EVENT", category), IsError: true}, nil
	}

	mem.Content = content
	mem.Category = category
	mem.UpdatedAt = time.Now()
	if err := t.Store.UpdateMemory(ctx, *mem); err != nil {
		return &agent.ToolResult{Content: fmt.Sprintf("Update failed: %s", err), IsError: true}, nil
	}
	return &agent.ToolResult{Content: fmt.Sprintf("Memory id=%s updated.", in.ID)}, nil
}
