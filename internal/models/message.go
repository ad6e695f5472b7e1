package models

import (
	"encoding/json"
	"time"
)

// Role indicates the message author type, mirrored from the LLM transcript
// shape the agent loop builds requests from.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCall represents an LLM's request to execute a tool during a turn.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolResult represents the output of one tool execution, folded back into
// the transcript by the agent loop. StatusCode/Bytes/DurationMs/ErrorType
// are descriptive metadata surfaced on the tool_result stream event; they
// do not affect how the result is replayed into the next completion
// request.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
	StatusCode int    `json:"status_code"`
	Bytes      int    `json:"bytes"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	ErrorType  string `json:"error_type,omitempty"`
}

// Attachment represents a file or media artifact attached to a message.
type Attachment struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	URL      string `json:"url,omitempty"`
	Data     []byte `json:"-"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Message is one turn of transcript attached to a chat.
type Message struct {
	ID          string         `json:"id"`
	ChatID      string         `json:"chat_id"`
	Role        Role           `json:"role"`
	Content     string         `json:"content"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	ToolCalls   []ToolCall     `json:"tool_calls,omitempty"`
	ToolResults []ToolResult   `json:"tool_results,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}
