package models

import "time"

// SessionResetMode controls what `reset` does to a session's transcript.
type SessionResetMode string

const (
	ResetModeArchive SessionResetMode = "archive"
	ResetModeClear   SessionResetMode = "clear"
)

// Session is the persisted agent-turn context for one chat. Sessions form a
// tree via ParentSessionID so a chat can be forked into a scratch branch and
// later discarded without touching the parent's history.
type Session struct {
	ID             string           `json:"id"`
	ChatID         string           `json:"chat_id"`
	ParentSessionID string          `json:"parent_session_id,omitempty"`
	SessionKey     string           `json:"session_key"`
	Title          string           `json:"title,omitempty"`
	Metadata       map[string]any   `json:"metadata,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	LastResetMode  SessionResetMode `json:"last_reset_mode,omitempty"`
}

// StructuredMemory is a durable fact recorded by the structured_memory_*
// tool family. A nil ChatID means the memory is global — visible to every
// chat and mutable only by a control chat; a non-nil ChatID scopes it to
// that chat, mutable by that chat or by a control chat.
type StructuredMemory struct {
	ID         string         `json:"id"`
	ChatID     *string        `json:"chat_id"`
	SessionID  string         `json:"session_id,omitempty"`
	Category   string         `json:"category"`
	Content    string         `json:"content"`
	IsArchived bool           `json:"is_archived"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// IsGlobal reports whether the memory applies to every chat rather than
// one specific chat.
func (m StructuredMemory) IsGlobal() bool { return m.ChatID == nil }
