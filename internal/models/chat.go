// Package models defines the core entity types shared across the runtime:
// chats, messages, sessions, structured memory, runs, and the operator-plane
// auth/audit records.
package models

import "time"

// ChatType identifies the kind of conversation surface a chat occurred on.
// It is distinct from ChannelName: a channel adapter may host more than one
// chat type (e.g. Discord hosts both "discord_dm" and "discord_guild").
type ChatType string

// ConversationKind groups chat types into the three policy buckets the
// channel registry uses to decide session scoping and cross-chat behavior.
type ConversationKind string

const (
	ConversationDirect ConversationKind = "direct"
	ConversationGroup  ConversationKind = "group"
	ConversationLocal  ConversationKind = "local"
)

// Chat is a routable conversation surface: one Telegram DM, one Discord
// guild channel, one web UI tab, etc.
type Chat struct {
	ID               string           `json:"id"`
	ChatType         ChatType         `json:"chat_type"`
	ExternalID       string           `json:"external_id"`
	ChannelName      string           `json:"channel_name"`
	ConversationKind ConversationKind `json:"conversation_kind"`
	DisplayName      string           `json:"display_name,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	LastActivityAt   time.Time        `json:"last_activity_at"`
}
