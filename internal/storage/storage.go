// Package storage defines the persistence contracts the runtime depends on
// and ships an in-memory reference implementation plus a pgx-backed
// implementation of the same interfaces whose chat methods run real queries
// and whose other methods return an error.
package storage

import (
	"context"

	"github.com/microclaw/microclaw/internal/models"
)

// ChatStore persists Chat records and resolves external-id lookups for
// inbound channel messages.
type ChatStore interface {
	UpsertChat(ctx context.Context, chat models.Chat) error
	GetChat(ctx context.Context, id string) (*models.Chat, error)
	FindChatByExternalID(ctx context.Context, channelName, externalID string) (*models.Chat, error)
}

// SessionStore persists Session records, independent of message history
// (which lives on MessageStore so the agent loop can depend on the smaller
// interface).
type SessionStore interface {
	CreateSession(ctx context.Context, session models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	GetActiveSessionForChat(ctx context.Context, chatID string) (*models.Session, error)
	ListChildSessions(ctx context.Context, parentID string) ([]models.Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// MemoryStore persists StructuredMemory records for the write_memory and
// structured_memory_* tool family. Deletion is a soft archive rather than a
// hard delete, so an archived memory can still be surfaced with
// include_archived.
type MemoryStore interface {
	SaveMemory(ctx context.Context, mem models.StructuredMemory) error
	GetMemory(ctx context.Context, id string) (*models.StructuredMemory, error)
	UpdateMemory(ctx context.Context, mem models.StructuredMemory) error
	ArchiveMemory(ctx context.Context, id string) error
	// SearchMemories returns memories whose content contains query
	// (case-insensitive), scoped to chatID's own memories plus every global
	// memory, newest first, capped at limit. Archived memories are excluded
	// unless includeArchived.
	SearchMemories(ctx context.Context, chatID string, query string, limit int, includeArchived bool) ([]models.StructuredMemory, error)
}

// RunStore persists Run records and their SSE replay log.
type RunStore interface {
	CreateRun(ctx context.Context, run models.Run) error
	UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errMsg string) error
	GetRun(ctx context.Context, id string) (*models.Run, error)
	AppendEvent(ctx context.Context, event models.RunEvent) error
	EventsSince(ctx context.Context, runID string, afterSeq int64) ([]models.RunEvent, error)
}
