package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/microclaw/microclaw/internal/models"
)

// PostgresBackend is the production persistence implementation, backed by
// CockroachDB/PostgreSQL via pgx. Only the chat lookup path is implemented
// end-to-end here; the remaining store methods return an explicit "not
// implemented" error rather than silently behaving like the in-memory
// backend. A deployment that needs durable sessions/memories/runs today
// should run the in-memory backend behind periodic snapshotting, or finish
// wiring the remaining queries following the pattern below.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend connects to dsn and verifies connectivity.
func NewPostgresBackend(ctx context.Context, dsn string) (*PostgresBackend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("storage: ping postgres: %w", err)
	}
	return &PostgresBackend{pool: pool}, nil
}

// Close releases the connection pool.
func (p *PostgresBackend) Close() {
	p.pool.Close()
}

func (p *PostgresBackend) UpsertChat(ctx context.Context, chat models.Chat) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO chats (id, chat_type, external_id, channel_name, conversation_kind, display_name, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET last_activity_at = EXCLUDED.last_activity_at
	`, chat.ID, chat.ChatType, chat.ExternalID, chat.ChannelName, chat.ConversationKind, chat.DisplayName, chat.CreatedAt, chat.LastActivityAt)
	return err
}

func (p *PostgresBackend) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, chat_type, external_id, channel_name, conversation_kind, display_name, created_at, last_activity_at
		FROM chats WHERE id = $1
	`, id)

	var c models.Chat
	if err := row.Scan(&c.ID, &c.ChatType, &c.ExternalID, &c.ChannelName, &c.ConversationKind, &c.DisplayName, &c.CreatedAt, &c.LastActivityAt); err != nil {
		return nil, fmt.Errorf("storage: get chat: %w", err)
	}
	return &c, nil
}

func (p *PostgresBackend) FindChatByExternalID(ctx context.Context, channelName, externalID string) (*models.Chat, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, chat_type, external_id, channel_name, conversation_kind, display_name, created_at, last_activity_at
		FROM chats WHERE channel_name = $1 AND external_id = $2
	`, channelName, externalID)

	var c models.Chat
	if err := row.Scan(&c.ID, &c.ChatType, &c.ExternalID, &c.ChannelName, &c.ConversationKind, &c.DisplayName, &c.CreatedAt, &c.LastActivityAt); err != nil {
		return nil, nil
	}
	return &c, nil
}

var errNotImplemented = fmt.Errorf("storage: postgres backend does not implement this operation yet")

func (p *PostgresBackend) CreateSession(ctx context.Context, session models.Session) error { return errNotImplemented }
func (p *PostgresBackend) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return nil, errNotImplemented
}
func (p *PostgresBackend) GetActiveSessionForChat(ctx context.Context, chatID string) (*models.Session, error) {
	return nil, errNotImplemented
}
func (p *PostgresBackend) ListChildSessions(ctx context.Context, parentID string) ([]models.Session, error) {
	return nil, errNotImplemented
}
func (p *PostgresBackend) DeleteSession(ctx context.Context, id string) error { return errNotImplemented }

func (p *PostgresBackend) SaveMemory(ctx context.Context, mem models.StructuredMemory) error {
	return errNotImplemented
}
func (p *PostgresBackend) GetMemory(ctx context.Context, id string) (*models.StructuredMemory, error) {
	return nil, errNotImplemented
}
func (p *PostgresBackend) UpdateMemory(ctx context.Context, mem models.StructuredMemory) error {
	return errNotImplemented
}
func (p *PostgresBackend) ArchiveMemory(ctx context.Context, id string) error { return errNotImplemented }
func (p *PostgresBackend) SearchMemories(ctx context.Context, chatID, query string, limit int, includeArchived bool) ([]models.StructuredMemory, error) {
	return nil, errNotImplemented
}

func (p *PostgresBackend) CreateRun(ctx context.Context, run models.Run) error { return errNotImplemented }
func (p *PostgresBackend) UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errMsg string) error {
	return errNotImplemented
}
func (p *PostgresBackend) GetRun(ctx context.Context, id string) (*models.Run, error) {
	return nil, errNotImplemented
}
func (p *PostgresBackend) AppendEvent(ctx context.Context, event models.RunEvent) error { return errNotImplemented }
func (p *PostgresBackend) EventsSince(ctx context.Context, runID string, afterSeq int64) ([]models.RunEvent, error) {
	return nil, errNotImplemented
}
