package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/microclaw/microclaw/internal/models"
)

// MemoryBackend is an in-process implementation of every store interface in
// this package, used for tests and single-node deployments that don't need
// durability across restarts.
type MemoryBackend struct {
	mu        sync.RWMutex
	chats     map[string]models.Chat
	byExt     map[string]string // "channel:externalID" -> chat id
	sessions  map[string]models.Session
	memories  map[string]models.StructuredMemory
	runs      map[string]models.Run
	runEvents map[string][]models.RunEvent
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		chats:     make(map[string]models.Chat),
		byExt:     make(map[string]string),
		sessions:  make(map[string]models.Session),
		memories:  make(map[string]models.StructuredMemory),
		runs:      make(map[string]models.Run),
		runEvents: make(map[string][]models.RunEvent),
	}
}

func (m *MemoryBackend) UpsertChat(ctx context.Context, chat models.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chat.ID] = chat
	m.byExt[chat.ChannelName+":"+chat.ExternalID] = chat.ID
	return nil
}

func (m *MemoryBackend) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, fmt.Errorf("storage: chat %s not found", id)
	}
	return &c, nil
}

func (m *MemoryBackend) FindChatByExternalID(ctx context.Context, channelName, externalID string) (*models.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byExt[channelName+":"+externalID]
	if !ok {
		return nil, nil
	}
	c := m.chats[id]
	return &c, nil
}

func (m *MemoryBackend) CreateSession(ctx context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryBackend) GetSession(ctx context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("storage: session %s not found", id)
	}
	return &s, nil
}

func (m *MemoryBackend) GetActiveSessionForChat(ctx context.Context, chatID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *models.Session
	for _, s := range m.sessions {
		if s.ChatID != chatID || s.ParentSessionID != "" {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			sc := s
			latest = &sc
		}
	}
	return latest, nil
}

func (m *MemoryBackend) ListChildSessions(ctx context.Context, parentID string) ([]models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var children []models.Session
	for _, s := range m.sessions {
		if s.ParentSessionID == parentID {
			children = append(children, s)
		}
	}
	return children, nil
}

func (m *MemoryBackend) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemoryBackend) SaveMemory(ctx context.Context, mem models.StructuredMemory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memories[mem.ID] = mem
	return nil
}

func (m *MemoryBackend) GetMemory(ctx context.Context, id string) (*models.StructuredMemory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.memories[id]
	if !ok {
		return nil, fmt.Errorf("storage: memory %s not found", id)
	}
	return &mem, nil
}

func (m *MemoryBackend) UpdateMemory(ctx context.Context, mem models.StructuredMemory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.memories[mem.ID]; !ok {
		return fmt.Errorf("storage: memory %s not found", mem.ID)
	}
	m.memories[mem.ID] = mem
	return nil
}

func (m *MemoryBackend) ArchiveMemory(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.memories[id]
	if !ok {
		return fmt.Errorf("storage: memory %s not found", id)
	}
	mem.IsArchived = true
	mem.UpdatedAt = time.Now()
	m.memories[id] = mem
	return nil
}

func (m *MemoryBackend) SearchMemories(ctx context.Context, chatID, query string, limit int, includeArchived bool) ([]models.StructuredMemory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lowerQuery := strings.ToLower(query)
	var out []models.StructuredMemory
	for _, mem := range m.memories {
		if !mem.IsGlobal() && *mem.ChatID != chatID {
			continue
		}
		if mem.IsArchived && !includeArchived {
			continue
		}
		if lowerQuery != "" && !strings.Contains(strings.ToLower(mem.Content), lowerQuery) {
			continue
		}
		out = append(out, mem)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryBackend) CreateRun(ctx context.Context, run models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *MemoryBackend) UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("storage: run %s not found", id)
	}
	r.Status = status
	r.Error = errMsg
	m.runs[id] = r
	return nil
}

func (m *MemoryBackend) GetRun(ctx context.Context, id string) (*models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("storage: run %s not found", id)
	}
	return &r, nil
}

func (m *MemoryBackend) AppendEvent(ctx context.Context, event models.RunEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runEvents[event.RunID] = append(m.runEvents[event.RunID], event)
	return nil
}

func (m *MemoryBackend) EventsSince(ctx context.Context, runID string, afterSeq int64) ([]models.RunEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.RunEvent
	for _, e := range m.runEvents[runID] {
		if e.Seq > afterSeq {
			out = append(out, e)
		}
	}
	return out, nil
}
