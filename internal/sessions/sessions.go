// Package sessions implements chat session lifecycle (create, fork, reset,
// delete) and the message-transcript store the agent loop reads and writes.
package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/microclaw/microclaw/internal/models"
)

// Store is the combined session-tree + transcript store used by the
// operator plane's session operations and by the agent loop (via the
// narrower agent.MessageStore it also satisfies).
type Store struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	history  map[string][]models.Message
}

// NewStore returns an empty in-memory session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]models.Session),
		history:  make(map[string][]models.Message),
	}
}

// AppendMessage satisfies agent.MessageStore.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.history[sessionID] = append(s.history[sessionID], msg)

	if sess, ok := s.sessions[sessionID]; ok {
		sess.UpdatedAt = time.Now()
		s.sessions[sessionID] = sess
	}
	return nil
}

// History satisfies agent.MessageStore.
func (s *Store) History(ctx context.Context, sessionID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.history[sessionID]...), nil
}

// Create starts a new root session for chatID.
func (s *Store) Create(ctx context.Context, chatID, sessionKey string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := models.Session{
		ID:         uuid.NewString(),
		ChatID:     chatID,
		SessionKey: sessionKey,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	s.sessions[sess.ID] = sess
	return &sess, nil
}

// Get returns a session by id.
func (s *Store) Get(ctx context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("sessions: %s not found", id)
	}
	return &sess, nil
}

// Fork creates a child session that starts with a copy of the parent's
// current transcript, letting a chat branch into scratch work without
// mutating the parent's history.
func (s *Store) Fork(ctx context.Context, parentID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.sessions[parentID]
	if !ok {
		return nil, fmt.Errorf("sessions: parent %s not found", parentID)
	}

	child := models.Session{
		ID:              uuid.NewString(),
		ChatID:          parent.ChatID,
		ParentSessionID: parent.ID,
		SessionKey:      parent.SessionKey + ":fork:" + uuid.NewString()[:8],
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	s.sessions[child.ID] = child
	s.history[child.ID] = append([]models.Message(nil), s.history[parentID]...)
	return &child, nil
}

// Reset clears or archives a session's transcript in place. ResetModeArchive
// keeps the old messages retrievable under a synthetic archived id;
// ResetModeClear discards them outright.
func (s *Store) Reset(ctx context.Context, id string, mode models.SessionResetMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("sessions: %s not found", id)
	}

	if mode == models.ResetModeArchive {
		archiveID := id + ":archive:" + uuid.NewString()[:8]
		s.history[archiveID] = s.history[id]
	}
	s.history[id] = nil

	sess.LastResetMode = mode
	sess.UpdatedAt = time.Now()
	s.sessions[id] = sess
	return nil
}

// Delete removes a session and its transcript outright.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	delete(s.history, id)
	return nil
}

// Tree returns id and every descendant session, depth-first, for the
// operator plane's sessions_tree view.
func (s *Store) Tree(ctx context.Context, rootID string) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	root, ok := s.sessions[rootID]
	if !ok {
		return nil, fmt.Errorf("sessions: %s not found", rootID)
	}

	var walk func(models.Session) []models.Session
	walk = func(node models.Session) []models.Session {
		out := []models.Session{node}
		for _, candidate := range s.sessions {
			if candidate.ParentSessionID == node.ID {
				out = append(out, walk(candidate)...)
			}
		}
		return out
	}
	return walk(root), nil
}
