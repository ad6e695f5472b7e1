// Package audit records operator-plane security events.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/microclaw/microclaw/internal/models"
)

// Sink persists audit events. The in-memory Logger below satisfies it and is
// the sink the daemon wires; no storage-backed sink exists in this module.
type Sink interface {
	Record(ctx context.Context, event models.AuditEvent) error
}

// Logger is an in-memory ring-buffered audit sink that also emits each
// event through slog.
type Logger struct {
	mu     sync.Mutex
	events []models.AuditEvent
	max    int
	slog   *slog.Logger
}

// NewLogger returns a logger retaining at most max events in memory.
func NewLogger(logger *slog.Logger, max int) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if max <= 0 {
		max = 10000
	}
	return &Logger{slog: logger, max: max}
}

// Record appends event, trimming the oldest entry once max is reached, and
// logs it at Info level.
func (l *Logger) Record(ctx context.Context, event models.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	if len(l.events) > l.max {
		l.events = l.events[len(l.events)-l.max:]
	}
	l.mu.Unlock()

	l.slog.Info("audit",
		"actor", event.Actor,
		"action", event.Action,
		"target", event.Target,
		"outcome", event.Outcome,
		"remote_ip", event.RemoteIP,
	)
	return nil
}

// Recent returns the last n recorded events, most recent last.
func (l *Logger) Recent(n int) []models.AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.events) {
		n = len(l.events)
	}
	out := make([]models.AuditEvent, n)
	copy(out, l.events[len(l.events)-n:])
	return out
}
