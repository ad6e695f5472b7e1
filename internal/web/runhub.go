package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/microclaw/microclaw/internal/agent"
	"github.com/microclaw/microclaw/internal/models"
)

// runBufferSize bounds how many past events a run keeps for SSE replay via
// Last-Event-ID; older events are dropped once a run exceeds this.
const runBufferSize = 1000

// runRecord holds one run's replayable event log plus its live subscriber
// fan-out channels.
type runRecord struct {
	mu       sync.Mutex
	run      models.Run
	events   []models.RunEvent
	nextSeq  int64
	subs     map[chan models.RunEvent]struct{}
}

// RunHub tracks in-flight and recently-completed runs, fanning each run's
// events out to any number of SSE subscribers and supporting reconnect via
// Subscribe's afterSeq.
type RunHub struct {
	mu   sync.RWMutex
	runs map[string]*runRecord
}

// NewRunHub returns an empty hub.
func NewRunHub() *RunHub {
	return &RunHub{runs: make(map[string]*runRecord)}
}

// StartRun registers a new run and returns its id.
func (h *RunHub) StartRun(chatID, sessionID string) string {
	id := uuid.NewString()
	rec := &runRecord{
		run:  models.Run{ID: id, ChatID: chatID, SessionID: sessionID, Status: models.RunStatusRunning, StartedAt: time.Now()},
		subs: make(map[chan models.RunEvent]struct{}),
	}

	h.mu.Lock()
	h.runs[id] = rec
	h.mu.Unlock()
	return id
}

// Publish appends an event to the run's log and fans it out to current
// subscribers, dropping it for any subscriber whose channel is full rather
// than blocking the run.
func (h *RunHub) Publish(runID string, evt agent.Event) {
	h.mu.RLock()
	rec, ok := h.runs[runID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	rec.mu.Lock()
	rec.nextSeq++
	event := models.RunEvent{Seq: rec.nextSeq, RunID: runID, Type: evt.Type, Data: evt.Data, Timestamp: time.Now()}
	rec.events = append(rec.events, event)
	if len(rec.events) > runBufferSize {
		rec.events = rec.events[len(rec.events)-runBufferSize:]
	}
	for sub := range rec.subs {
		select {
		case sub <- event:
		default:
		}
	}
	rec.mu.Unlock()
}

// Finish marks a run complete or failed.
func (h *RunHub) Finish(runID string, errMsg string) {
	h.mu.RLock()
	rec, ok := h.runs[runID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	rec.mu.Lock()
	rec.run.CompletedAt = time.Now()
	if errMsg != "" {
		rec.run.Status = models.RunStatusFailed
		rec.run.Error = errMsg
	} else {
		rec.run.Status = models.RunStatusCompleted
	}
	for sub := range rec.subs {
		close(sub)
	}
	rec.subs = make(map[chan models.RunEvent]struct{})
	rec.mu.Unlock()
}

// Subscribe returns a channel of events for runID starting after
// afterSeq (0 for "from the beginning"), replaying the buffered tail
// synchronously before handing back live events.
func (h *RunHub) Subscribe(ctx context.Context, runID string, afterSeq int64) (<-chan models.RunEvent, []models.RunEvent, bool) {
	h.mu.RLock()
	rec, ok := h.runs[runID]
	h.mu.RUnlock()
	if !ok {
		return nil, nil, false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	var replay []models.RunEvent
	for _, e := range rec.events {
		if e.Seq > afterSeq {
			replay = append(replay, e)
		}
	}

	if rec.run.Status != models.RunStatusRunning {
		return nil, replay, true
	}

	ch := make(chan models.RunEvent, 32)
	rec.subs[ch] = struct{}{}

	go func() {
		<-ctx.Done()
		rec.mu.Lock()
		delete(rec.subs, ch)
		rec.mu.Unlock()
	}()

	return ch, replay, true
}

// Get returns the current run record.
func (h *RunHub) Get(runID string) (models.Run, bool) {
	h.mu.RLock()
	rec, ok := h.runs[runID]
	h.mu.RUnlock()
	if !ok {
		return models.Run{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.run, true
}
