// Package cron backs the schedule_task tool family with robfig/cron/v3.
package cron

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps a cron.Cron with pause/resume semantics the underlying
// library doesn't provide directly: a paused entry is removed from the
// cron scheduler but its spec is kept so Resume can re-add it unchanged.
type Scheduler struct {
	mu      sync.Mutex
	c       *cron.Cron
	entries map[string]scheduledTask
}

type scheduledTask struct {
	spec    string
	fn      func()
	entryID cron.EntryID
	paused  bool
}

// New starts a scheduler running in its own goroutine.
func New() *Scheduler {
	s := &Scheduler{c: cron.New(), entries: make(map[string]scheduledTask)}
	s.c.Start()
	return s
}

// Schedule registers a new task under id with a standard 5-field cron spec.
func (s *Scheduler) Schedule(id, spec string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; exists {
		return fmt.Errorf("cron: task %q already scheduled", id)
	}

	entryID, err := s.c.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("cron: invalid spec %q: %w", spec, err)
	}

	s.entries[id] = scheduledTask{spec: spec, fn: fn, entryID: entryID}
	return nil
}

// Pause removes id's entry from the active schedule without forgetting it.
func (s *Scheduler) Pause(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("cron: task %q not found", id)
	}
	if task.paused {
		return nil
	}
	s.c.Remove(task.entryID)
	task.paused = true
	s.entries[id] = task
	return nil
}

// Resume re-adds a paused task with its original spec.
func (s *Scheduler) Resume(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("cron: task %q not found", id)
	}
	if !task.paused {
		return nil
	}

	entryID, err := s.c.AddFunc(task.spec, task.fn)
	if err != nil {
		return err
	}
	task.entryID = entryID
	task.paused = false
	s.entries[id] = task
	return nil
}

// Cancel removes id permanently.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("cron: task %q not found", id)
	}
	if !task.paused {
		s.c.Remove(task.entryID)
	}
	delete(s.entries, id)
	return nil
}

// Stop shuts the scheduler down, waiting for running jobs to finish.
func (s *Scheduler) Stop() {
	s.c.Stop()
}
