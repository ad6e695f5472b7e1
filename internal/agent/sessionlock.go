package agent

import "sync"

// sessionLock is a refcounted mutex keyed by session key so the same
// chat/session serializes its turns without holding a mutex per key
// forever — the entry is removed once the last holder releases it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// SessionLocker hands out per-key critical sections for the agent loop,
// ensuring two inbound messages for the same session never run turns
// concurrently.
type SessionLocker struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

// NewSessionLocker returns an empty locker.
func NewSessionLocker() *SessionLocker {
	return &SessionLocker{locks: make(map[string]*sessionLock)}
}

// Lock blocks until sessionKey's lock is held and returns a function that
// releases it.
func (l *SessionLocker) Lock(sessionKey string) func() {
	l.mu.Lock()
	entry, ok := l.locks[sessionKey]
	if !ok {
		entry = &sessionLock{}
		l.locks[sessionKey] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, sessionKey)
		}
		l.mu.Unlock()
	}
}
