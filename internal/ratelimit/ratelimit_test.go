package ratelimit

import "testing"

func TestLimiterEnforcesBurstPerKey(t *testing.T) {
	l := New(1, 2)

	if !l.Allow("chat-1") || !l.Allow("chat-1") {
		t.Fatal("expected the first two requests within burst to be allowed")
	}
	if l.Allow("chat-1") {
		t.Fatal("expected the third immediate request to be rate limited")
	}
}

func TestLimiterTracksKeysIndependently(t *testing.T) {
	l := New(1, 1)

	if !l.Allow("chat-1") {
		t.Fatal("expected chat-1's first request to be allowed")
	}
	if !l.Allow("chat-2") {
		t.Fatal("expected chat-2's own bucket to be unaffected by chat-1")
	}
}

func TestInFlightCapsConcurrency(t *testing.T) {
	f := NewInFlight(2)

	if !f.Acquire("chat-1") || !f.Acquire("chat-1") {
		t.Fatal("expected the first two acquires to succeed")
	}
	if f.Acquire("chat-1") {
		t.Fatal("expected a third acquire to be denied at the cap")
	}

	f.Release("chat-1")
	if !f.Acquire("chat-1") {
		t.Fatal("expected a slot to be available after release")
	}
}

func TestInFlightReleaseNeverUnderflows(t *testing.T) {
	f := NewInFlight(1)
	f.Release("never-acquired")
	if !f.Acquire("never-acquired") {
		t.Fatal("expected acquire to succeed after a no-op release")
	}
}
