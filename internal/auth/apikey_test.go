package auth

import (
	"testing"
	"time"
)

func TestAPIKeyIssueAndVerifyRoundTrip(t *testing.T) {
	store := NewAPIKeyStore()

	secret, key, err := store.Issue("ci", []string{"tools:run"}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.SecretHash == "" || key.Prefix == "" {
		t.Fatal("expected the issued key to carry a prefix and secret hash")
	}

	got, err := store.Verify(secret)
	if err != nil {
		t.Fatalf("unexpected error verifying a freshly issued key: %v", err)
	}
	if got.Prefix != key.Prefix {
		t.Fatalf("expected prefix %q, got %q", key.Prefix, got.Prefix)
	}
	if got.LastUsedAt == nil {
		t.Fatal("expected Verify to stamp LastUsedAt")
	}
}

func TestAPIKeyVerifyRejectsUnknownSecret(t *testing.T) {
	store := NewAPIKeyStore()
	if _, err := store.Verify("mc_0000000000000000000000000000000000000000000000"); err == nil {
		t.Fatal("expected an unknown key to be rejected")
	}
}

func TestAPIKeyVerifyRejectsTamperedSecret(t *testing.T) {
	store := NewAPIKeyStore()
	secret, _, err := store.Issue("ci", nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	tampered := secret[:len(secret)-1] + "x"
	if _, err := store.Verify(tampered); err == nil {
		t.Fatal("expected a tampered secret sharing the real prefix to be rejected")
	}
}

func TestAPIKeyVerifyRejectsExpiredKey(t *testing.T) {
	store := NewAPIKeyStore()
	secret, _, err := store.Issue("ci", nil, -time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Verify(secret); err == nil {
		t.Fatal("expected an expired key to be rejected")
	}
}

func TestAPIKeyRevokeBlocksFurtherVerification(t *testing.T) {
	store := NewAPIKeyStore()
	secret, key, err := store.Issue("ci", nil, 0)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Revoke(key.Prefix); err != nil {
		t.Fatalf("unexpected error revoking: %v", err)
	}
	if _, err := store.Verify(secret); err == nil {
		t.Fatal("expected a revoked key to be rejected")
	}
}

func TestAPIKeyRevokeUnknownPrefixErrors(t *testing.T) {
	store := NewAPIKeyStore()
	if err := store.Revoke("no-such-prefix"); err == nil {
		t.Fatal("expected revoking an unknown prefix to error")
	}
}

func TestHasScope(t *testing.T) {
	_, key, err := NewAPIKeyStore().Issue("ci", []string{"tools:run"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !HasScope(&key, "tools:run") {
		t.Fatal("expected the key's own scope to match")
	}
	if HasScope(&key, "memory:write") {
		t.Fatal("expected an unrelated scope not to match")
	}

	_, wildcard, err := NewAPIKeyStore().Issue("ci", []string{"*"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !HasScope(&wildcard, "anything") {
		t.Fatal("expected the wildcard scope to match any requested scope")
	}
}
