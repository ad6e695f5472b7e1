package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestNameAndChatTypes(t *testing.T) {
	a := New("secret", "token", "phone-1")
	if a.Name() != "whatsapp" {
		t.Fatalf("expected name %q, got %q", "whatsapp", a.Name())
	}
	types := a.ChatTypes()
	if len(types) != 1 || types[0] != "whatsapp_dm" {
		t.Fatalf("unexpected chat types: %v", types)
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	a := New("secret", "token", "phone-1")
	body := []byte(`{"entry":[]}`)

	r := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
	r.ContentLength = int64(len(body))
	r.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	w := httptest.NewRecorder()

	a.HandleWebhook(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad signature, got %d", w.Code)
	}
}

func TestHandleWebhookForwardsInboundMessage(t *testing.T) {
	a := New("secret", "token", "phone-1")
	body := []byte(`{"entry":[{"changes":[{"value":{"messages":[{"from":"15551234567","id":"m1","text":{"body":"hi there"}}]}}]}]}`)

	r := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
	r.ContentLength = int64(len(body))
	r.Header.Set("X-Hub-Signature-256", sign("secret", body))
	w := httptest.NewRecorder()

	a.HandleWebhook(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	select {
	case msg := <-a.Messages():
		if msg.Message.Content != "hi there" {
			t.Fatalf("expected message content %q, got %q", "hi there", msg.Message.Content)
		}
		if msg.ExternalID != "15551234567" {
			t.Fatalf("expected external id %q, got %q", "15551234567", msg.ExternalID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the webhook to forward an inbound message")
	}
}

func TestHandleWebhookRejectsMalformedPayload(t *testing.T) {
	a := New("secret", "token", "phone-1")
	body := []byte(`not json`)

	r := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(string(body)))
	r.ContentLength = int64(len(body))
	r.Header.Set("X-Hub-Signature-256", sign("secret", body))
	w := httptest.NewRecorder()

	a.HandleWebhook(w, r)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", w.Code)
	}
}
