package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/microclaw/microclaw/internal/agent"
	"github.com/microclaw/microclaw/internal/audit"
	"github.com/microclaw/microclaw/internal/auth"
	"github.com/microclaw/microclaw/internal/channels"
	"github.com/microclaw/microclaw/internal/ratelimit"
	"github.com/microclaw/microclaw/internal/sessions"
)

// scriptedProvider replays one canned text response for every turn, enough
// to drive the agentic loop from handleChatMessages to completion.
type scriptedProvider struct{}

func (scriptedProvider) Complete(ctx context.Context, req agent.CompletionRequest) (<-chan agent.ResponseChunk, error) {
	ch := make(chan agent.ResponseChunk, 1)
	ch <- agent.ResponseChunk{Type: agent.ChunkText, Text: "hello from the agent"}
	close(ch)
	return ch, nil
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	store := sessions.NewStore()
	registry := agent.NewToolRegistry()
	executor := agent.NewExecutor(registry, agent.DefaultExecutorConfig())
	loop := agent.NewAgenticLoop(scriptedProvider{}, registry, executor, agent.NewApprovalGate(), store, agent.DefaultLoopConfig())

	authSvc := auth.NewService("boot-token", nil, time.Hour)
	if err := authSvc.SetPassword("alice", "s3cret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := Config{
		AuthService: authSvc,
		AuditLog:    audit.NewLogger(nil, 0),
		Sessions:    store,
		Channels:    channels.NewRegistry(),
		RunHub:      NewRunHub(),
		Loop:        loop,
		Registry:    registry,
		Locker:      agent.NewSessionLocker(),
		Limiter:     ratelimit.New(100, 100),
		InFlight:    ratelimit.NewInFlight(10),
	}
	return NewHandler(cfg)
}

func doRequest(h *Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.Mount().ServeHTTP(w, r)
	return w
}

func TestLoginIsReachableWithoutCredentials(t *testing.T) {
	h := newTestHandler(t)

	w := doRequest(h, http.MethodPost, "/api/auth/login", `{"Username":"alice","Password":"s3cret"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected login to succeed, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected response body: %v", err)
	}
	if resp["csrf_token"] == "" {
		t.Fatal("expected a csrf token in the login response")
	}
}

func TestLoginRejectsWrongCredentials(t *testing.T) {
	h := newTestHandler(t)
	w := doRequest(h, http.MethodPost, "/api/auth/login", `{"Username":"alice","Password":"wrong"}`, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestUnauthenticatedRequestToToolsIsRejected(t *testing.T) {
	h := newTestHandler(t)
	w := doRequest(h, http.MethodGet, "/api/tools", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an unauthenticated request, got %d", w.Code)
	}
}

func TestBootstrapTokenAuthorizesToolsListing(t *testing.T) {
	h := newTestHandler(t)
	w := doRequest(h, http.MethodGet, "/api/tools", "", map[string]string{"Authorization": "Bearer boot-token"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestChatMessageTurnPublishesCompletionToRunHub(t *testing.T) {
	h := newTestHandler(t)
	headers := map[string]string{"Authorization": "Bearer boot-token"}

	w := doRequest(h, http.MethodPost, "/api/chats/chat-1/messages", `{"Text":"hi there"}`, headers)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected response body: %v", err)
	}
	runID := resp["run_id"]
	if runID == "" {
		t.Fatal("expected a run id in the response")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if run, ok := h.cfg.RunHub.Get(runID); ok && run.Status != "" && run.Status != "running" {
			if run.Status != "completed" {
				t.Fatalf("expected the run to complete, got status %q (error %q)", run.Status, run.Error)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the run to complete")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestChatMessageRejectsGetMethod(t *testing.T) {
	h := newTestHandler(t)
	w := doRequest(h, http.MethodGet, "/api/chats/chat-1/messages", "", map[string]string{"Authorization": "Bearer boot-token"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a non-POST request, got %d", w.Code)
	}
}

func TestSessionForkResetDeleteLifecycle(t *testing.T) {
	h := newTestHandler(t)
	headers := map[string]string{"Authorization": "Bearer boot-token"}
	ctx := context.Background()

	sess, err := h.cfg.Sessions.Create(ctx, "chat-1", "chat-1")
	if err != nil {
		t.Fatal(err)
	}

	w := doRequest(h, http.MethodPost, "/api/sessions/"+sess.ID+"/fork", "", headers)
	if w.Code != http.StatusOK {
		t.Fatalf("expected fork to succeed, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(h, http.MethodPost, "/api/sessions/"+sess.ID+"/reset", `{"Mode":"clear"}`, headers)
	if w.Code != http.StatusOK {
		t.Fatalf("expected reset to succeed, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(h, http.MethodPost, "/api/sessions/"+sess.ID+"/delete", "", headers)
	if w.Code != http.StatusOK {
		t.Fatalf("expected delete to succeed, got %d: %s", w.Code, w.Body.String())
	}

	w = doRequest(h, http.MethodPost, "/api/sessions/"+sess.ID+"/delete", "", headers)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected deleting an already-deleted session to 404, got %d", w.Code)
	}
}

func TestSessionOpsRejectsUnknownOperation(t *testing.T) {
	h := newTestHandler(t)
	headers := map[string]string{"Authorization": "Bearer boot-token"}
	w := doRequest(h, http.MethodPost, "/api/sessions/some-id/frobnicate", "", headers)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown session op, got %d", w.Code)
	}
}

func TestCORSPreflightIsHandledBeforeAuth(t *testing.T) {
	h := newTestHandler(t)
	h.cfg.AllowedOrigins = []string{"https://ops.example.com"}
	h = NewHandler(h.cfg)

	r := httptest.NewRequest(http.MethodOptions, "/api/tools", nil)
	r.Header.Set("Origin", "https://ops.example.com")
	w := httptest.NewRecorder()
	h.Mount().ServeHTTP(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected a 204 preflight response, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "https://ops.example.com" {
		t.Fatalf("expected CORS headers on the preflight response, got %v", w.Header())
	}
}
