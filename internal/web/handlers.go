package web

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/microclaw/microclaw/internal/agent"
	"github.com/microclaw/microclaw/internal/audit"
	"github.com/microclaw/microclaw/internal/auth"
	"github.com/microclaw/microclaw/internal/channels"
	"github.com/microclaw/microclaw/internal/metrics"
	"github.com/microclaw/microclaw/internal/models"
	"github.com/microclaw/microclaw/internal/ratelimit"
	"github.com/microclaw/microclaw/internal/sessions"
)

// Config aggregates the collaborators the operator-plane HTTP handler
// needs to serve auth, chat, run-streaming, and session routes.
type Config struct {
	BasePath       string
	AuthService    *auth.Service
	AuditLog       *audit.Logger
	Sessions       *sessions.Store
	Channels       *channels.Registry
	RunHub         *RunHub
	Loop           *agent.AgenticLoop
	Registry       *agent.ToolRegistry
	Locker         *agent.SessionLocker
	Limiter        *ratelimit.Limiter
	InFlight       *ratelimit.InFlight
	Collector      *metrics.Collector
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Handler is the operator plane's HTTP entrypoint.
type Handler struct {
	cfg Config
	mux *http.ServeMux
}

// NewHandler builds the handler and registers every route.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BasePath == "" {
		cfg.BasePath = "/"
	}

	h := &Handler{cfg: cfg, mux: http.NewServeMux()}
	h.setupRoutes()
	return h
}

func (h *Handler) setupRoutes() {
	h.mux.HandleFunc("/api/auth/login", h.handleLogin)
	h.mux.HandleFunc("/api/auth/logout", h.handleLogout)

	h.mux.HandleFunc("/api/chats/", h.handleChatMessages)
	h.mux.HandleFunc("/api/sessions/", h.handleSessionOps)
	h.mux.HandleFunc("/api/runs/", h.handleRunStream)
	h.mux.HandleFunc("/api/tools", h.handleListTools)
	if h.cfg.Collector != nil {
		h.mux.Handle("/metrics", metrics.Handler())
	}
}

// Mount wraps the handler with the middleware chain, auth innermost to
// outermost: logging -> CORS -> auth, so a 401 is still logged and CORS
// headers are present even on an unauthenticated response.
func (h *Handler) Mount() http.Handler {
	var handler http.Handler = h.mux
	handler = AuthMiddleware(h.cfg.AuthService, h.cfg.AuditLog, h.cfg.Logger)(handler)
	handler = CORSMiddleware(h.cfg.AllowedOrigins)(handler)
	handler = LoggingMiddleware(h.cfg.Logger)(handler)
	return handler
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body struct{ Username, Password string }
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	sessionID, csrfToken, err := h.cfg.AuthService.Login(body.Username, body.Password)
	if err != nil {
		_ = h.cfg.AuditLog.Record(r.Context(), newDeniedEvent(r))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	http.SetCookie(w, sessionCookieFor(r, sessionID, 24*time.Hour))
	_ = h.cfg.AuditLog.Record(r.Context(), newAllowedEvent(body.Username, "login", "", r))
	writeJSON(w, http.StatusOK, map[string]string{"csrf_token": csrfToken})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie("mc_session"); err == nil {
		h.cfg.AuthService.Sessions().Revoke(c.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: "mc_session", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleChatMessages accepts POST /api/chats/{id}/messages, kicking off an
// agent turn and returning the run id the client should subscribe to for
// streaming results.
func (h *Handler) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/chats/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[1] != "messages" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	chatID := parts[0]

	if !h.cfg.Limiter.Allow(chatID) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limited"})
		return
	}
	if !h.cfg.InFlight.Acquire(chatID) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many in-flight turns for this chat"})
		return
	}
	defer h.cfg.InFlight.Release(chatID)

	var body struct{ Text string }
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	sess, err := h.cfg.Sessions.Create(r.Context(), chatID, chatID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	release := h.cfg.Locker.Lock(sess.SessionKey)
	runID := h.cfg.RunHub.StartRun(chatID, sess.ID)

	go func() {
		defer release()
		events := h.cfg.Loop.Run(r.Context(), sess.ID, "web", chatID, body.Text)
		var lastErr string
		for evt := range events {
			h.cfg.RunHub.Publish(runID, evt)
			if evt.Type == "error" {
				if msg, ok := evt.Data["error"].(string); ok {
					lastErr = msg
				}
			}
		}
		h.cfg.RunHub.Finish(runID, lastErr)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "session_id": sess.ID})
}

// handleRunStream serves GET /api/runs/{id}/stream as an SSE endpoint,
// honoring Last-Event-ID for reconnect/replay.
func (h *Handler) handleRunStream(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[1] != "stream" {
		http.NotFound(w, r)
		return
	}
	runID := parts[0]

	var afterSeq int64
	if id := r.Header.Get("Last-Event-ID"); id != "" {
		afterSeq, _ = strconv.ParseInt(id, 10, 64)
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	live, replay, found := h.cfg.RunHub.Subscribe(r.Context(), runID, afterSeq)
	if !found {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent := func(e models.RunEvent) {
		data, _ := json.Marshal(e.Data)
		fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", e.Seq, e.Type, data)
		flusher.Flush()
	}

	for _, e := range replay {
		writeEvent(e)
	}
	if live == nil {
		return
	}
	for e := range live {
		writeEvent(e)
	}
}

// handleSessionOps implements POST /api/sessions/{id}/{fork|reset|delete}.
func (h *Handler) handleSessionOps(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	sessionID, op := parts[0], parts[1]

	switch op {
	case "fork":
		child, err := h.cfg.Sessions.Fork(r.Context(), sessionID)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, child)
	case "reset":
		var body struct{ Mode models.SessionResetMode }
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Mode == "" {
			body.Mode = models.ResetModeArchive
		}
		if err := h.cfg.Sessions.Reset(r.Context(), sessionID, body.Mode); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case "delete":
		if err := h.cfg.Sessions.Delete(r.Context(), sessionID); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": h.cfg.Registry.Names()})
}
