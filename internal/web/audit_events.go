package web

import (
	"net/http"

	"github.com/microclaw/microclaw/internal/models"
)

func newDeniedEvent(r *http.Request) models.AuditEvent {
	return models.AuditEvent{
		Actor:    "unknown",
		Action:   "http_request",
		Target:   r.URL.Path,
		Outcome:  "deny",
		RemoteIP: r.RemoteAddr,
	}
}

func newAllowedEvent(actor, action, target string, r *http.Request) models.AuditEvent {
	return models.AuditEvent{
		Actor:    actor,
		Action:   action,
		Target:   target,
		Outcome:  "allow",
		RemoteIP: r.RemoteAddr,
	}
}
