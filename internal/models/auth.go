package models

import "time"

// AuthPassword is the operator-plane login credential. PasswordHash carries
// a tag prefix identifying the hashing scheme so legacy records can be
// verified and transparently upgraded on next successful login.
type AuthPassword struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AuthSession is a server-side session-cookie record. CSRFToken is bound to
// the session and must match the X-CSRF-Token header on mutating requests.
type AuthSession struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CSRFToken string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// ApiKey is a scoped, revocable programmatic credential. Only the SHA-256
// hash of the secret is stored; Prefix is kept in the clear for display and
// lookup-by-prefix before the constant-time hash comparison.
type ApiKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	SecretHash string     `json:"-"`
	Scopes     []string   `json:"scopes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// AuditEvent records one security-relevant operator-plane action.
type AuditEvent struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Target    string         `json:"target,omitempty"`
	Outcome   string         `json:"outcome"` // allow | deny | error
	Detail    map[string]any `json:"detail,omitempty"`
	RemoteIP  string         `json:"remote_ip,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// ChannelAuthContext carries the identity a channel adapter resolved for an
// inbound message (platform user id, display name, any operator/control
// flags derived from channel-specific admin lists).
type ChannelAuthContext struct {
	ChannelName   string `json:"channel_name"`
	ExternalUser  string `json:"external_user"`
	DisplayName   string `json:"display_name,omitempty"`
	IsControlChat bool   `json:"is_control_chat"`
}
