// Package web implements the first-party web UI channel adapter. The
// operator plane's /api/chats/{id}/messages handler runs agent turns itself
// and does not pass messages through this adapter.
package web

import (
	"context"

	"github.com/microclaw/microclaw/internal/channels"
	"github.com/microclaw/microclaw/internal/models"
)

// Adapter is the in-process channel backing the bundled web UI. It is
// registered is_local_only in the registry's route table, but no code reads
// that flag: send_message checks only the calling chat's cross-chat policy,
// and a message another channel's turn sends here is dropped by Send.
type Adapter struct {
	messages chan channels.InboundMessage
}

// New returns a ready adapter; Deliver feeds its Messages channel.
func New() *Adapter {
	return &Adapter{messages: make(chan channels.InboundMessage, 64)}
}

func (a *Adapter) Name() string { return "web" }

func (a *Adapter) ChatTypes() []models.ChatType {
	return []models.ChatType{"web_ui"}
}

func (a *Adapter) Messages() <-chan channels.InboundMessage {
	return a.messages
}

// Deliver injects a message posted via the HTTP API as if it had arrived
// over an external channel.
func (a *Adapter) Deliver(externalID, content, user string) {
	a.messages <- channels.InboundMessage{
		Message:    models.Message{Content: content},
		ExternalID: externalID,
		ChatType:   "web_ui",
		Auth:       models.ChannelAuthContext{ChannelName: a.Name(), ExternalUser: user},
	}
}

// Send is a no-op sink here: the operator plane streams assistant replies
// to the browser over SSE via the run hub rather than a per-channel push,
// so outbound delivery for this channel happens at the run-hub layer, not
// here.
func (a *Adapter) Send(ctx context.Context, externalID string, msg models.Message) error {
	return nil
}
