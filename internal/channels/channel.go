// Package channels implements the adapter contract and registry that route
// an inbound chat_type to its owning channel and conversation kind.
package channels

import (
	"context"

	"github.com/microclaw/microclaw/internal/models"
)

// Adapter is the minimal contract every channel implements.
type Adapter interface {
	Name() string
	ChatTypes() []models.ChatType
}

// LifecycleAdapter starts/stops the adapter's background connection.
type LifecycleAdapter interface {
	Adapter
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// OutboundAdapter sends a message to an external chat.
type OutboundAdapter interface {
	Adapter
	Send(ctx context.Context, externalID string, msg models.Message) error
}

// InboundAdapter exposes a channel of messages arriving from the platform.
type InboundAdapter interface {
	Adapter
	Messages() <-chan InboundMessage
}

// InboundMessage pairs a raw inbound models.Message with the routing
// context the registry needs to resolve it to a chat.
type InboundMessage struct {
	Message    models.Message
	ExternalID string
	ChatType   models.ChatType
	Auth       models.ChannelAuthContext
}

// Route describes how a chat_type resolves: which channel owns it, what
// conversation kind it is, whether its chats may operate on other chats
// (AllowsCrossChat, checked by send_message against the calling chat's own
// route), and whether it is marked local-only (IsLocalOnly, e.g. the local
// web UI; no code reads this flag).
type Route struct {
	ChannelName      string
	ConversationKind models.ConversationKind
	IsLocalOnly      bool
	AllowsCrossChat  bool
}
