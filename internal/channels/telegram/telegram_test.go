package telegram

import (
	"context"
	"testing"

	"github.com/microclaw/microclaw/internal/channels"
	"github.com/microclaw/microclaw/internal/models"
)

func newBareAdapter() *Adapter {
	return &Adapter{messages: make(chan channels.InboundMessage, 1)}
}

func TestNameAndChatTypes(t *testing.T) {
	a := newBareAdapter()
	if a.Name() != "telegram" {
		t.Fatalf("expected name %q, got %q", "telegram", a.Name())
	}
	types := a.ChatTypes()
	if len(types) != 2 || types[0] != "telegram_dm" || types[1] != "telegram_group" {
		t.Fatalf("unexpected chat types: %v", types)
	}
}

func TestSendRejectsNonNumericChatID(t *testing.T) {
	a := newBareAdapter()
	err := a.Send(context.Background(), "not-a-number", models.Message{})
	if err == nil {
		t.Fatal("expected a non-numeric external id to be rejected before touching the bot client")
	}
}
