// Package telegram implements the Telegram channel adapter using telego.
package telegram

import (
	"context"
	"fmt"

	tele "github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/microclaw/microclaw/internal/channels"
	"github.com/microclaw/microclaw/internal/models"
)

// Adapter is the Telegram channel: private chats route as "telegram_dm",
// groups/supergroups as "telegram_group".
type Adapter struct {
	bot      *tele.Bot
	handler  *th.BotHandler
	messages chan channels.InboundMessage
}

// New constructs the adapter and its long-poll update handler. Start begins
// polling; Stop tears the handler down.
func New(token string) (*Adapter, error) {
	bot, err := tele.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: new bot: %w", err)
	}
	return &Adapter{bot: bot, messages: make(chan channels.InboundMessage, 64)}, nil
}

func (a *Adapter) Name() string { return "telegram" }

func (a *Adapter) ChatTypes() []models.ChatType {
	return []models.ChatType{"telegram_dm", "telegram_group"}
}

func (a *Adapter) Start(ctx context.Context) error {
	updates, err := a.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("telegram: long poll: %w", err)
	}

	handler, err := th.NewBotHandler(a.bot, updates)
	if err != nil {
		return fmt.Errorf("telegram: new handler: %w", err)
	}
	a.handler = handler

	handler.HandleMessage(func(botCtx *th.Context, update tele.Message) error {
		chatType := models.ChatType("telegram_dm")
		if update.Chat.Type != tele.ChatTypePrivate {
			chatType = "telegram_group"
		}

		a.messages <- channels.InboundMessage{
			Message: models.Message{
				Content: update.Text,
			},
			ExternalID: fmt.Sprintf("%d", update.Chat.ID),
			ChatType:   chatType,
			Auth: models.ChannelAuthContext{
				ChannelName:  a.Name(),
				ExternalUser: fmt.Sprintf("%d", update.From.ID),
				DisplayName:  update.From.FirstName,
			},
		}
		return nil
	})

	go func() {
		_ = handler.Start()
	}()
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	if a.handler != nil {
		a.handler.Stop()
	}
	close(a.messages)
	return nil
}

func (a *Adapter) Messages() <-chan channels.InboundMessage {
	return a.messages
}

func (a *Adapter) Send(ctx context.Context, externalID string, msg models.Message) error {
	var chatID int64
	if _, err := fmt.Sscanf(externalID, "%d", &chatID); err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", externalID, err)
	}
	_, err := a.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), msg.Content))
	return err
}
