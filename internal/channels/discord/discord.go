// Package discord implements the Discord channel adapter using discordgo.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/microclaw/microclaw/internal/channels"
	"github.com/microclaw/microclaw/internal/models"
)

// Adapter routes DMs as "discord_dm" and guild channels as "discord_guild".
type Adapter struct {
	session  *discordgo.Session
	selfID   string
	messages chan channels.InboundMessage
}

// New constructs the adapter from a bot token.
func New(token string) (*Adapter, error) {
	sess, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: new session: %w", err)
	}
	sess.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	a := &Adapter{session: sess, messages: make(chan channels.InboundMessage, 64)}
	sess.AddHandler(a.onMessageCreate)
	return a, nil
}

func (a *Adapter) Name() string { return "discord" }

func (a *Adapter) ChatTypes() []models.ChatType {
	return []models.ChatType{"discord_dm", "discord_guild"}
}

func (a *Adapter) Start(ctx context.Context) error {
	if err := a.session.Open(); err != nil {
		return fmt.Errorf("discord: open: %w", err)
	}
	if a.session.State.User != nil {
		a.selfID = a.session.State.User.ID
	}
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	close(a.messages)
	return a.session.Close()
}

func (a *Adapter) Messages() <-chan channels.InboundMessage {
	return a.messages
}

func (a *Adapter) Send(ctx context.Context, externalID string, msg models.Message) error {
	_, err := a.session.ChannelMessageSend(externalID, msg.Content)
	return err
}

func (a *Adapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == a.selfID {
		return
	}

	chatType := models.ChatType("discord_guild")
	if m.GuildID == "" {
		chatType = "discord_dm"
	}

	a.messages <- channels.InboundMessage{
		Message:    models.Message{Content: m.Content},
		ExternalID: m.ChannelID,
		ChatType:   chatType,
		Auth: models.ChannelAuthContext{
			ChannelName:  a.Name(),
			ExternalUser: m.Author.ID,
			DisplayName:  m.Author.Username,
		},
	}
}
