// Package message implements the send_message tool, gated by the calling
// chat's own channel cross-chat policy rather than the destination's.
package message

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/microclaw/microclaw/internal/agent"
	"github.com/microclaw/microclaw/internal/channels"
	"github.com/microclaw/microclaw/internal/models"
)

// SendTool implements send_message: deliver text to a chat on a registered
// channel. A caller may only target a chat_id other than its own if the
// caller's own channel adapter allows cross-chat operation.
type SendTool struct {
	Registry *channels.Registry
}

func (t *SendTool) Name() string { return "send_message" }
func (t *SendTool) Description() string {
	return "Send a message to a chat on a channel. Sending to a different chat than the one you're in requires that channel's cross-chat policy to permit it."
}
func (t *SendTool) Risk() agent.RiskLevel { return agent.RiskMedium }
func (t *SendTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"channel": {"type": "string", "description": "Destination channel name, e.g. telegram, whatsapp, discord"},
			"external_id": {"type": "string", "description": "Destination chat id on that channel"},
			"target_chat_id": {"type": "string", "description": "Application-level chat id being targeted; required when sending to a chat other than the current one"},
			"text": {"type": "string"}
		},
		"required": ["channel", "external_id", "text"]
	}`)
}

func (t *SendTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var in struct {
		Channel      string
		ExternalID   string `json:"external_id"`
		TargetChatID string `json:"target_chat_id"`
		Text         string
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}

	auth, hasAuth := agent.AuthContextFromInput(params)
	targetChatID := in.TargetChatID
	if targetChatID == "" {
		targetChatID = auth.CallerChatID
	}

	if hasAuth && !auth.CanAccessChat(targetChatID) {
		route, err := t.Registry.RouteForChannel(auth.CallerChannel)
		if err != nil {
			return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
		}
		if !route.AllowsCrossChat {
			return &agent.ToolResult{
				Content: fmt.Sprintf("Permission denied: %s chats cannot operate on other chats", auth.CallerChannel),
				IsError: true,
			}, nil
		}
	}

	msg := models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   in.Text,
		CreatedAt: time.Now(),
	}
	if err := t.Registry.SendOutbound(ctx, in.Channel, in.ExternalID, msg); err != nil {
		return &agent.ToolResult{Content: err.Error(), IsError: true}, nil
	}
	return &agent.ToolResult{Content: "sent"}, nil
}
