package agent

import (
	"encoding/json"
	"fmt"
)

// authContextKey is the reserved input field the loop injects into every
// tool call's params before execution, carrying the identity of the chat
// that issued the call. Tools that need to enforce per-chat ownership read
// it back with AuthContextFromInput rather than trusting a caller-supplied
// field of the same shape.
const authContextKey = "__microclaw_auth"

// ToolAuthContext identifies the chat that issued a tool call, injected by
// the agent loop so a tool can authorize cross-chat access without trusting
// anything the model itself supplied in the call's arguments.
type ToolAuthContext struct {
	CallerChannel  string   `json:"caller_channel"`
	CallerChatID   string   `json:"caller_chat_id"`
	ControlChatIDs []string `json:"control_chat_ids"`
}

// IsControlChat reports whether the calling chat is one of the configured
// control chats, which may act on any chat's resources.
func (a ToolAuthContext) IsControlChat() bool {
	for _, id := range a.ControlChatIDs {
		if id == a.CallerChatID {
			return true
		}
	}
	return false
}

// CanAccessChat reports whether the caller may operate on targetChatID:
// either it is the caller's own chat, or the caller is a control chat.
func (a ToolAuthContext) CanAccessChat(targetChatID string) bool {
	return a.IsControlChat() || a.CallerChatID == targetChatID
}

// InjectAuthContext merges auth into params under authContextKey, replacing
// any value already there. params that don't decode to a JSON object are
// replaced outright with one containing just the auth context.
func InjectAuthContext(params json.RawMessage, auth ToolAuthContext) json.RawMessage {
	obj := map[string]json.RawMessage{}
	if len(params) > 0 {
		_ = json.Unmarshal(params, &obj)
	}
	encodedAuth, err := json.Marshal(auth)
	if err != nil {
		return params
	}
	obj[authContextKey] = encodedAuth
	out, err := json.Marshal(obj)
	if err != nil {
		return params
	}
	return out
}

// AuthContextFromInput extracts the auth context a tool's own Execute
// receives, returning ok=false if the call carries none (e.g. a direct unit
// test that didn't go through the loop).
func AuthContextFromInput(params json.RawMessage) (ToolAuthContext, bool) {
	var wrapper struct {
		Auth *ToolAuthContext `json:"__microclaw_auth"`
	}
	if err := json.Unmarshal(params, &wrapper); err != nil || wrapper.Auth == nil {
		return ToolAuthContext{}, false
	}
	return *wrapper.Auth, true
}

// AuthorizeChatAccess fails with a permission-denied error unless the
// calling chat embedded in params may operate on targetChatID. A call
// carrying no auth context at all (untested tool, direct invocation)
// is allowed, matching the injected-context-is-advisory convention tools in
// this package rely on.
func AuthorizeChatAccess(params json.RawMessage, targetChatID string) error {
	auth, ok := AuthContextFromInput(params)
	if !ok {
		return nil
	}
	if !auth.CanAccessChat(targetChatID) {
		return fmt.Errorf("Permission denied: chat %s cannot operate on chat %s", auth.CallerChatID, targetChatID)
	}
	return nil
}
