// Package whatsapp implements a WhatsApp Cloud API style webhook adapter:
// inbound messages arrive as signed HTTP POSTs, outbound messages are sent
// via the Cloud API's REST endpoint, and gorilla/websocket backs the
// adapter's live-status link used by the operator dashboard.
package whatsapp

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/microclaw/microclaw/internal/channels"
	"github.com/microclaw/microclaw/internal/models"
)

// Adapter handles a single WhatsApp Business phone number. There is no
// group-chat concept for this channel, so it only claims "whatsapp_dm".
type Adapter struct {
	appSecret   string
	accessToken string
	phoneID     string
	messages    chan channels.InboundMessage
	upgrader    websocket.Upgrader
}

// New constructs the adapter. appSecret verifies the X-Hub-Signature-256
// header on inbound webhooks; accessToken/phoneID are used for outbound
// sends against the Cloud API.
func New(appSecret, accessToken, phoneID string) *Adapter {
	return &Adapter{
		appSecret:   appSecret,
		accessToken: accessToken,
		phoneID:     phoneID,
		messages:    make(chan channels.InboundMessage, 64),
		upgrader:    websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
}

func (a *Adapter) Name() string { return "whatsapp" }

func (a *Adapter) ChatTypes() []models.ChatType {
	return []models.ChatType{"whatsapp_dm"}
}

func (a *Adapter) Messages() <-chan channels.InboundMessage {
	return a.messages
}

// webhookPayload mirrors the subset of the Cloud API's webhook body this
// adapter cares about.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					ID   string `json:"id"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// HandleWebhook verifies the request signature and forwards any inbound
// text messages onto Messages().
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body := make([]byte, r.ContentLength)
	if _, err := r.Body.Read(body); err != nil && r.ContentLength > 0 {
		http.Error(w, "read error", http.StatusBadRequest)
		return
	}

	if !a.verifySignature(r.Header.Get("X-Hub-Signature-256"), body) {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				a.messages <- channels.InboundMessage{
					Message:    models.Message{Content: m.Text.Body},
					ExternalID: m.From,
					ChatType:   "whatsapp_dm",
					Auth:       models.ChannelAuthContext{ChannelName: a.Name(), ExternalUser: m.From},
				}
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (a *Adapter) verifySignature(header string, body []byte) bool {
	const prefix = "sha256="
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return false
	}
	mac := hmac.New(sha256.New, []byte(a.appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header[len(prefix):]))
}

// LiveStatus upgrades the request to a websocket used by the operator
// dashboard to show connection health without polling.
func (a *Adapter) LiveStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	_ = conn.WriteJSON(map[string]string{"status": "connected"})
}

func (a *Adapter) Send(ctx context.Context, externalID string, msg models.Message) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                externalID,
		"type":              "text",
		"text":              map[string]string{"body": msg.Content},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("https://graph.facebook.com/v20.0/%s/messages", a.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("whatsapp: send failed with status %d", resp.StatusCode)
	}
	return nil
}
