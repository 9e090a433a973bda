package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Webhook event types LINE delivers. Message events carry customer
// content; follow events mean the customer added the account as a friend.
const (
	EventTypeMessage  = "message"
	EventTypeFollow   = "follow"
	EventTypeUnfollow = "unfollow"
)

const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeSticker  = "sticker"
	MessageTypeLocation = "location"
	MessageTypeFile     = "file"
)

type WebhookBody struct {
	Destination string         `json:"destination"`
	Events      []WebhookEvent `json:"events"`
}

type WebhookEvent struct {
	Type       string          `json:"type"`
	Timestamp  int64           `json:"timestamp"`
	ReplyToken string          `json:"replyToken,omitempty"`
	Source     EventSource     `json:"source"`
	Message    *WebhookMessage `json:"message,omitempty"`
}

type EventSource struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type WebhookMessage struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Text      string  `json:"text,omitempty"`
	PackageID string  `json:"packageId,omitempty"`
	StickerID string  `json:"stickerId,omitempty"`
	FileName  string  `json:"fileName,omitempty"`
	Title     string  `json:"title,omitempty"`
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// ValidateSignature checks the X-Line-Signature header: base64 of the
// HMAC-SHA256 of the raw request body under the channel secret. Uses a
// constant-time compare so callers learn nothing about where it diverged.
func ValidateSignature(channelSecret string, body []byte, signature string) bool {
	if channelSecret == "" || signature == "" {
		return false
	}

	provided, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return hmac.Equal(provided, mac.Sum(nil))
}

// SignBody produces the signature LINE would send for body. Test helper
// and webhook self-check tool.
func SignBody(channelSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ParseWebhookBody decodes the raw webhook payload. An empty events list
// is valid; LINE sends verification requests without events.
func ParseWebhookBody(body []byte) (WebhookBody, error) {
	var parsed WebhookBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return WebhookBody{}, fmt.Errorf("decode webhook body: %w", err)
	}
	return parsed, nil
}
