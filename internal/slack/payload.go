package slack

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	TypeURLVerification = "url_verification"
	TypeEventCallback   = "event_callback"
)

// Envelope is the outer Events API document.
type Envelope struct {
	Type      string        `json:"type" validate:"required,oneof=url_verification event_callback"`
	Challenge string        `json:"challenge" validate:"required_if=Type url_verification"`
	APIAppID  string        `json:"api_app_id" validate:"required_if=Type event_callback"`
	TeamID    string        `json:"team_id"`
	EventID   string        `json:"event_id"`
	Event     *MessageEvent `json:"event" validate:"required_if=Type event_callback"`
}

// MessageEvent is the inner event of an event_callback.
type MessageEvent struct {
	Type     string  `json:"type" validate:"required"`
	Subtype  string  `json:"subtype,omitempty"`
	Channel  string  `json:"channel" validate:"required"`
	User     string  `json:"user"`
	BotID    string  `json:"bot_id,omitempty"`
	TS       string  `json:"ts" validate:"required"`
	ThreadTS string  `json:"thread_ts,omitempty"`
	Text     string  `json:"text"`
	Blocks   []Block `json:"blocks"`
}

// FromBot reports whether the message was posted by a bot, including our own replies.
func (e *MessageEvent) FromBot(botUserID string) bool {
	if e == nil {
		return false
	}
	return e.BotID != "" || e.Subtype == "bot_message" || (botUserID != "" && e.User == botUserID)
}

// Block is a top-level message block.
type Block struct {
	Type     string        `json:"type"`
	Elements []RichElement `json:"elements"`
}

// RichElement is a rich_text container such as a section or quote.
type RichElement struct {
	Type     string `json:"type"`
	Elements []Leaf `json:"elements"`
}

// Leaf is a typed rich-text node.
type Leaf struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Style  *Style `json:"style,omitempty"`
}

// Style carries inline formatting flags.
type Style struct {
	Bold   bool `json:"bold,omitempty"`
	Italic bool `json:"italic,omitempty"`
	Strike bool `json:"strike,omitempty"`
	Code   bool `json:"code,omitempty"`
}

var validate = validator.New()

// ParseEnvelope decodes and validates a request body.
func ParseEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if err := validate.Struct(&env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}
	return &env, nil
}
