package domain

import (
	"encoding/json"
	"time"
)

// ConversationMessage is one entry of the conversation history.
type ConversationMessage struct {
	Role      Role            `json:"role"`
	Message   string          `json:"message"`
	Event     string          `json:"event,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewMessage creates an entry stamped with the current time.
func NewMessage(role Role, message string) ConversationMessage {
	return ConversationMessage{Role: role, Message: message, CreatedAt: time.Now().UTC()}
}

// Frame converts the entry into its wire frame.
func (m ConversationMessage) Frame() MessageFrame {
	return MessageFrame{Role: m.Role, Message: m.Message}
}
