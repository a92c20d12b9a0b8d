package chat

import (
	"github.com/zhouzirui/echomind/backend/internal/model/emotion"
	"github.com/zhouzirui/echomind/backend/internal/model/intent"
)

// MessageType distinguishes the two sides of a turn.
type MessageType string

const (
	MessageUser      MessageType = "user"
	MessageAssistant MessageType = "assistant"
)

// Message is one immutable entry in a conversation. Sentiment and Intent are
// only attached to user messages.
type Message struct {
	ID        string           `json:"id"`
	Type      MessageType      `json:"type"`
	Content   string           `json:"content"`
	Timestamp int64            `json:"timestamp"` // unix milliseconds
	Sentiment *emotion.Reading `json:"sentiment,omitempty"`
	Intent    *intent.Reading  `json:"intent,omitempty"`
}

// IsUser reports whether the message was spoken by the user.
func (m Message) IsUser() bool {
	return m.Type == MessageUser
}
