package chat

import (
	"time"

	"github.com/zhouzirui/echomind/backend/internal/model/emotion"
)

// Preferences captures how the assistant should talk to this user.
type Preferences struct {
	ResponseStyle string `json:"responseStyle"`
	Verbosity     string `json:"verbosity"`
}

// DefaultPreferences are applied when a conversation is created.
func DefaultPreferences() Preferences {
	return Preferences{ResponseStyle: "empathetic", Verbosity: "detailed"}
}

// Context is the mutable running state of a conversation.
type Context struct {
	UserMood          emotion.Label `json:"userMood"`
	ConversationTopic string        `json:"conversationTopic,omitempty"`
	LastIntent        string        `json:"lastIntent,omitempty"`
	Preferences       Preferences   `json:"preferences"`
}

// Conversation is keyed by (UserID, SessionID). Messages are append-only and
// always grow by a user/assistant pair.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
	Context   Context   `json:"context"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ConversationPatch replaces the mutable fields of a stored conversation in a
// single write.
type ConversationPatch struct {
	Messages  []Message
	Context   Context
	UpdatedAt time.Time
}

// Recent returns at most n trailing messages, oldest first.
func (c *Conversation) Recent(n int) []Message {
	if c == nil || n <= 0 || len(c.Messages) == 0 {
		return nil
	}
	start := len(c.Messages) - n
	if start < 0 {
		start = 0
	}
	return c.Messages[start:]
}

// Clone returns a deep copy safe to hand out of a store.
func (c Conversation) Clone() Conversation {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	for i, msg := range c.Messages {
		if msg.Sentiment != nil {
			s := *msg.Sentiment
			msg.Sentiment = &s
		}
		if msg.Intent != nil {
			in := msg.Intent.Clone()
			msg.Intent = &in
		}
		out.Messages[i] = msg
	}
	return out
}
