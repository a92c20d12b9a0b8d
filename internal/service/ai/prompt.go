package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/echomind/backend/internal/model/chat"
	"github.com/zhouzirui/echomind/backend/internal/model/emotion"
	"github.com/zhouzirui/echomind/backend/internal/model/intent"
)

// ReplyHistoryLimit caps the turns forwarded with a context-aware reply.
const ReplyHistoryLimit = 6

// buildAnswerSystemPrompt 构造开放域问答的系统提示，包含当前时间。
func buildAnswerSystemPrompt(now time.Time) string {
	return fmt.Sprintf(`You are a friendly voice assistant answering open-domain questions.
Current date and time: %s.

Guidelines:
- Answer briefly and in plain spoken language; your reply will be read aloud.
- Be honest about not knowing. Never invent facts, numbers or sources.
- Stay conversational and warm.`, now.Format("Monday, January 2, 2006 15:04 MST"))
}

// buildReplySystemPrompt embeds the analysis readings so the model can adapt tone.
func buildReplySystemPrompt(sentiment emotion.Reading, in intent.Reading) string {
	var builder strings.Builder
	builder.WriteString("You are an empathetic conversational companion speaking through a voice interface.\n\n")
	builder.WriteString("Analysis of the user's latest message:\n")
	builder.WriteString(fmt.Sprintf("- emotion: %s (confidence %.2f)\n", sentiment.Emotion, sentiment.Confidence))
	builder.WriteString(fmt.Sprintf("- valence: %.2f, arousal: %.2f\n", sentiment.Valence, sentiment.Arousal))
	builder.WriteString(fmt.Sprintf("- intent: %s (confidence %.2f)\n\n", in.Category, in.Confidence))
	builder.WriteString("Rules:\n")
	builder.WriteString("1. If the user sounds distressed, respond with empathy and acknowledge their feelings first.\n")
	builder.WriteString("2. If the user sounds positive, match their energy.\n")
	builder.WriteString("3. If the user sounds angry, stay calm and do not escalate.\n")
	builder.WriteString("Keep replies short enough to be spoken aloud.")

	if len(in.Entities) > 0 {
		parts := make([]string, 0, len(in.Entities))
		for _, ent := range in.Entities {
			parts = append(parts, ent.Type+"="+ent.Value)
		}
		builder.WriteString("\n\nMentioned entities: ")
		builder.WriteString(strings.Join(parts, ", "))
	}

	return builder.String()
}

// buildHistoryMessages converts stored turns to chat messages, oldest first.
func buildHistoryMessages(messages []chat.Message, limit int) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if limit > 0 && len(messages) > limit {
		startIdx = len(messages) - limit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Type {
		case chat.MessageUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.MessageAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return history
}

// FormatContext renders turns as "User: ..." / "Assistant: ..." lines, newest last.
func FormatContext(messages []chat.Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		speaker := "User"
		if msg.Type == chat.MessageAssistant {
			speaker = "Assistant"
		}
		lines = append(lines, speaker+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}
