package dialogue

import (
	"github.com/zhouzirui/echomind/backend/internal/model/emotion"
	"github.com/zhouzirui/echomind/backend/internal/model/intent"
)

// supportiveValence is the valence below which the supportive default is used.
const supportiveValence = -0.3

const (
	greetingSadResponse    = "Hello. I can hear that you might be feeling a bit down. I'm here if you want to talk about it."
	greetingResponse       = "Hello! It's good to hear from you. How are you feeling today?"
	emotionSupportResponse = "I'm sorry you're going through this. Your feelings are valid, and I'm here to listen."
	questionResponse       = "That's a good question. I don't have a reliable answer right now, but I'm happy to think it through with you."
	supportiveResponse     = "It sounds like things are difficult right now. Would you like to tell me more about what's on your mind?"
	neutralResponse        = "I hear you. Tell me more about what you're thinking."
)

// fallbackResponse 在远程模型不可用时给出确定性的回复。
func fallbackResponse(sentiment emotion.Reading, in intent.Reading) string {
	switch in.Category {
	case "greeting":
		if sentiment.Emotion == emotion.Sad {
			return greetingSadResponse
		}
		return greetingResponse
	case "emotion_support":
		return emotionSupportResponse
	case "question":
		return questionResponse
	}

	if sentiment.Valence < supportiveValence {
		return supportiveResponse
	}
	return neutralResponse
}
