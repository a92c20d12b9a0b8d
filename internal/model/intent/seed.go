package intent

// Seed provides the built-in rule set, in evaluation order.
func Seed() []Rule {
	return []Rule{
		{
			Category: "greeting",
			Patterns: []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"},
			Responses: []string{
				"Hello! How are you feeling today?",
				"Hi there! What's on your mind?",
			},
			RequiredConfidence: 0.7,
		},
		{
			Category: "question",
			Patterns: []string{"what", "how", "when", "where", "why", "who"},
			Responses: []string{
				"That's a good question. Let me think about it.",
			},
			Entities: []EntityExtractor{
				{Type: "time", Patterns: []string{"today", "tomorrow", "yesterday", "tonight", "now"}},
				{Type: "location", Patterns: []string{"here", "home", "work", "school", "outside"}},
			},
			RequiredConfidence: 0.15,
		},
		{
			Category: "emotion_support",
			Patterns: []string{"sad", "depressed", "anxious", "lonely", "stressed", "worried", "upset", "scared"},
			Responses: []string{
				"I'm sorry you're going through this. I'm here for you.",
				"That sounds hard. Do you want to talk about it?",
			},
			Entities: []EntityExtractor{
				{Type: "trigger", Patterns: []string{"work", "family", "school", "relationship", "health", "money"}},
			},
			RequiredConfidence: 0.1,
		},
		{
			Category: "gratitude",
			Patterns: []string{"thank", "thanks", "appreciate", "grateful"},
			Responses: []string{
				"You're very welcome!",
			},
			RequiredConfidence: 0.25,
		},
		{
			Category: "farewell",
			Patterns: []string{"bye", "goodbye", "see you", "good night", "talk later"},
			Responses: []string{
				"Take care! I'm here whenever you want to talk.",
			},
			RequiredConfidence: 0.2,
		},
		{
			Category: "help_request",
			Patterns: []string{"help", "assist", "advice", "support", "need"},
			Responses: []string{
				"I'll do my best to help. Tell me a little more.",
			},
			Entities: []EntityExtractor{
				{Type: "topic", Patterns: []string{"work", "health", "sleep", "stress", "relationship"}},
			},
			RequiredConfidence: 0.2,
		},
	}
}
