package emotion

// DefaultModelName is the name the pipeline looks up unless configured otherwise.
const DefaultModelName = "default"

// Seed provides the built-in emotion model.
func Seed() Model {
	return Model{
		Name: DefaultModelName,
		Keywords: map[Label][]string{
			Happy: {
				"happy", "joy", "glad", "great", "wonderful", "excited", "love", "awesome",
				"fantastic", "delighted", "cheerful", "thrilled",
			},
			Sad: {
				"sad", "unhappy", "depressed", "lonely", "cry", "miserable", "heartbroken",
				"down", "hopeless", "gloomy",
			},
			Angry: {
				"angry", "mad", "furious", "annoyed", "hate", "frustrated", "irritated", "outraged",
			},
			Fear: {
				"afraid", "scared", "anxious", "worried", "nervous", "terrified", "panic", "frightened",
			},
			Surprise: {
				"surprised", "wow", "amazing", "unexpected", "shocked", "astonished", "unbelievable",
			},
			Neutral: {
				"okay", "fine", "alright", "normal", "nothing much",
			},
		},
		Modifiers: []Modifier{
			{Word: "extremely", Multiplier: 2.0},
			{Word: "incredibly", Multiplier: 1.8},
			{Word: "very", Multiplier: 1.5},
			{Word: "really", Multiplier: 1.3},
			{Word: "quite", Multiplier: 1.2},
			{Word: "a bit", Multiplier: 0.7},
			{Word: "slightly", Multiplier: 0.5},
		},
	}
}
