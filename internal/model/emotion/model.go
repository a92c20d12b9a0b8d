package emotion

// Label is one of the six fixed emotion labels.
type Label string

const (
	Happy    Label = "happy"
	Sad      Label = "sad"
	Angry    Label = "angry"
	Fear     Label = "fear"
	Surprise Label = "surprise"
	Neutral  Label = "neutral"
)

// Labels lists every label in evaluation order. Ties between labels are
// broken by this order.
var Labels = []Label{Happy, Sad, Angry, Fear, Surprise, Neutral}

// Valid reports whether l is one of the fixed labels.
func (l Label) Valid() bool {
	for _, known := range Labels {
		if l == known {
			return true
		}
	}
	return false
}

// Modifier scales keyword hits when Word appears in the text.
type Modifier struct {
	Word       string  `json:"word" toml:"word"`
	Multiplier float64 `json:"multiplier" toml:"multiplier"`
}

// Model is a named keyword configuration for the sentiment scorer.
type Model struct {
	ID        string             `json:"id,omitempty" toml:"-"`
	Name      string             `json:"name" toml:"name"`
	Keywords  map[Label][]string `json:"keywords" toml:"keywords"`
	Modifiers []Modifier         `json:"modifiers" toml:"modifiers"`
}

// Reading is the scorer output. All four fields are always set together.
type Reading struct {
	Emotion    Label   `json:"emotion"`
	Confidence float64 `json:"confidence"`
	Valence    float64 `json:"valence"`
	Arousal    float64 `json:"arousal"`
}
