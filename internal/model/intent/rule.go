package intent

// Unknown is the category reported when no rule clears its threshold.
const Unknown = "unknown"

// EntityExtractor emits an entity of Type for every pattern found in the text.
type EntityExtractor struct {
	Type     string   `json:"type" toml:"type"`
	Patterns []string `json:"patterns" toml:"patterns"`
}

// Rule is a pattern-matched category with canned replies and entity
// sub-patterns. Rules are evaluated in stored order.
type Rule struct {
	ID                 string            `json:"id,omitempty" toml:"-"`
	Category           string            `json:"category" toml:"category"`
	Patterns           []string          `json:"patterns" toml:"patterns"`
	Responses          []string          `json:"responses" toml:"responses"`
	Entities           []EntityExtractor `json:"entities" toml:"entities"`
	RequiredConfidence float64           `json:"requiredConfidence" toml:"required_confidence"`
}

// Entity is a typed piece of information extracted alongside an intent.
type Entity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Reading is the classifier output.
type Reading struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Entities   []Entity `json:"entities"`
}

// Clone copies the entity slice so the reading can be shared safely.
func (r Reading) Clone() Reading {
	out := r
	out.Entities = append([]Entity{}, r.Entities...)
	return out
}
