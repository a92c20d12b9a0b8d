package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/zhouzirui/echomind/backend/internal/model/emotion"
	"github.com/zhouzirui/echomind/backend/internal/model/intent"
)

// Seed is the initial configuration written by InitializeDefaults.
//
//	[emotion_model]
//	name = "default"
//	[emotion_model.keywords]
//	happy = ["happy", "glad"]
//	[[emotion_model.modifiers]]
//	word = "very"
//	multiplier = 1.5
//
//	[[intents]]
//	category = "greeting"
//	patterns = ["hello", "hi"]
//	required_confidence = 0.7
type Seed struct {
	EmotionModel emotion.Model `toml:"emotion_model"`
	Intents      []intent.Rule `toml:"intents"`
}

// DefaultSeed returns the built-in emotion model and intent rules.
func DefaultSeed() Seed {
	return Seed{EmotionModel: emotion.Seed(), Intents: intent.Seed()}
}

// LoadSeed reads a TOML seed file. An empty path yields DefaultSeed.
func LoadSeed(path string) (Seed, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultSeed(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}

	var seed Seed
	if err := toml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if err := seed.Validate(); err != nil {
		return Seed{}, fmt.Errorf("seed file %s: %w", path, err)
	}
	return seed, nil
}

// Validate checks labels, categories and thresholds.
func (s Seed) Validate() error {
	if s.EmotionModel.Name == "" {
		return fmt.Errorf("emotion_model.name is required")
	}
	for label := range s.EmotionModel.Keywords {
		if !label.Valid() {
			return fmt.Errorf("unknown emotion label %q", label)
		}
	}
	for _, mod := range s.EmotionModel.Modifiers {
		if mod.Word == "" || mod.Multiplier <= 0 {
			return fmt.Errorf("invalid modifier %q (multiplier %.2f)", mod.Word, mod.Multiplier)
		}
	}

	seen := make(map[string]bool, len(s.Intents))
	for i, rule := range s.Intents {
		if err := ValidateRule(rule); err != nil {
			return fmt.Errorf("intents[%d]: %w", i, err)
		}
		if seen[rule.Category] {
			return fmt.Errorf("intents[%d]: duplicate category %q", i, rule.Category)
		}
		seen[rule.Category] = true
	}
	return nil
}

// ValidateRule rejects rules the classifier could never apply sensibly.
func ValidateRule(rule intent.Rule) error {
	if strings.TrimSpace(rule.Category) == "" {
		return fmt.Errorf("category is required")
	}
	if rule.Category == intent.Unknown {
		return fmt.Errorf("category %q is reserved", intent.Unknown)
	}
	if rule.RequiredConfidence < 0 || rule.RequiredConfidence > 1 {
		return fmt.Errorf("required_confidence must be within [0, 1], got %.2f", rule.RequiredConfidence)
	}
	return nil
}
