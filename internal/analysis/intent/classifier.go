// Package intent classifies an utterance against an ordered rule set.
package intent

import (
	"strings"

	"github.com/zhouzirui/echomind/backend/internal/model/intent"
)

// EntityConfidence is assigned to every extracted entity.
const EntityConfidence = 0.8

// Classify picks the rule whose pattern hit ratio is highest among those that
// clear their own threshold. Earlier rules win ties.
func Classify(text string, rules []intent.Rule) intent.Reading {
	normalized := strings.ToLower(text)

	best := intent.Reading{Category: intent.Unknown, Entities: []intent.Entity{}}
	for _, rule := range rules {
		if len(rule.Patterns) == 0 {
			continue
		}
		matches := countMatches(normalized, rule.Patterns)
		if matches == 0 {
			continue
		}

		confidence := float64(matches) / float64(len(rule.Patterns))
		if confidence < rule.RequiredConfidence || confidence <= best.Confidence {
			continue
		}

		best = intent.Reading{
			Category:   rule.Category,
			Confidence: confidence,
			Entities:   extractEntities(normalized, rule.Entities),
		}
	}
	return best
}

func countMatches(text string, patterns []string) int {
	n := 0
	for _, p := range patterns {
		if p != "" && strings.Contains(text, strings.ToLower(p)) {
			n++
		}
	}
	return n
}

// extractEntities reports the configured pattern text, not the span found in
// the utterance. Repeated patterns yield repeated entities.
func extractEntities(text string, extractors []intent.EntityExtractor) []intent.Entity {
	entities := []intent.Entity{}
	for _, ex := range extractors {
		for _, p := range ex.Patterns {
			if p == "" || !strings.Contains(text, strings.ToLower(p)) {
				continue
			}
			entities = append(entities, intent.Entity{
				Type:       ex.Type,
				Value:      p,
				Confidence: EntityConfidence,
			})
		}
	}
	return entities
}
