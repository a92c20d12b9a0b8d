// Package sentiment scores an utterance against a keyword emotion model.
package sentiment

import (
	"strings"

	"github.com/zhouzirui/echomind/backend/internal/model/emotion"
)

// Analyze maps text to an emotion reading using the supplied model.
//
// Keywords and modifiers are matched as plain substrings of the lower-cased
// text, so a keyword inside a longer word still counts.
func Analyze(text string, model emotion.Model) emotion.Reading {
	normalized := strings.ToLower(text)
	multiplier := intensity(normalized, model.Modifiers)

	scores := make(map[emotion.Label]float64, len(emotion.Labels))
	matches := 0
	for _, label := range emotion.Labels {
		for _, word := range model.Keywords[label] {
			if word == "" {
				continue
			}
			if strings.Contains(normalized, strings.ToLower(word)) {
				scores[label] += multiplier
				matches++
			}
		}
	}

	if matches == 0 {
		return emotion.Reading{Emotion: emotion.Neutral, Confidence: 1.0}
	}

	for label := range scores {
		scores[label] /= float64(matches)
	}

	bestLabel := emotion.Neutral
	bestScore := 0.0
	for _, label := range emotion.Labels {
		if s := scores[label]; s > bestScore {
			bestScore = s
			bestLabel = label
		}
	}

	valence := (scores[emotion.Happy] + scores[emotion.Surprise]) -
		(scores[emotion.Sad] + scores[emotion.Angry] + scores[emotion.Fear])
	arousal := scores[emotion.Angry] + scores[emotion.Fear] + scores[emotion.Surprise] + 0.5*scores[emotion.Happy]

	return emotion.Reading{
		Emotion:    bestLabel,
		Confidence: clamp(bestScore, 0, 1),
		Valence:    clamp(valence, -1, 1),
		Arousal:    clamp(arousal, 0, 1),
	}
}

// intensity returns the largest multiplier whose word appears in text.
// Multipliers do not stack.
func intensity(text string, modifiers []emotion.Modifier) float64 {
	best := 0.0
	found := false
	for _, m := range modifiers {
		if m.Word == "" || !strings.Contains(text, strings.ToLower(m.Word)) {
			continue
		}
		if !found || m.Multiplier > best {
			best = m.Multiplier
			found = true
		}
	}
	if !found {
		return 1.0
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
