package store

import (
	"sort"

	"github.com/zhouzirui/echomind/backend/internal/model/chat"
	"github.com/zhouzirui/echomind/backend/internal/model/emotion"
	"github.com/zhouzirui/echomind/backend/internal/model/intent"
)

func cloneRule(r intent.Rule) intent.Rule {
	out := r
	out.Patterns = append([]string(nil), r.Patterns...)
	out.Responses = append([]string(nil), r.Responses...)
	out.Entities = make([]intent.EntityExtractor, len(r.Entities))
	for i, ex := range r.Entities {
		out.Entities[i] = intent.EntityExtractor{
			Type:     ex.Type,
			Patterns: append([]string(nil), ex.Patterns...),
		}
	}
	return out
}

func cloneModel(m emotion.Model) emotion.Model {
	out := m
	out.Keywords = make(map[emotion.Label][]string, len(m.Keywords))
	for label, words := range m.Keywords {
		out.Keywords[label] = append([]string(nil), words...)
	}
	out.Modifiers = append([]emotion.Modifier(nil), m.Modifiers...)
	return out
}

// sortConversations orders by creation time, oldest first.
func sortConversations(convs []chat.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		if convs[i].CreatedAt.Equal(convs[j].CreatedAt) {
			return convs[i].ID < convs[j].ID
		}
		return convs[i].CreatedAt.Before(convs[j].CreatedAt)
	})
}
