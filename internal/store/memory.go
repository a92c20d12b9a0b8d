package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/zhouzirui/echomind/backend/internal/model/chat"
	"github.com/zhouzirui/echomind/backend/internal/model/emotion"
	"github.com/zhouzirui/echomind/backend/internal/model/intent"
)

// MemoryStore keeps everything in process memory. Values are copied on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
	bySession     map[sessionKey]string
	intents       []intent.Rule
	models        map[string]emotion.Model
}

type sessionKey struct {
	userID    string
	sessionID string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]chat.Conversation),
		bySession:     make(map[sessionKey]string),
		models:        make(map[string]emotion.Model),
	}
}

func (s *MemoryStore) GetConversation(_ context.Context, id string) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := conv.Clone()
	return &out, nil
}

func (s *MemoryStore) FindConversation(_ context.Context, userID, sessionID string) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySession[sessionKey{userID, sessionID}]
	if !ok {
		return nil, ErrNotFound
	}
	out := s.conversations[id].Clone()
	return &out, nil
}

func (s *MemoryStore) ListConversations(_ context.Context, userID string) ([]chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.UserID == userID {
			out = append(out, conv.Clone())
		}
	}
	sortConversations(out)
	return out, nil
}

func (s *MemoryStore) InsertConversation(_ context.Context, conv *chat.Conversation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sessionKey{conv.UserID, conv.SessionID}
	if _, exists := s.bySession[key]; exists {
		return "", ErrDuplicate
	}

	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	s.conversations[conv.ID] = conv.Clone()
	s.bySession[key] = conv.ID
	return conv.ID, nil
}

func (s *MemoryStore) PatchConversation(_ context.Context, id string, patch chat.ConversationPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return ErrNotFound
	}
	conv.Messages = patch.Messages
	conv.Context = patch.Context
	conv.UpdatedAt = patch.UpdatedAt
	s.conversations[id] = conv.Clone()
	return nil
}

func (s *MemoryStore) ListIntents(_ context.Context) ([]intent.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]intent.Rule, len(s.intents))
	for i, rule := range s.intents {
		out[i] = cloneRule(rule)
	}
	return out, nil
}

func (s *MemoryStore) FindIntent(_ context.Context, category string) (intent.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rule := range s.intents {
		if rule.Category == category {
			return cloneRule(rule), nil
		}
	}
	return intent.Rule{}, ErrNotFound
}

func (s *MemoryStore) InsertIntent(_ context.Context, rule intent.Rule) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.intents {
		if existing.Category == rule.Category {
			return "", ErrDuplicate
		}
	}
	rule = cloneRule(rule)
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	s.intents = append(s.intents, rule)
	return rule.ID, nil
}

func (s *MemoryStore) DeleteIntent(_ context.Context, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, rule := range s.intents {
		if rule.Category == category {
			s.intents = append(s.intents[:i:i], s.intents[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) FindEmotionModel(_ context.Context, name string) (emotion.Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	model, ok := s.models[name]
	if !ok {
		return emotion.Model{}, ErrNotFound
	}
	return cloneModel(model), nil
}

func (s *MemoryStore) InsertEmotionModel(_ context.Context, model emotion.Model) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.models[model.Name]; exists {
		return "", ErrDuplicate
	}
	model = cloneModel(model)
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	s.models[model.Name] = model
	return model.ID, nil
}

func (s *MemoryStore) Close() error { return nil }
