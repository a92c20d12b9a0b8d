// Package store persists conversations, intent rules and emotion models.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/zhouzirui/echomind/backend/internal/config"
	"github.com/zhouzirui/echomind/backend/internal/model/chat"
	"github.com/zhouzirui/echomind/backend/internal/model/emotion"
	"github.com/zhouzirui/echomind/backend/internal/model/intent"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Store is the keyed document store consumed by the dialogue pipeline.
//
// PatchConversation replaces the mutable fields of one conversation in a single
// write. Concurrent patches of the same conversation are last-writer-wins.
type Store interface {
	GetConversation(ctx context.Context, id string) (*chat.Conversation, error)
	FindConversation(ctx context.Context, userID, sessionID string) (*chat.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error)
	InsertConversation(ctx context.Context, conv *chat.Conversation) (string, error)
	PatchConversation(ctx context.Context, id string, patch chat.ConversationPatch) error

	ListIntents(ctx context.Context) ([]intent.Rule, error)
	FindIntent(ctx context.Context, category string) (intent.Rule, error)
	InsertIntent(ctx context.Context, rule intent.Rule) (string, error)
	DeleteIntent(ctx context.Context, category string) error

	FindEmotionModel(ctx context.Context, name string) (emotion.Model, error)
	InsertEmotionModel(ctx context.Context, model emotion.Model) (string, error)

	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Info("using in-memory store")
		return NewMemoryStore(), nil
	case config.DriverSQLite:
		logger.Info("opening sqlite store", zap.String("path", cfg.SQLitePath))
		return NewSQLiteStore(cfg.SQLitePath)
	case config.DriverPostgres:
		logger.Info("opening postgres store")
		return NewPostgresStore(ctx, cfg.DatabaseURL, logger)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}
