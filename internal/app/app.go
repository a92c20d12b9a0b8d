// Package app assembles the services shared by every binary.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zhouzirui/echomind/backend/internal/auth"
	"github.com/zhouzirui/echomind/backend/internal/config"
	"github.com/zhouzirui/echomind/backend/internal/service/ai"
	"github.com/zhouzirui/echomind/backend/internal/service/dialogue"
	"github.com/zhouzirui/echomind/backend/internal/service/metrics"
	"github.com/zhouzirui/echomind/backend/internal/store"
)

// App holds the wired services.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     store.Store
	Responder *ai.Service
	Dialogue  *dialogue.Service
	Metrics   *metrics.Service
}

// New opens the store, loads the seed and builds the services. authProvider
// decides how callers are identified (request context for HTTP, a fixed id for
// the CLI).
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, authProvider auth.Provider) (*App, error) {
	seed, err := config.LoadSeed(cfg.Dialogue.SeedFile)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store, logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	responder, err := ai.NewServiceFromConfig(ctx, cfg.AI, logger.Named("ai"))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init responder: %w", err)
	}
	if providers := responder.Providers(); len(providers) == 0 {
		logger.Warn("no language model provider configured, replies will use the local fallback table")
	} else {
		logger.Info("language model providers ready", zap.Strings("providers", providers))
	}

	dialogueSvc := dialogue.NewService(st, authProvider, responder, dialogue.Options{
		EmotionModel: cfg.Dialogue.EmotionModel,
		Seed:         seed,
	}, logger.Named("dialogue"))

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     st,
		Responder: responder,
		Dialogue:  dialogueSvc,
		Metrics:   metrics.NewService(st, authProvider),
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
