package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/echomind/backend/internal/config"
	"github.com/zhouzirui/echomind/backend/internal/model/chat"
	"github.com/zhouzirui/echomind/backend/internal/model/emotion"
	"github.com/zhouzirui/echomind/backend/internal/model/intent"
)

var (
	// ErrServiceUnavailable marks a failed or empty remote call.
	ErrServiceUnavailable = errors.New("remote language model unavailable")
	// ErrNoProviderConfigured means every provider was skipped or failed.
	ErrNoProviderConfigured = errors.New("no language model provider available")
)

// Provider is one configured chat endpoint behind a compiled prompt chain.
type Provider struct {
	Name  string
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewProvider compiles the shared prompt template in front of chatModel.
func NewProvider(ctx context.Context, name string, chatModel model.BaseChatModel) (*Provider, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s chain: %w", name, err)
	}

	return &Provider{Name: name, chain: runnable}, nil
}

func (p *Provider) invoke(ctx context.Context, system string, history []*schema.Message, query string) (string, error) {
	response, err := p.chain.Invoke(ctx, map[string]any{
		"system":  system,
		"history": history,
		"query":   query,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrServiceUnavailable, p.Name, err)
	}

	content := strings.TrimSpace(response.Content)
	if content == "" {
		return "", fmt.Errorf("%w: %s returned an empty reply", ErrServiceUnavailable, p.Name)
	}
	return content, nil
}

// Service is the knowledge responder. Every call is stateless.
type Service struct {
	providers []*Provider
	logger    *zap.Logger
	now       func() time.Time
}

// NewService uses providers in the given order.
func NewService(providers []*Provider, logger *zap.Logger) *Service {
	return &Service{
		providers: providers,
		logger:    logger,
		now:       time.Now,
	}
}

// NewServiceFromConfig builds the primary and secondary providers that have
// credentials. A provider without credentials is skipped, not an error.
func NewServiceFromConfig(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	var providers []*Provider

	if cfg.Primary.Enabled() {
		p, err := NewProvider(ctx, "openai", NewOpenAIChatModel(cfg.Primary, cfg.MaxTokens, cfg.Temperature))
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	} else {
		logger.Info("primary provider not configured, skipping", zap.String("provider", "openai"))
	}

	if cfg.Secondary.Enabled() {
		chatModel, err := cfg.Secondary.NewChatModel(ctx, cfg.MaxTokens, cfg.Temperature)
		if err != nil {
			logger.Warn("failed to create secondary provider, skipping", zap.String("provider", "ark"), zap.Error(err))
		} else {
			p, err := NewProvider(ctx, "ark", chatModel)
			if err != nil {
				return nil, err
			}
			providers = append(providers, p)
		}
	} else {
		logger.Info("secondary provider not configured, skipping", zap.String("provider", "ark"))
	}

	return NewService(providers, logger), nil
}

// Providers lists the provider names in call order.
func (s *Service) Providers() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name
	}
	return names
}

// Answer asks the first configured provider an open-domain question.
// contextText is optional prior conversation, newest last.
func (s *Service) Answer(ctx context.Context, question, contextText string) (string, error) {
	if len(s.providers) == 0 {
		return "", ErrNoProviderConfigured
	}

	var history []*schema.Message
	if strings.TrimSpace(contextText) != "" {
		history = append(history, schema.SystemMessage("Recent conversation:\n"+contextText))
	}

	p := s.providers[0]
	answer, err := p.invoke(ctx, buildAnswerSystemPrompt(s.now()), history, question)
	if err != nil {
		return "", err
	}

	s.logger.Debug("answered question", zap.String("provider", p.Name), zap.Int("length", len(answer)))
	return answer, nil
}

// ReplyRequest carries everything a context-aware reply needs.
type ReplyRequest struct {
	Message   string
	Sentiment emotion.Reading
	Intent    intent.Reading
	History   []chat.Message
}

// Reply tries each provider in order and returns the first non-empty reply.
func (s *Service) Reply(ctx context.Context, req ReplyRequest) (string, error) {
	system := buildReplySystemPrompt(req.Sentiment, req.Intent)
	history := buildHistoryMessages(req.History, ReplyHistoryLimit)

	for _, p := range s.providers {
		reply, err := p.invoke(ctx, system, history, req.Message)
		if err != nil {
			s.logger.Warn("provider failed", zap.String("provider", p.Name), zap.Error(err))
			continue
		}
		s.logger.Debug("generated reply", zap.String("provider", p.Name), zap.Int("length", len(reply)))
		return reply, nil
	}

	return "", ErrNoProviderConfigured
}
