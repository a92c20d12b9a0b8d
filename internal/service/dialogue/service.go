// Package dialogue runs the per-utterance pipeline: analysis, state load,
// response decision and persistence.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	classifier "github.com/zhouzirui/echomind/backend/internal/analysis/intent"
	"github.com/zhouzirui/echomind/backend/internal/analysis/sentiment"
	"github.com/zhouzirui/echomind/backend/internal/auth"
	"github.com/zhouzirui/echomind/backend/internal/config"
	"github.com/zhouzirui/echomind/backend/internal/model/chat"
	"github.com/zhouzirui/echomind/backend/internal/model/emotion"
	"github.com/zhouzirui/echomind/backend/internal/model/intent"
	"github.com/zhouzirui/echomind/backend/internal/service/ai"
	"github.com/zhouzirui/echomind/backend/internal/store"
)

var (
	ErrUnauthenticated      = auth.ErrUnauthenticated
	ErrConfigurationMissing = errors.New("dialogue configuration missing")
	ErrEmptyInput           = errors.New("utterance text is required")
	ErrSessionRequired      = errors.New("session id is required")
)

const (
	answerContextTurns = 3
	replyHistoryTurns  = ai.ReplyHistoryLimit
)

var questionWords = []string{"what", "how", "when", "where", "why", "who"}

// Responder generates remote replies. Both calls are best-effort.
type Responder interface {
	Answer(ctx context.Context, question, contextText string) (string, error)
	Reply(ctx context.Context, req ai.ReplyRequest) (string, error)
}

// Result is returned for every processed utterance.
type Result struct {
	Response       string          `json:"response"`
	Sentiment      emotion.Reading `json:"sentiment"`
	Intent         intent.Reading  `json:"intent"`
	ProcessingTime int64           `json:"processingTime"`
	Metrics        ResultMetrics   `json:"metrics"`
}

// ResultMetrics summarises one turn. Latencies are milliseconds.
type ResultMetrics struct {
	SentimentConfidence float64 `json:"sentimentConfidence"`
	IntentConfidence    float64 `json:"intentConfidence"`
	ResponseLatency     int64   `json:"responseLatency"`
}

// Options configures the orchestrator.
type Options struct {
	// EmotionModel is the name of the active sentiment model.
	EmotionModel string
	// Seed is written by InitializeDefaults.
	Seed config.Seed
}

// Service orchestrates one utterance at a time.
type Service struct {
	store        store.Store
	auth         auth.Provider
	responder    Responder
	emotionModel string
	seed         config.Seed
	logger       *zap.Logger
	now          func() time.Time
}

// NewService wires the orchestrator. responder may be nil, in which case every
// reply comes from the local fallback table.
func NewService(st store.Store, authProvider auth.Provider, responder Responder, opts Options, logger *zap.Logger) *Service {
	if opts.EmotionModel == "" {
		opts.EmotionModel = emotion.DefaultModelName
	}
	if opts.Seed.EmotionModel.Name == "" {
		opts.Seed = config.DefaultSeed()
	}
	return &Service{
		store:        st,
		auth:         authProvider,
		responder:    responder,
		emotionModel: opts.EmotionModel,
		seed:         opts.Seed,
		logger:       logger,
		now:          time.Now,
	}
}

// ProcessVoiceInput analyses text, decides a reply and appends the turn to the
// caller's conversation for sessionID.
func (s *Service) ProcessVoiceInput(ctx context.Context, text, sessionID string) (*Result, error) {
	start := s.now()

	userID, err := auth.Require(ctx, s.auth)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionRequired
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	sentimentReading, intentReading, err := s.analyze(ctx, text)
	if err != nil {
		return nil, err
	}

	conv, err := s.store.FindConversation(ctx, userID, sessionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		conv = nil
	case err != nil:
		return nil, fmt.Errorf("load conversation: %w", err)
	}

	responseStart := s.now()
	response := s.respond(ctx, text, sentimentReading, intentReading, conv)
	responseLatency := s.now().Sub(responseStart).Milliseconds()

	if err := s.persist(ctx, userID, sessionID, conv, text, sentimentReading, intentReading, response); err != nil {
		return nil, fmt.Errorf("persist conversation: %w", err)
	}

	s.logger.Info("processed utterance",
		zap.String("user", userID),
		zap.String("session", sessionID),
		zap.String("emotion", string(sentimentReading.Emotion)),
		zap.String("intent", intentReading.Category),
		zap.Int64("response_latency_ms", responseLatency),
	)

	return &Result{
		Response:       response,
		Sentiment:      sentimentReading,
		Intent:         intentReading,
		ProcessingTime: s.now().Sub(start).Milliseconds(),
		Metrics: ResultMetrics{
			SentimentConfidence: sentimentReading.Confidence,
			IntentConfidence:    intentReading.Confidence,
			ResponseLatency:     responseLatency,
		},
	}, nil
}

// analyze runs the sentiment scorer and the intent classifier concurrently.
// Either branch failing fails the utterance.
func (s *Service) analyze(ctx context.Context, text string) (emotion.Reading, intent.Reading, error) {
	var (
		sentimentReading emotion.Reading
		intentReading    intent.Reading
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		model, err := s.store.FindEmotionModel(gctx, s.emotionModel)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: emotion model %q not found", ErrConfigurationMissing, s.emotionModel)
		}
		if err != nil {
			return fmt.Errorf("load emotion model: %w", err)
		}
		sentimentReading = sentiment.Analyze(text, model)
		return nil
	})
	g.Go(func() error {
		rules, err := s.store.ListIntents(gctx)
		if err != nil {
			return fmt.Errorf("load intent rules: %w", err)
		}
		intentReading = classifier.Classify(text, rules)
		return nil
	})

	if err := g.Wait(); err != nil {
		return emotion.Reading{}, intent.Reading{}, err
	}
	return sentimentReading, intentReading, nil
}

// strategy is one rung of the reply ladder.
type strategy struct {
	name string
	run  func(ctx context.Context) (string, error)
}

// respond walks the ladder and stops at the first non-blank reply. The last
// rung is the local table, which cannot fail.
func (s *Service) respond(ctx context.Context, text string, sr emotion.Reading, ir intent.Reading, conv *chat.Conversation) string {
	ladder := make([]strategy, 0, 3)

	if s.responder != nil {
		if isQuestion(text, ir) {
			ladder = append(ladder, strategy{name: "answer", run: func(ctx context.Context) (string, error) {
				return s.responder.Answer(ctx, text, ai.FormatContext(conv.Recent(answerContextTurns)))
			}})
		}
		ladder = append(ladder, strategy{name: "reply", run: func(ctx context.Context) (string, error) {
			return s.responder.Reply(ctx, ai.ReplyRequest{
				Message:   text,
				Sentiment: sr,
				Intent:    ir,
				History:   conv.Recent(replyHistoryTurns),
			})
		}})
	}
	ladder = append(ladder, strategy{name: "fallback", run: func(context.Context) (string, error) {
		return fallbackResponse(sr, ir), nil
	}})

	for _, step := range ladder {
		reply, err := step.run(ctx)
		if err == nil && strings.TrimSpace(reply) != "" {
			return reply
		}
		if err == nil {
			err = errors.New("empty reply")
		}
		s.logger.Warn("response strategy failed, trying next", zap.String("strategy", step.name), zap.Error(err))
	}

	// unreachable: the fallback rung always answers
	return fallbackResponse(sr, ir)
}

// isQuestion reports whether the question path should be tried first.
func isQuestion(text string, ir intent.Reading) bool {
	if ir.Category == "question" {
		return true
	}
	lower := strings.ToLower(text)
	for _, word := range questionWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}

// persist appends the user/assistant pair in one document write. Concurrent
// writers on the same session are last-writer-wins.
func (s *Service) persist(ctx context.Context, userID, sessionID string, conv *chat.Conversation, text string, sr emotion.Reading, ir intent.Reading, response string) error {
	now := s.now().UTC()
	ts := now.UnixMilli()

	userSentiment := sr
	userIntent := ir.Clone()
	pair := []chat.Message{
		{
			ID:        uuid.NewString(),
			Type:      chat.MessageUser,
			Content:   text,
			Timestamp: ts,
			Sentiment: &userSentiment,
			Intent:    &userIntent,
		},
		{
			ID:        uuid.NewString(),
			Type:      chat.MessageAssistant,
			Content:   response,
			Timestamp: ts + 1,
		},
	}

	if conv == nil {
		fresh := &chat.Conversation{
			UserID:    userID,
			SessionID: sessionID,
			Messages:  pair,
			Context:   mergeContext(chat.Context{Preferences: chat.DefaultPreferences()}, sr, ir),
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err := s.store.InsertConversation(ctx, fresh)
		if !errors.Is(err, store.ErrDuplicate) {
			return err
		}

		// Another request created the session first; append to its copy.
		conv, err = s.store.FindConversation(ctx, userID, sessionID)
		if err != nil {
			return err
		}
	}

	messages := make([]chat.Message, 0, len(conv.Messages)+len(pair))
	messages = append(messages, conv.Messages...)
	messages = append(messages, pair...)

	return s.store.PatchConversation(ctx, conv.ID, chat.ConversationPatch{
		Messages:  messages,
		Context:   mergeContext(conv.Context, sr, ir),
		UpdatedAt: now,
	})
}

// mergeContext folds the new readings into the running context. The topic is
// kept when the intent is unknown.
func mergeContext(prev chat.Context, sr emotion.Reading, ir intent.Reading) chat.Context {
	next := prev
	next.UserMood = sr.Emotion
	next.LastIntent = ir.Category
	if ir.Category != intent.Unknown {
		next.ConversationTopic = ir.Category
	}
	return next
}

// GetConversationHistory returns the caller's conversation for sessionID, or
// nil when none exists yet.
func (s *Service) GetConversationHistory(ctx context.Context, sessionID string) (*chat.Conversation, error) {
	userID, err := auth.Require(ctx, s.auth)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrSessionRequired
	}

	conv, err := s.store.FindConversation(ctx, userID, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	return conv, nil
}

// InitializeDefaults seeds intent rules and the emotion model. It is a no-op
// when any intent rule already exists and reports whether it wrote anything.
func (s *Service) InitializeDefaults(ctx context.Context) (bool, error) {
	existing, err := s.store.ListIntents(ctx)
	if err != nil {
		return false, fmt.Errorf("list intents: %w", err)
	}
	if len(existing) > 0 {
		s.logger.Debug("defaults already present", zap.Int("intents", len(existing)))
		return false, nil
	}

	for _, rule := range s.seed.Intents {
		if _, err := s.store.InsertIntent(ctx, rule); err != nil && !errors.Is(err, store.ErrDuplicate) {
			return false, fmt.Errorf("insert intent %q: %w", rule.Category, err)
		}
	}

	model := s.seed.EmotionModel
	if _, err := s.store.FindEmotionModel(ctx, model.Name); errors.Is(err, store.ErrNotFound) {
		if _, err := s.store.InsertEmotionModel(ctx, model); err != nil && !errors.Is(err, store.ErrDuplicate) {
			return false, fmt.Errorf("insert emotion model: %w", err)
		}
	} else if err != nil {
		return false, fmt.Errorf("find emotion model: %w", err)
	}

	if model.Name != s.emotionModel {
		s.logger.Warn("seeded emotion model is not the active one",
			zap.String("seeded", model.Name), zap.String("active", s.emotionModel))
	}

	s.logger.Info("seeded defaults", zap.Int("intents", len(s.seed.Intents)), zap.String("emotion_model", model.Name))
	return true, nil
}
