package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/echomind/backend/internal/auth"
	"github.com/zhouzirui/echomind/backend/internal/model/chat"
	"github.com/zhouzirui/echomind/backend/internal/model/emotion"
	"github.com/zhouzirui/echomind/backend/internal/model/intent"
	"github.com/zhouzirui/echomind/backend/internal/service/ai"
	"github.com/zhouzirui/echomind/backend/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeResponder struct {
	mu          sync.Mutex
	answer      string
	answerErr   error
	reply       string
	replyErr    error
	answerCalls int
	replyCalls  int
	lastContext string
	lastReply   ai.ReplyRequest
}

func (f *fakeResponder) Answer(_ context.Context, _ string, contextText string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answerCalls++
	f.lastContext = contextText
	return f.answer, f.answerErr
}

func (f *fakeResponder) Reply(_ context.Context, req ai.ReplyRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replyCalls++
	f.lastReply = req
	return f.reply, f.replyErr
}

func newSeededService(t *testing.T, st store.Store, responder Responder) *Service {
	t.Helper()
	svc := NewService(st, auth.ContextProvider{}, responder, Options{}, zap.NewNop())
	seeded, err := svc.InitializeDefaults(context.Background())
	require.NoError(t, err)
	require.True(t, seeded)
	return svc
}

func userCtx(userID string) context.Context {
	return auth.WithUserID(context.Background(), userID)
}

func TestProcessVoiceInputRequiresIdentity(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newSeededService(t, st, nil)

	_, err := svc.ProcessVoiceInput(context.Background(), "hello", "s1")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	convs, err := st.ListConversations(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestProcessVoiceInputRejectsBlankText(t *testing.T) {
	svc := newSeededService(t, store.NewMemoryStore(), nil)

	_, err := svc.ProcessVoiceInput(userCtx("u1"), "   ", "s1")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestBlankSessionIsRejected(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newSeededService(t, st, nil)

	_, err := svc.ProcessVoiceInput(userCtx("u1"), "hi there", "   ")
	assert.ErrorIs(t, err, ErrSessionRequired)

	_, err = svc.GetConversationHistory(userCtx("u1"), "   ")
	assert.ErrorIs(t, err, ErrSessionRequired)

	convs, err := st.ListConversations(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestBlankSessionNeedsIdentityFirst(t *testing.T) {
	svc := newSeededService(t, store.NewMemoryStore(), nil)

	_, err := svc.ProcessVoiceInput(context.Background(), "hi", "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestProcessVoiceInputMissingEmotionModel(t *testing.T) {
	st := store.NewMemoryStore()
	for _, rule := range intent.Seed() {
		_, err := st.InsertIntent(context.Background(), rule)
		require.NoError(t, err)
	}
	svc := NewService(st, auth.ContextProvider{}, nil, Options{}, zap.NewNop())

	_, err := svc.ProcessVoiceInput(userCtx("u1"), "hello", "s1")
	assert.ErrorIs(t, err, ErrConfigurationMissing)

	_, err = st.FindConversation(context.Background(), "u1", "s1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProcessVoiceInputAppendsPair(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newSeededService(t, st, nil)
	ctx := userCtx("u1")

	result, err := svc.ProcessVoiceInput(ctx, "I feel so lonely and stressed about work", "s1")
	require.NoError(t, err)

	assert.Equal(t, "emotion_support", result.Intent.Category)
	assert.Equal(t, emotionSupportResponse, result.Response)
	assert.Equal(t, result.Sentiment.Confidence, result.Metrics.SentimentConfidence)
	assert.Equal(t, result.Intent.Confidence, result.Metrics.IntentConfidence)
	assert.GreaterOrEqual(t, result.ProcessingTime, result.Metrics.ResponseLatency)

	conv, err := svc.GetConversationHistory(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, conv)
	require.Len(t, conv.Messages, 2)

	user, assistant := conv.Messages[0], conv.Messages[1]
	assert.Equal(t, chat.MessageUser, user.Type)
	assert.Equal(t, chat.MessageAssistant, assistant.Type)
	assert.Equal(t, user.Timestamp+1, assistant.Timestamp)
	assert.Equal(t, result.Response, assistant.Content)
	require.NotNil(t, user.Sentiment)
	require.NotNil(t, user.Intent)
	assert.Equal(t, "emotion_support", user.Intent.Category)
	assert.Nil(t, assistant.Sentiment)
	assert.Nil(t, assistant.Intent)

	assert.Equal(t, chat.DefaultPreferences(), conv.Context.Preferences)
	assert.Equal(t, result.Sentiment.Emotion, conv.Context.UserMood)
	assert.Equal(t, "emotion_support", conv.Context.ConversationTopic)

	_, err = svc.ProcessVoiceInput(ctx, "thanks for listening", "s1")
	require.NoError(t, err)

	conv, err = svc.GetConversationHistory(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, conv.Messages, 4)
	for i := 0; i < len(conv.Messages); i += 2 {
		assert.True(t, conv.Messages[i].IsUser())
		assert.False(t, conv.Messages[i+1].IsUser())
		assert.Equal(t, conv.Messages[i].Timestamp+1, conv.Messages[i+1].Timestamp)
	}
	assert.Equal(t, "gratitude", conv.Context.LastIntent)
}

func TestUnknownIntentKeepsTopic(t *testing.T) {
	svc := newSeededService(t, store.NewMemoryStore(), nil)
	ctx := userCtx("u1")

	_, err := svc.ProcessVoiceInput(ctx, "I feel so lonely and stressed about work", "s1")
	require.NoError(t, err)

	result, err := svc.ProcessVoiceInput(ctx, "the weather is nice today", "s1")
	require.NoError(t, err)
	require.Equal(t, intent.Unknown, result.Intent.Category)

	conv, err := svc.GetConversationHistory(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "emotion_support", conv.Context.ConversationTopic)
	assert.Equal(t, intent.Unknown, conv.Context.LastIntent)
	assert.Equal(t, emotion.Neutral, conv.Context.UserMood)
}

func TestSessionsAreScopedPerUser(t *testing.T) {
	svc := newSeededService(t, store.NewMemoryStore(), nil)

	_, err := svc.ProcessVoiceInput(userCtx("u1"), "hello", "shared")
	require.NoError(t, err)

	conv, err := svc.GetConversationHistory(userCtx("u2"), "shared")
	require.NoError(t, err)
	assert.Nil(t, conv)

	_, err = svc.GetConversationHistory(context.Background(), "shared")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestQuestionUsesAnswerPath(t *testing.T) {
	responder := &fakeResponder{answer: "Paris.", reply: "unused"}
	svc := newSeededService(t, store.NewMemoryStore(), responder)
	ctx := userCtx("u1")

	result, err := svc.ProcessVoiceInput(ctx, "What is the capital of France", "s1")
	require.NoError(t, err)
	assert.Equal(t, "Paris.", result.Response)
	assert.Equal(t, 1, responder.answerCalls)
	assert.Zero(t, responder.replyCalls)
	assert.Empty(t, responder.lastContext)

	for i := 0; i < 2; i++ {
		_, err = svc.ProcessVoiceInput(ctx, fmt.Sprintf("who won match %d", i), "s1")
		require.NoError(t, err)
	}

	lines := strings.Split(responder.lastContext, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Assistant: Paris.", lines[0])
	assert.Equal(t, "User: who won match 0", lines[1])
	assert.Equal(t, "Assistant: Paris.", lines[2])
}

func TestQuestionWordTriggersAnswerWithoutQuestionIntent(t *testing.T) {
	responder := &fakeResponder{answer: "Because it rains.", reply: "unused"}
	svc := newSeededService(t, store.NewMemoryStore(), responder)

	// "why" matches a question word; "thanks" wins the intent.
	result, err := svc.ProcessVoiceInput(userCtx("u1"), "thanks, but why", "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, responder.answerCalls)
	assert.Equal(t, "Because it rains.", result.Response)
}

func TestAnswerFailureFallsThroughToReply(t *testing.T) {
	responder := &fakeResponder{answerErr: ai.ErrServiceUnavailable, reply: "Let's figure it out together."}
	svc := newSeededService(t, store.NewMemoryStore(), responder)

	result, err := svc.ProcessVoiceInput(userCtx("u1"), "how do I stop worrying", "s1")
	require.NoError(t, err)
	assert.Equal(t, "Let's figure it out together.", result.Response)
	assert.Equal(t, 1, responder.answerCalls)
	assert.Equal(t, 1, responder.replyCalls)
	assert.Equal(t, "how do I stop worrying", responder.lastReply.Message)
	assert.Equal(t, result.Intent.Category, responder.lastReply.Intent.Category)
}

func TestAllProvidersFailUsesFallbackTable(t *testing.T) {
	responder := &fakeResponder{
		answerErr: ai.ErrServiceUnavailable,
		replyErr:  ai.ErrNoProviderConfigured,
	}
	svc := newSeededService(t, store.NewMemoryStore(), responder)

	result, err := svc.ProcessVoiceInput(userCtx("u1"), "what is the capital of France", "s1")
	require.NoError(t, err)
	assert.Equal(t, "question", result.Intent.Category)
	assert.Equal(t, questionResponse, result.Response)
}

func TestBlankReplyIsTreatedAsFailure(t *testing.T) {
	responder := &fakeResponder{reply: "   "}
	svc := newSeededService(t, store.NewMemoryStore(), responder)

	result, err := svc.ProcessVoiceInput(userCtx("u1"), "the weather is nice today", "s1")
	require.NoError(t, err)
	assert.Zero(t, responder.answerCalls)
	assert.Equal(t, 1, responder.replyCalls)
	assert.Equal(t, neutralResponse, result.Response)
}

func TestReplyReceivesLastSixTurns(t *testing.T) {
	responder := &fakeResponder{reply: "ok"}
	svc := newSeededService(t, store.NewMemoryStore(), responder)
	ctx := userCtx("u1")

	for i := 0; i < 4; i++ {
		_, err := svc.ProcessVoiceInput(ctx, fmt.Sprintf("statement %d", i), "s1")
		require.NoError(t, err)
	}

	require.Len(t, responder.lastReply.History, 6)
	assert.Equal(t, "statement 0", responder.lastReply.History[0].Content)
}

func TestConcurrentSessions(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newSeededService(t, st, &fakeResponder{reply: "sure"})
	ctx := userCtx("u1")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		sessionID := fmt.Sprintf("s%d", i)
		g.Go(func() error {
			_, err := svc.ProcessVoiceInput(gctx, "hello there", sessionID)
			return err
		})
	}
	require.NoError(t, g.Wait())

	convs, err := st.ListConversations(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, convs, 8)
	for _, conv := range convs {
		assert.Len(t, conv.Messages, 2)
	}
}

// racingStore hides the conversation from the first lookup, as if another
// request created it between the read and the insert.
type racingStore struct {
	store.Store
	hidden bool
}

func (r *racingStore) FindConversation(ctx context.Context, userID, sessionID string) (*chat.Conversation, error) {
	if !r.hidden {
		r.hidden = true
		return nil, store.ErrNotFound
	}
	return r.Store.FindConversation(ctx, userID, sessionID)
}

func TestFirstTurnRaceAppendsToExistingConversation(t *testing.T) {
	base := store.NewMemoryStore()
	svc := newSeededService(t, base, nil)
	ctx := userCtx("u1")

	_, err := svc.ProcessVoiceInput(ctx, "hello", "s1")
	require.NoError(t, err)

	racing := NewService(&racingStore{Store: base}, auth.ContextProvider{}, nil, Options{}, zap.NewNop())
	_, err = racing.ProcessVoiceInput(ctx, "hello again", "s1")
	require.NoError(t, err)

	conv, err := base.FindConversation(context.Background(), "u1", "s1")
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 4)
}

type failingPatchStore struct {
	store.Store
}

func (failingPatchStore) PatchConversation(context.Context, string, chat.ConversationPatch) error {
	return errors.New("disk full")
}

func TestPersistFailureIsSurfaced(t *testing.T) {
	base := store.NewMemoryStore()
	svc := newSeededService(t, base, nil)
	ctx := userCtx("u1")

	_, err := svc.ProcessVoiceInput(ctx, "hello", "s1")
	require.NoError(t, err)

	failing := NewService(failingPatchStore{Store: base}, auth.ContextProvider{}, nil, Options{}, zap.NewNop())
	_, err = failing.ProcessVoiceInput(ctx, "hello again", "s1")
	assert.ErrorContains(t, err, "disk full")
}

func TestInitializeDefaultsIsIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	svc := newSeededService(t, st, nil)

	seeded, err := svc.InitializeDefaults(context.Background())
	require.NoError(t, err)
	assert.False(t, seeded)

	rules, err := st.ListIntents(context.Background())
	require.NoError(t, err)
	assert.Len(t, rules, len(intent.Seed()))

	_, err = st.FindEmotionModel(context.Background(), emotion.DefaultModelName)
	assert.NoError(t, err)
	_, err = st.InsertEmotionModel(context.Background(), emotion.Seed())
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestInitializeDefaultsKeepsExistingModel(t *testing.T) {
	st := store.NewMemoryStore()
	custom := emotion.Seed()
	custom.Modifiers = nil
	_, err := st.InsertEmotionModel(context.Background(), custom)
	require.NoError(t, err)

	svc := NewService(st, auth.ContextProvider{}, nil, Options{}, zap.NewNop())
	seeded, err := svc.InitializeDefaults(context.Background())
	require.NoError(t, err)
	assert.True(t, seeded)

	model, err := st.FindEmotionModel(context.Background(), emotion.DefaultModelName)
	require.NoError(t, err)
	assert.Empty(t, model.Modifiers)
}
