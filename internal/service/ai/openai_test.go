package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zhouzirui/echomind/backend/internal/config"
)

type capturedRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newCompletionServer(t *testing.T, status int, content string, captured *capturedRequest, auth *string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if auth != nil {
			*auth = r.Header.Get("Authorization")
		}
		if captured != nil {
			_ = json.NewDecoder(r.Body).Decode(captured)
		}

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestOpenAIChatModelGenerate(t *testing.T) {
	var (
		captured capturedRequest
		auth     string
	)
	server := newCompletionServer(t, http.StatusOK, "Hello there!", &captured, &auth)

	m := NewOpenAIChatModel(config.OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1", Model: "test-model"}, 150, 0.7,
		WithHTTPClient(server.Client()))

	msg, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("be nice"),
		schema.UserMessage("hi"),
		schema.AssistantMessage("hello", nil),
		schema.UserMessage("how are you?"),
	})
	require.NoError(t, err)
	assert.Equal(t, schema.Assistant, msg.Role)
	assert.Equal(t, "Hello there!", msg.Content)

	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "test-model", captured.Model)
	assert.Equal(t, 150, captured.MaxTokens)
	assert.InDelta(t, 0.7, captured.Temperature, 1e-6)
	require.Len(t, captured.Messages, 4)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "assistant", captured.Messages[2].Role)
	assert.Equal(t, "how are you?", captured.Messages[3].Content)
}

func TestOpenAIChatModelErrorStatus(t *testing.T) {
	server := newCompletionServer(t, http.StatusBadGateway, "", nil, nil)
	m := NewOpenAIChatModel(config.OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1", Model: "m"}, 150, 0.7)

	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	assert.Error(t, err)
}

func TestOpenAIProviderEndToEnd(t *testing.T) {
	server := newCompletionServer(t, http.StatusOK, "It is sunny.", nil, nil)
	m := NewOpenAIChatModel(config.OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1", Model: "m"}, 150, 0.7)

	p, err := NewProvider(context.Background(), "openai", m)
	require.NoError(t, err)

	answer, err := NewService([]*Provider{p}, zap.NewNop()).Answer(context.Background(), "what is the weather?", "")
	require.NoError(t, err)
	assert.Equal(t, "It is sunny.", answer)

	failing := newCompletionServer(t, http.StatusInternalServerError, "", nil, nil)
	m = NewOpenAIChatModel(config.OpenAIConfig{APIKey: "sk-test", BaseURL: failing.URL + "/v1", Model: "m"}, 150, 0.7)
	p, err = NewProvider(context.Background(), "openai", m)
	require.NoError(t, err)

	_, err = NewService([]*Provider{p}, zap.NewNop()).Answer(context.Background(), "what is the weather?", "")
	assert.ErrorIs(t, err, ErrServiceUnavailable)
}
