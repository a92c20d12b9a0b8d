package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/echomind/backend/internal/config"
)

// OpenAIChatModel adapts any OpenAI-compatible chat completions endpoint to the
// eino chat model interface so it can sit in the same chain as the Ark model.
type OpenAIChatModel struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// OpenAIOption configures an OpenAIChatModel.
type OpenAIOption func(*openai.ClientConfig)

// WithHTTPClient swaps the transport, mainly for tests.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(c *openai.ClientConfig) {
		c.HTTPClient = client
	}
}

// NewOpenAIChatModel creates the primary provider model.
func NewOpenAIChatModel(cfg config.OpenAIConfig, maxTokens int, temperature float32, opts ...OpenAIOption) *OpenAIChatModel {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	for _, opt := range opts {
		opt(&clientCfg)
	}

	return &OpenAIChatModel{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Generate sends one chat completion request.
func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Model:       &m.model,
		MaxTokens:   &m.maxTokens,
		Temperature: &m.temperature,
	}, opts...)

	req := openai.ChatCompletionRequest{
		Model:       *options.Model,
		Messages:    toOpenAIMessages(input),
		MaxTokens:   *options.MaxTokens,
		Temperature: *options.Temperature,
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices")
	}

	return schema.AssistantMessage(resp.Choices[0].Message.Content, nil), nil
}

// Stream emits the full completion as a single chunk.
func (m *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// BindTools is not supported; replies are plain text.
func (m *OpenAIChatModel) BindTools(_ []*schema.ToolInfo) error {
	return errors.New("openai chat model: tool calling not supported")
}

func toOpenAIMessages(input []*schema.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(input))
	for _, msg := range input {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case schema.System:
			role = openai.ChatMessageRoleSystem
		case schema.Assistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return out
}
