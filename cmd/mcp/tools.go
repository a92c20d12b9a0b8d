package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/zhouzirui/echomind/backend/internal/auth"
	"github.com/zhouzirui/echomind/backend/internal/service/dialogue"
	"github.com/zhouzirui/echomind/backend/internal/service/metrics"
)

// --- Input types ---

type processVoiceInput struct {
	UserID    string `json:"user_id"    jsonschema:"Caller identity; conversations are scoped to it"`
	SessionID string `json:"session_id" jsonschema:"Conversation session ID"`
	Text      string `json:"text"       jsonschema:"Transcribed utterance"`
}

type historyInput struct {
	UserID    string `json:"user_id"    jsonschema:"Caller identity"`
	SessionID string `json:"session_id" jsonschema:"Conversation session ID"`
}

type userInput struct {
	UserID string `json:"user_id" jsonschema:"Caller identity"`
}

type toolset struct {
	dialogue *dialogue.Service
	metrics  *metrics.Service
	logger   *zap.Logger
}

// --- Handlers ---

func (t *toolset) processVoiceInput(ctx context.Context, _ *mcp.CallToolRequest, in processVoiceInput) (*mcp.CallToolResult, any, error) {
	result, err := t.dialogue.ProcessVoiceInput(auth.WithUserID(ctx, in.UserID), in.Text, in.SessionID)
	if err != nil {
		return t.errorResult("process_voice_input", err), nil, nil
	}
	return textResult(jsonString(result)), nil, nil
}

func (t *toolset) getConversationHistory(ctx context.Context, _ *mcp.CallToolRequest, in historyInput) (*mcp.CallToolResult, any, error) {
	conv, err := t.dialogue.GetConversationHistory(auth.WithUserID(ctx, in.UserID), in.SessionID)
	if err != nil {
		return t.errorResult("get_conversation_history", err), nil, nil
	}
	return textResult(jsonString(conv)), nil, nil
}

func (t *toolset) getPerformanceMetrics(ctx context.Context, _ *mcp.CallToolRequest, in userInput) (*mcp.CallToolResult, any, error) {
	summary, err := t.metrics.GetPerformanceMetrics(auth.WithUserID(ctx, in.UserID))
	if err != nil {
		return t.errorResult("get_performance_metrics", err), nil, nil
	}
	return textResult(jsonString(summary)), nil, nil
}

func (t *toolset) initializeDefaults(ctx context.Context, _ *mcp.CallToolRequest, _ userInput) (*mcp.CallToolResult, any, error) {
	seeded, err := t.dialogue.InitializeDefaults(ctx)
	if err != nil {
		return t.errorResult("initialize_defaults", err), nil, nil
	}
	return textResult(jsonString(map[string]any{"seeded": seeded})), nil, nil
}

// --- Helpers ---

func (t *toolset) errorResult(tool string, err error) *mcp.CallToolResult {
	t.logger.Warn("tool call failed", zap.String("tool", tool), zap.Error(err))
	res := textResult(fmt.Sprintf("error: %v", err))
	res.IsError = true
	return res
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func jsonString(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(b)
}
