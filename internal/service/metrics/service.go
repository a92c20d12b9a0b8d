// Package metrics summarises analysis quality across a caller's conversations.
package metrics

import (
	"context"
	"fmt"

	"github.com/zhouzirui/echomind/backend/internal/auth"
	"github.com/zhouzirui/echomind/backend/internal/store"
)

// PlaceholderResponseTime is reported as AvgResponseTime. It is a fixed
// figure, not a measurement.
const PlaceholderResponseTime = 1200

// Summary is the performance report for one caller.
type Summary struct {
	TotalConversations   int     `json:"totalConversations"`
	TotalMessages        int     `json:"totalMessages"`
	AvgSentimentAccuracy float64 `json:"avgSentimentAccuracy"`
	AvgIntentAccuracy    float64 `json:"avgIntentAccuracy"`
	AvgResponseTime      int     `json:"avgResponseTime"`
}

// Service scans stored conversations.
type Service struct {
	store store.Store
	auth  auth.Provider
}

// NewService creates a metrics aggregator over st.
func NewService(st store.Store, authProvider auth.Provider) *Service {
	return &Service{store: st, auth: authProvider}
}

// GetPerformanceMetrics averages the confidences of every user message that
// carries both readings. Averages are percentages and zero when nothing qualifies.
func (s *Service) GetPerformanceMetrics(ctx context.Context) (Summary, error) {
	userID, err := auth.Require(ctx, s.auth)
	if err != nil {
		return Summary{}, err
	}

	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("list conversations: %w", err)
	}

	var (
		count                   int
		sentimentSum, intentSum float64
	)
	for _, conv := range convs {
		for _, msg := range conv.Messages {
			if !msg.IsUser() || msg.Sentiment == nil || msg.Intent == nil {
				continue
			}
			sentimentSum += msg.Sentiment.Confidence
			intentSum += msg.Intent.Confidence
			count++
		}
	}

	summary := Summary{
		TotalConversations: len(convs),
		TotalMessages:      count,
		AvgResponseTime:    PlaceholderResponseTime,
	}
	if count > 0 {
		summary.AvgSentimentAccuracy = sentimentSum / float64(count) * 100
		summary.AvgIntentAccuracy = intentSum / float64(count) * 100
	}
	return summary, nil
}
