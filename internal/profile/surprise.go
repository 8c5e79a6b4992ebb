// internal/profile/surprise.go
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"shopscout/internal/common/logger"
	"shopscout/internal/common/metrics"
	"shopscout/internal/llm"
)

// surpriseFallback is returned when the model cannot be reached or its
// output is unusable.
const surpriseFallback = "gift card"

const surpriseSystemPrompt = "You are a helpful shopping assistant that returns valid JSON."

const surprisePromptTemplate = `Based on the recent conversation below, suggest one surprising but relevant product the participants might enjoy. Be specific enough to search for (e.g., "wireless noise-canceling headphones", not just "headphones").

Recent conversation:
%s

Return a JSON object with a single key "item_name" holding the product name. Return only the JSON.`

// SurpriseRecommender suggests one unexpected product from chat context.
type SurpriseRecommender struct {
	llm    llm.Client
	logger logger.Logger
}

// NewSurpriseRecommender creates a SurpriseRecommender.
func NewSurpriseRecommender(client llm.Client, log logger.Logger) *SurpriseRecommender {
	return &SurpriseRecommender{
		llm:    client,
		logger: log.With(map[string]interface{}{"component": "surprise"}),
	}
}

// Suggest returns one specific product name inspired by the conversation.
// It never fails; any error degrades to a generic placeholder.
func (s *SurpriseRecommender) Suggest(ctx context.Context, messages []string) string {
	prompt := fmt.Sprintf(surprisePromptTemplate, strings.Join(messages, "\n"))

	raw, err := s.llm.Complete(ctx, surpriseSystemPrompt, prompt, llm.Options{JSONMode: true, Temperature: 0.9})
	if err != nil {
		metrics.LLMCalls.WithLabelValues("surprise", "error").Inc()
		s.logger.Warn("surprise suggestion call failed, using fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return surpriseFallback
	}

	var parsed struct {
		ItemName string `json:"item_name"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFences(raw)), &parsed); err != nil || strings.TrimSpace(parsed.ItemName) == "" {
		metrics.LLMCalls.WithLabelValues("surprise", "error").Inc()
		s.logger.Warn("surprise suggestion returned unusable output, using fallback", nil)
		return surpriseFallback
	}
	metrics.LLMCalls.WithLabelValues("surprise", "success").Inc()

	return parsed.ItemName
}
