// internal/pipeline/recommender/recommender.go
package recommender

import (
	"context"
	"fmt"
	"strings"

	"shopscout/internal/common/logger"
	"shopscout/internal/common/metrics"
	"shopscout/internal/llm"
	"shopscout/internal/models"
)

const systemPrompt = "You are an expert shopping assistant that returns valid JSON."

const promptTemplate = `You are an expert shopping assistant. Given the following customer request, provide exactly %d item recommendations as a JSON object with a key "recommendations" holding an array. Each recommendation should be a JSON object with a single field 'item_name' representing the item name. Return only the JSON without any additional commentary.

Customer request: %s`

// Recommender asks the language model for specific, purchasable candidate
// items matching a structured query.
type Recommender struct {
	llm    llm.Client
	logger logger.Logger
}

// New creates a Recommender.
func New(client llm.Client, log logger.Logger) *Recommender {
	return &Recommender{
		llm:    client,
		logger: log.With(map[string]interface{}{"component": "recommender"}),
	}
}

// Recommend returns exactly query.ResultCount candidate items. A model that
// under-delivers is padded with synthetic placeholders and one that
// over-delivers is truncated. An unrecoverable parse failure yields an empty
// slice, which callers treat as "no recommendations found".
func (r *Recommender) Recommend(ctx context.Context, query *models.StructuredQuery) []models.CandidateItem {
	count := query.ResultCount
	if count < 1 {
		count = 3
	}

	prompt := fmt.Sprintf(promptTemplate, count, describeRequest(query, count))
	raw, err := r.llm.Complete(ctx, systemPrompt, prompt, llm.Options{
		JSONMode:    true,
		Temperature: 0.3,
		MaxTokens:   300,
	})
	if err != nil {
		metrics.LLMCalls.WithLabelValues("recommend", "error").Inc()
		r.logger.Warn("recommendation call failed", map[string]interface{}{
			"item_name": query.ItemName,
			"error":     err.Error(),
		})
		return nil
	}

	elements, err := llm.CoerceToList(raw, "recommendations")
	if err != nil {
		metrics.LLMCalls.WithLabelValues("recommend", "error").Inc()
		r.logger.Warn("recommendation response could not be parsed", map[string]interface{}{
			"item_name": query.ItemName,
			"error":     err.Error(),
		})
		return nil
	}
	metrics.LLMCalls.WithLabelValues("recommend", "success").Inc()

	items := make([]models.CandidateItem, 0, count)
	for _, el := range elements {
		if len(items) == count {
			break
		}
		name, ok := el["item_name"].(string)
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		items = append(items, models.CandidateItem{Name: name})
	}

	// Pad to the requested count when the model under-delivers.
	for i := len(items); i < count; i++ {
		items = append(items, models.CandidateItem{
			Name: fmt.Sprintf("Alternative %d for %s", i+1, query.ItemName),
		})
	}

	return items
}

func describeRequest(query *models.StructuredQuery, count int) string {
	category := "None"
	if query.Category != nil {
		category = *query.Category
	}
	priceRange := "None"
	if query.PriceRange != nil {
		priceRange = *query.PriceRange
	}
	return fmt.Sprintf(
		"Item_Name: %s, Type: %s, Price Range: %s, Number of Results: %d",
		query.ItemName, category, priceRange, count,
	)
}
