// internal/profile/refresher.go
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"shopscout/internal/common/logger"
	"shopscout/internal/common/metrics"
	"shopscout/internal/llm"
	"shopscout/internal/models"
	"shopscout/internal/store"
)

// Grounder turns a structured query into offer-backed recommendations. The
// recommendation pipeline satisfies this.
type Grounder interface {
	RunStructured(ctx context.Context, query *models.StructuredQuery, region string) []models.Recommendation
}

const maxPersonalized = 5

// fallbackItems seeds personalization when the model produces nothing
// usable.
var fallbackItems = []string{
	"smart watch", "wireless earbuds", "portable charger", "laptop sleeve", "phone case",
}

const refreshSystemPrompt = "You are a helpful shopping assistant that returns valid JSON."

const refreshPromptTemplate = `Based on this user's recent search history, suggest 5 products they might be interested in.

Recent Searches:
%s

Generate 5 specific product recommendations (not categories) that this user might like. Each recommendation should be specific enough to search for (e.g., "wireless noise-canceling headphones" not just "headphones"). Return a JSON object with a key "recommendations" and a list of strings. It is paramount that you get this right.`

// Refresher regenerates a user's personalized recommendations in the
// background from their query history.
type Refresher struct {
	llm      llm.Client
	pipeline Grounder
	store    store.Store
	logger   logger.Logger
}

// NewRefresher creates a Refresher.
func NewRefresher(client llm.Client, p Grounder, st store.Store, log logger.Logger) *Refresher {
	return &Refresher{
		llm:      client,
		pipeline: p,
		store:    st,
		logger:   log.With(map[string]interface{}{"component": "profile_refresher"}),
	}
}

// Refresh generates up to five personalized items, grounds each in a real
// offer with a one-result pipeline run, and replaces the user's stored
// recommendations with the results.
func (r *Refresher) Refresh(ctx context.Context, userID int64) error {
	queries, err := r.store.GetRecentQueries(ctx, userID, 20)
	if err != nil {
		return fmt.Errorf("failed to load query history: %w", err)
	}

	items := r.suggestItems(ctx, queries)

	// Each item gets one grounded recommendation; searches run in
	// parallel and results keep item order.
	results := make([][]models.Recommendation, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item string) {
			defer wg.Done()
			query := &models.StructuredQuery{ItemName: item, ResultCount: 1}
			results[i] = r.pipeline.RunStructured(ctx, query, "us")
		}(i, item)
	}
	wg.Wait()

	recs := make([]models.Recommendation, 0, len(items))
	for _, batch := range results {
		if len(batch) > 0 {
			recs = append(recs, batch[0])
		}
	}

	if err := r.store.ReplaceUserRecommendations(ctx, userID, recs); err != nil {
		return fmt.Errorf("failed to store recommendations: %w", err)
	}

	r.logger.Info("personalized recommendations refreshed", map[string]interface{}{
		"user_id":    userID,
		"item_count": len(recs),
	})
	return nil
}

// suggestItems asks the model for personalized item names, degrading to the
// fallback list on any failure and always capping at five.
func (r *Refresher) suggestItems(ctx context.Context, queries []models.QueryRecord) []string {
	historyJSON, err := json.MarshalIndent(queries, "", "  ")
	if err != nil {
		return fallbackItems
	}

	prompt := fmt.Sprintf(refreshPromptTemplate, string(historyJSON))
	raw, err := r.llm.Complete(ctx, refreshSystemPrompt, prompt, llm.Options{JSONMode: true})
	if err != nil {
		metrics.LLMCalls.WithLabelValues("personalize", "error").Inc()
		r.logger.Warn("personalization call failed, using fallback items", map[string]interface{}{
			"error": err.Error(),
		})
		return fallbackItems
	}

	var parsed struct {
		Recommendations []string `json:"recommendations"`
	}
	var items []string
	if err := json.Unmarshal([]byte(llm.StripCodeFences(raw)), &parsed); err == nil {
		items = parsed.Recommendations
	} else {
		// The model may have returned a bare array of strings.
		var bare []string
		if err := json.Unmarshal([]byte(llm.StripCodeFences(raw)), &bare); err == nil {
			items = bare
		}
	}

	if len(items) == 0 {
		metrics.LLMCalls.WithLabelValues("personalize", "error").Inc()
		return fallbackItems
	}
	metrics.LLMCalls.WithLabelValues("personalize", "success").Inc()

	if len(items) > maxPersonalized {
		items = items[:maxPersonalized]
	}
	return items
}
