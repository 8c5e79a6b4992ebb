// internal/profile/synthesizer.go
package profile

import (
	"context"
	"encoding/json"
	"fmt"

	"shopscout/internal/common/logger"
	"shopscout/internal/common/metrics"
	"shopscout/internal/llm"
	"shopscout/internal/models"
	"shopscout/internal/store"
)

const synthesizerSystemPrompt = "You are a shopping behavior analyst that returns valid JSON."

const synthesizerPromptTemplate = `Analyze this user's shopping history and produce a profile. Return a JSON object with the keys:
  - "personality_type": one of "Bargain Hunter", "Luxury Seeker", "Practical Buyer", "Trendsetter", "Tech Enthusiast", "Fashion Forward", "Minimalist", "Impulse Shopper", "Research Master", "Casual Browser"
  - "category_breakdown": object mapping category names to a fraction of their purchases (values sum to 1)
  - "price_preference": a short phrase like "budget-conscious" or "premium"
  - "favorite_brands": array of brand name strings
  - "recommendations": array of up to 5 specific product name strings

Shopping history:
%s

Return only the JSON.`

// fallbackProfile is the hardcoded minimal profile used when synthesis
// fails.
func fallbackProfile() *models.UserProfile {
	return &models.UserProfile{
		PersonalityType:   "Casual Browser",
		CategoryBreakdown: map[string]float64{},
		PricePreference:   "unknown",
		FavoriteBrands:    []string{},
		Recommendations:   []string{},
	}
}

// Synthesizer turns a user's shopping history into a profile.
type Synthesizer struct {
	llm    llm.Client
	logger logger.Logger
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(client llm.Client, log logger.Logger) *Synthesizer {
	return &Synthesizer{
		llm:    client,
		logger: log.With(map[string]interface{}{"component": "profile_synthesizer"}),
	}
}

// Synthesize produces a profile from history. It never fails; any error
// degrades to the minimal fallback profile.
func (s *Synthesizer) Synthesize(ctx context.Context, history *store.History) *models.UserProfile {
	historyJSON, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		s.logger.Warn("failed to serialize history, using fallback profile", map[string]interface{}{
			"error": err.Error(),
		})
		return fallbackProfile()
	}

	prompt := fmt.Sprintf(synthesizerPromptTemplate, string(historyJSON))
	raw, err := s.llm.Complete(ctx, synthesizerSystemPrompt, prompt, llm.Options{JSONMode: true})
	if err != nil {
		metrics.LLMCalls.WithLabelValues("profile", "error").Inc()
		s.logger.Warn("profile synthesis call failed, using fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return fallbackProfile()
	}

	var profile models.UserProfile
	if err := json.Unmarshal([]byte(llm.StripCodeFences(raw)), &profile); err != nil || profile.PersonalityType == "" {
		metrics.LLMCalls.WithLabelValues("profile", "error").Inc()
		s.logger.Warn("profile synthesis returned unusable output, using fallback", nil)
		return fallbackProfile()
	}
	metrics.LLMCalls.WithLabelValues("profile", "success").Inc()

	if profile.CategoryBreakdown == nil {
		profile.CategoryBreakdown = map[string]float64{}
	}
	if profile.FavoriteBrands == nil {
		profile.FavoriteBrands = []string{}
	}
	if profile.Recommendations == nil {
		profile.Recommendations = []string{}
	}
	return &profile
}
