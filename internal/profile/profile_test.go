// internal/profile/profile_test.go
package profile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"shopscout/internal/common/logger"
	"shopscout/internal/llm"
	"shopscout/internal/models"
	"shopscout/internal/store"
)

// ==========================
// Test Helpers
// ==========================

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt, userPrompt string, opts llm.Options) (string, error) {
	return f.response, f.err
}

type fakeGrounder struct {
	mu      sync.Mutex
	queries []models.StructuredQuery
	empty   map[string]bool
}

func (f *fakeGrounder) RunStructured(ctx context.Context, query *models.StructuredQuery, region string) []models.Recommendation {
	f.mu.Lock()
	f.queries = append(f.queries, *query)
	f.mu.Unlock()

	if f.empty[query.ItemName] {
		return []models.Recommendation{}
	}
	price := "$9.99"
	return []models.Recommendation{{ItemName: query.ItemName, Price: &price}}
}

type fakeStore struct {
	store.Store
	queries  []models.QueryRecord
	queryErr error
	replaced []models.Recommendation
}

func (f *fakeStore) GetRecentQueries(ctx context.Context, userID int64, limit int) ([]models.QueryRecord, error) {
	return f.queries, f.queryErr
}

func (f *fakeStore) ReplaceUserRecommendations(ctx context.Context, userID int64, recs []models.Recommendation) error {
	f.replaced = recs
	return nil
}

// ==========================
// SurpriseRecommender Tests
// ==========================

func TestSurpriseRecommender_Suggest(t *testing.T) {
	s := NewSurpriseRecommender(&fakeLLM{response: `{"item_name": "mechanical coffee grinder"}`}, logger.NewNoOpLogger())

	item := s.Suggest(context.Background(), []string{"I love pour-over coffee"})

	assert.Equal(t, "mechanical coffee grinder", item)
}

func TestSurpriseRecommender_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeLLM
	}{
		{name: "call error", fake: &fakeLLM{err: errors.New("model unreachable")}},
		{name: "invalid JSON", fake: &fakeLLM{response: "how about a nice mug"}},
		{name: "empty item name", fake: &fakeLLM{response: `{"item_name": ""}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSurpriseRecommender(tt.fake, logger.NewNoOpLogger())
			assert.Equal(t, "gift card", s.Suggest(context.Background(), []string{"hi"}))
		})
	}
}

// ==========================
// Synthesizer Tests
// ==========================

func TestSynthesizer_Synthesize(t *testing.T) {
	response := `{
		"personality_type": "Tech Enthusiast",
		"category_breakdown": {"electronics": 0.8, "clothing": 0.2},
		"price_preference": "mid-range",
		"favorite_brands": ["Sony", "Logitech"],
		"recommendations": ["mechanical keyboard", "usb microphone"]
	}`
	s := NewSynthesizer(&fakeLLM{response: response}, logger.NewNoOpLogger())

	profile := s.Synthesize(context.Background(), &store.History{UserID: 7})

	assert.Equal(t, "Tech Enthusiast", profile.PersonalityType)
	assert.Equal(t, 0.8, profile.CategoryBreakdown["electronics"])
	assert.Equal(t, []string{"Sony", "Logitech"}, profile.FavoriteBrands)
}

func TestSynthesizer_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeLLM
	}{
		{name: "call error", fake: &fakeLLM{err: errors.New("model unreachable")}},
		{name: "invalid JSON", fake: &fakeLLM{response: "their vibe is great"}},
		{name: "missing personality type", fake: &fakeLLM{response: `{"price_preference": "budget"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSynthesizer(tt.fake, logger.NewNoOpLogger())

			profile := s.Synthesize(context.Background(), &store.History{UserID: 7})

			assert.Equal(t, "Casual Browser", profile.PersonalityType)
			assert.NotNil(t, profile.CategoryBreakdown)
			assert.NotNil(t, profile.FavoriteBrands)
		})
	}
}

// ==========================
// Refresher Tests
// ==========================

func TestRefresher_Refresh(t *testing.T) {
	l := &fakeLLM{response: `{"recommendations": ["standing desk", "desk lamp"]}`}
	grounder := &fakeGrounder{}
	st := &fakeStore{}
	r := NewRefresher(l, grounder, st, logger.NewNoOpLogger())

	err := r.Refresh(context.Background(), 7)

	assert.NoError(t, err)
	assert.Len(t, st.replaced, 2)
	// Every grounding search requests exactly one result.
	for _, q := range grounder.queries {
		assert.Equal(t, 1, q.ResultCount)
	}
}

func TestRefresher_FallbackItemsOnModelFailure(t *testing.T) {
	l := &fakeLLM{err: errors.New("model unreachable")}
	grounder := &fakeGrounder{}
	st := &fakeStore{}
	r := NewRefresher(l, grounder, st, logger.NewNoOpLogger())

	err := r.Refresh(context.Background(), 7)

	assert.NoError(t, err)
	assert.Len(t, st.replaced, 5)

	names := make([]string, 0, len(st.replaced))
	for _, rec := range st.replaced {
		names = append(names, rec.ItemName)
	}
	assert.ElementsMatch(t, []string{
		"smart watch", "wireless earbuds", "portable charger", "laptop sleeve", "phone case",
	}, names)
}

func TestRefresher_CapsAtFive(t *testing.T) {
	l := &fakeLLM{response: `{"recommendations": ["a", "b", "c", "d", "e", "f", "g"]}`}
	grounder := &fakeGrounder{}
	st := &fakeStore{}
	r := NewRefresher(l, grounder, st, logger.NewNoOpLogger())

	err := r.Refresh(context.Background(), 7)

	assert.NoError(t, err)
	assert.Len(t, st.replaced, 5)
}

func TestRefresher_SkipsItemsWithoutResults(t *testing.T) {
	l := &fakeLLM{response: `{"recommendations": ["found", "missing"]}`}
	grounder := &fakeGrounder{empty: map[string]bool{"missing": true}}
	st := &fakeStore{}
	r := NewRefresher(l, grounder, st, logger.NewNoOpLogger())

	err := r.Refresh(context.Background(), 7)

	assert.NoError(t, err)
	assert.Len(t, st.replaced, 1)
	assert.Equal(t, "found", st.replaced[0].ItemName)
}

func TestRefresher_HistoryLoadFailure(t *testing.T) {
	r := NewRefresher(&fakeLLM{}, &fakeGrounder{}, &fakeStore{queryErr: errors.New("db down")}, logger.NewNoOpLogger())

	err := r.Refresh(context.Background(), 7)

	assert.Error(t, err)
}
