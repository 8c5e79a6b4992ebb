// internal/pipeline/recommender/recommender_test.go
package recommender

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"shopscout/internal/common/logger"
	"shopscout/internal/llm"
	"shopscout/internal/models"
)

type fakeLLM struct {
	response string
	err      error
	lastUser string
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt, userPrompt string, opts llm.Options) (string, error) {
	f.lastUser = userPrompt
	return f.response, f.err
}

func newRecommender(f *fakeLLM) *Recommender {
	return New(f, logger.NewNoOpLogger())
}

func query(count int) *models.StructuredQuery {
	return &models.StructuredQuery{ItemName: "gaming mouse", ResultCount: count}
}

func TestRecommender_ExactCount(t *testing.T) {
	f := &fakeLLM{response: `{"recommendations": [{"item_name": "Logitech G502"}, {"item_name": "Razer Viper"}, {"item_name": "SteelSeries Rival"}]}`}
	rec := newRecommender(f)

	items := rec.Recommend(context.Background(), query(3))

	assert.Len(t, items, 3)
	assert.Equal(t, "Logitech G502", items[0].Name)
	assert.Equal(t, "Razer Viper", items[1].Name)
	assert.Equal(t, "SteelSeries Rival", items[2].Name)
}

func TestRecommender_PadsWhenModelUnderDelivers(t *testing.T) {
	f := &fakeLLM{response: `{"recommendations": [{"item_name": "Logitech G502"}]}`}
	rec := newRecommender(f)

	items := rec.Recommend(context.Background(), query(3))

	assert.Len(t, items, 3)
	assert.Equal(t, "Logitech G502", items[0].Name)
	assert.Equal(t, "Alternative 2 for gaming mouse", items[1].Name)
	assert.Equal(t, "Alternative 3 for gaming mouse", items[2].Name)
}

func TestRecommender_ScalarResponseYieldsNothing(t *testing.T) {
	// A bare JSON string is a parse failure, not an empty-but-valid list;
	// it must not be padded into a full batch of placeholders.
	f := &fakeLLM{response: `"how about a nice gaming mouse"`}
	rec := newRecommender(f)

	items := rec.Recommend(context.Background(), query(3))

	assert.Empty(t, items)
}

func TestRecommender_TruncatesWhenModelOverDelivers(t *testing.T) {
	f := &fakeLLM{response: `{"recommendations": [{"item_name": "a"}, {"item_name": "b"}, {"item_name": "c"}, {"item_name": "d"}, {"item_name": "e"}]}`}
	rec := newRecommender(f)

	items := rec.Recommend(context.Background(), query(2))

	assert.Len(t, items, 2)
	assert.Equal(t, "a", items[0].Name)
	assert.Equal(t, "b", items[1].Name)
}

func TestRecommender_CountDeterminism(t *testing.T) {
	// The count contract holds for every requested size regardless of how
	// many items the model actually returns.
	for count := 1; count <= 10; count++ {
		t.Run(fmt.Sprintf("count_%d", count), func(t *testing.T) {
			f := &fakeLLM{response: `{"recommendations": [{"item_name": "only one"}]}`}
			rec := newRecommender(f)

			items := rec.Recommend(context.Background(), query(count))
			assert.Len(t, items, count)
		})
	}
}

func TestRecommender_ToleratesAlternateShapes(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantLen  int
		first    string
	}{
		{
			name:     "bare array",
			response: `[{"item_name": "a"}, {"item_name": "b"}]`,
			wantLen:  2,
			first:    "a",
		},
		{
			name:     "single object",
			response: `{"item_name": "a"}`,
			wantLen:  2,
			first:    "a",
		},
		{
			name:     "fenced payload",
			response: "```json\n{\"recommendations\": [{\"item_name\": \"a\"}, {\"item_name\": \"b\"}]}\n```",
			wantLen:  2,
			first:    "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecommender(&fakeLLM{response: tt.response})

			items := rec.Recommend(context.Background(), query(2))

			assert.Len(t, items, tt.wantLen)
			assert.Equal(t, tt.first, items[0].Name)
		})
	}
}

func TestRecommender_EmptyOnFailure(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeLLM
	}{
		{name: "call error", fake: &fakeLLM{err: errors.New("model unreachable")}},
		{name: "unparseable response", fake: &fakeLLM{response: "here are some great mice!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecommender(tt.fake)
			items := rec.Recommend(context.Background(), query(3))
			assert.Empty(t, items)
		})
	}
}

func TestRecommender_PromptCarriesRequestFields(t *testing.T) {
	category := "electronics"
	priceRange := "30-50"
	f := &fakeLLM{response: `{"recommendations": []}`}
	rec := newRecommender(f)

	rec.Recommend(context.Background(), &models.StructuredQuery{
		ItemName:    "gaming mouse",
		Category:    &category,
		PriceRange:  &priceRange,
		ResultCount: 2,
	})

	assert.Contains(t, f.lastUser, "Item_Name: gaming mouse")
	assert.Contains(t, f.lastUser, "Type: electronics")
	assert.Contains(t, f.lastUser, "Price Range: 30-50")
	assert.Contains(t, f.lastUser, "Number of Results: 2")
}
