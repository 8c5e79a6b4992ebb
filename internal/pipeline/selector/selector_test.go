// internal/pipeline/selector/selector_test.go
package selector

import (
	"context"
	"errors"
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

func newSelector(t *testing.T, f *fakeLLM) *Selector {
	sel, err := New(f, logger.NewNoOpLogger())
	assert.NoError(t, err)
	return sel
}

func candidates(names ...string) []models.CandidateItem {
	out := make([]models.CandidateItem, 0, len(names))
	for _, n := range names {
		out = append(out, models.CandidateItem{Name: n})
	}
	return out
}

func TestSelector_Select_Success(t *testing.T) {
	f := &fakeLLM{response: `{"results": [
		{"item_name": "Logitech G502", "price": "$49.99", "link": "https://example.com/g502", "source": "Amazon"},
		{"item_name": "Razer Viper", "price": "$79.99", "link": "https://example.com/viper", "source": "Best Buy"}
	]}`}
	sel := newSelector(t, f)

	recs := sel.Select(context.Background(), candidates("Logitech G502", "Razer Viper"), map[string]string{
		"Logitech G502": "Title: Logitech G502\n...",
		"Razer Viper":   "Title: Razer Viper\n...",
	})

	assert.Len(t, recs, 2)
	assert.Equal(t, "Logitech G502", recs[0].ItemName)
	assert.Equal(t, "$49.99", *recs[0].Price)
	assert.Equal(t, "https://example.com/g502", *recs[0].Link)
	assert.Equal(t, "Amazon", *recs[0].Source)
}

func TestSelector_Select_NoItemDropped(t *testing.T) {
	// The model only answers for one of three items; the other two must
	// still appear, in input order, with null offer fields.
	f := &fakeLLM{response: `{"results": [{"item_name": "b", "price": "$5", "link": "l", "source": "s"}]}`}
	sel := newSelector(t, f)

	recs := sel.Select(context.Background(), candidates("a", "b", "c"), map[string]string{})

	assert.Len(t, recs, 3)
	assert.Equal(t, "a", recs[0].ItemName)
	assert.Nil(t, recs[0].Price)
	assert.Equal(t, "b", recs[1].ItemName)
	assert.Equal(t, "$5", *recs[1].Price)
	assert.Equal(t, "c", recs[2].ItemName)
	assert.Nil(t, recs[2].Link)
}

func TestSelector_Select_NullOfferFields(t *testing.T) {
	f := &fakeLLM{response: `{"results": [{"item_name": "a", "price": null, "link": null, "source": null}]}`}
	sel := newSelector(t, f)

	recs := sel.Select(context.Background(), candidates("a"), map[string]string{
		"a": "No shopping results found.",
	})

	assert.Len(t, recs, 1)
	assert.Equal(t, "a", recs[0].ItemName)
	assert.Nil(t, recs[0].Price)
	assert.Nil(t, recs[0].Link)
	assert.Nil(t, recs[0].Source)
}

func TestSelector_Select_NumericPriceNormalized(t *testing.T) {
	f := &fakeLLM{response: `{"results": [{"item_name": "a", "price": 49.99, "link": "l", "source": "s"}]}`}
	sel := newSelector(t, f)

	recs := sel.Select(context.Background(), candidates("a"), map[string]string{})

	assert.Len(t, recs, 1)
	assert.Equal(t, "49.99", *recs[0].Price)
}

func TestSelector_Select_BareArrayAccepted(t *testing.T) {
	f := &fakeLLM{response: `[{"item_name": "a", "price": "$1", "link": "l", "source": "s"}]`}
	sel := newSelector(t, f)

	recs := sel.Select(context.Background(), candidates("a"), map[string]string{})

	assert.Len(t, recs, 1)
	assert.Equal(t, "$1", *recs[0].Price)
}

func TestSelector_Select_BadElementSkipped(t *testing.T) {
	// First element lacks item_name, second has a wrong type; the valid
	// third element must survive and the bad ones fall back to nulls.
	f := &fakeLLM{response: `{"results": [
		{"price": "$1"},
		{"item_name": 42, "price": "$2"},
		{"item_name": "c", "price": "$3", "link": "l", "source": "s"}
	]}`}
	sel := newSelector(t, f)

	recs := sel.Select(context.Background(), candidates("a", "b", "c"), map[string]string{})

	assert.Len(t, recs, 3)
	assert.Nil(t, recs[0].Price)
	assert.Nil(t, recs[1].Price)
	assert.Equal(t, "$3", *recs[2].Price)
}

func TestSelector_Select_EmptyOnTotalParseFailure(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeLLM
	}{
		{name: "call error", fake: &fakeLLM{err: errors.New("model unreachable")}},
		{name: "unparseable response", fake: &fakeLLM{response: "sure, here are the results"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := newSelector(t, tt.fake)
			recs := sel.Select(context.Background(), candidates("a"), map[string]string{})
			assert.Empty(t, recs)
		})
	}
}

func TestSelector_Select_PromptListsAllItems(t *testing.T) {
	f := &fakeLLM{response: `{"results": []}`}
	sel := newSelector(t, f)

	sel.Select(context.Background(), candidates("a", "b"), map[string]string{
		"a": "Title: thing\n...",
	})

	assert.Contains(t, f.lastUser, "Item: a\nPurchase Options:\nTitle: thing")
	assert.Contains(t, f.lastUser, "Item: b\nPurchase Options:\nNo options found.")
}
