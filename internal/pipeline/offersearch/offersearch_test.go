// internal/pipeline/offersearch/offersearch_test.go
package offersearch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"shopscout/internal/common/logger"
	"shopscout/internal/search"
)

type fakeSearch struct {
	offers    []search.Offer
	err       error
	lastQuery string
}

func (f *fakeSearch) Search(ctx context.Context, query, region string) ([]search.Offer, error) {
	f.lastQuery = query
	return f.offers, f.err
}

func strPtr(s string) *string { return &s }

func TestProvider_FormatsOfferBlocks(t *testing.T) {
	f := &fakeSearch{offers: []search.Offer{
		{Title: "Sony WH-1000XM5", Link: "https://example.com/sony", Price: "$348.00", Source: "Best Buy"},
		{Title: "Bose QC45", Link: "https://example.com/bose", Price: "$279.00", Source: "Amazon"},
	}}
	provider := New(f, logger.NewNoOpLogger())

	block, err := provider.Search(context.Background(), "headphones", "us", nil)

	assert.NoError(t, err)
	expected := "Title: Sony WH-1000XM5\nLink: https://example.com/sony\nPrice: $348.00\nSource: Best Buy\n" +
		strings.Repeat("-", 40) +
		"\nTitle: Bose QC45\nLink: https://example.com/bose\nPrice: $279.00\nSource: Amazon\n" +
		strings.Repeat("-", 40)
	assert.Equal(t, expected, block)
}

func TestProvider_SentinelOnZeroResults(t *testing.T) {
	provider := New(&fakeSearch{}, logger.NewNoOpLogger())

	block, err := provider.Search(context.Background(), "obscure gadget", "us", nil)

	assert.NoError(t, err)
	assert.Equal(t, "No shopping results found.", block)
}

func TestProvider_PropagatesBackendErrors(t *testing.T) {
	provider := New(&fakeSearch{err: errors.New("backend down")}, logger.NewNoOpLogger())

	_, err := provider.Search(context.Background(), "headphones", "us", nil)

	assert.Error(t, err)
}

func TestBuildQuery_PriceQualifier(t *testing.T) {
	tests := []struct {
		name       string
		priceRange *string
		expected   string
	}{
		{
			name:       "no price range",
			priceRange: nil,
			expected:   "headphones",
		},
		{
			name:       "literal none ignored",
			priceRange: strPtr("None"),
			expected:   "headphones",
		},
		{
			name:       "empty string ignored",
			priceRange: strPtr(""),
			expected:   "headphones",
		},
		{
			name:       "range becomes natural language",
			priceRange: strPtr("30-50"),
			expected:   "headphones between 30 and 50 dollars",
		},
		{
			name:       "range with spaces is trimmed",
			priceRange: strPtr("30 - 50"),
			expected:   "headphones between 30 and 50 dollars",
		},
		{
			name:       "free-form range appended verbatim",
			priceRange: strPtr("under $100"),
			expected:   "headphones under $100",
		},
		{
			name:       "three-part range appended verbatim",
			priceRange: strPtr("10-20-30"),
			expected:   "headphones 10-20-30",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSearch{offers: []search.Offer{{Title: "x", Link: "l", Price: "p", Source: "s"}}}
			provider := New(f, logger.NewNoOpLogger())

			_, err := provider.Search(context.Background(), "headphones", "us", tt.priceRange)

			assert.NoError(t, err)
			assert.Equal(t, tt.expected, f.lastQuery)
		})
	}
}
