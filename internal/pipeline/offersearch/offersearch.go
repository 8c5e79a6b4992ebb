// internal/pipeline/offersearch/offersearch.go
package offersearch

import (
	"context"
	"fmt"
	"strings"

	"shopscout/internal/common/logger"
	"shopscout/internal/search"
)

// NoResultsSentinel is returned verbatim when the backend yields no offers.
// Downstream offer selection relies on this exact string.
const NoResultsSentinel = "No shopping results found."

// Provider turns per-item shopping searches into the text blocks the offer
// selector consumes. The backend's result schema is not stable enough to
// carry structured data past this point.
type Provider struct {
	client search.Client
	logger logger.Logger
}

// New creates a Provider.
func New(client search.Client, log logger.Logger) *Provider {
	return &Provider{
		client: client,
		logger: log.With(map[string]interface{}{"component": "offer_search"}),
	}
}

// Search queries the shopping backend for one item and formats the offers
// as text blocks. Zero results returns the sentinel, not an error; only
// backend failures propagate.
func (p *Provider) Search(ctx context.Context, itemName, region string, priceRange *string) (string, error) {
	query := buildQuery(itemName, priceRange)

	offers, err := p.client.Search(ctx, query, region)
	if err != nil {
		return "", err
	}

	if len(offers) == 0 {
		return NoResultsSentinel, nil
	}

	blocks := make([]string, 0, len(offers))
	for _, offer := range offers {
		blocks = append(blocks, fmt.Sprintf(
			"Title: %s\nLink: %s\nPrice: %s\nSource: %s\n%s",
			offer.Title, offer.Link, offer.Price, offer.Source,
			strings.Repeat("-", 40),
		))
	}
	return strings.Join(blocks, "\n"), nil
}

// buildQuery appends a natural-language price qualifier when a usable price
// range is present. A range "A-B" reads "between A and B dollars"; anything
// else is appended verbatim.
func buildQuery(itemName string, priceRange *string) string {
	if priceRange == nil {
		return itemName
	}
	pr := *priceRange
	if pr == "" || strings.EqualFold(pr, "none") {
		return itemName
	}

	parts := strings.Split(pr, "-")
	if len(parts) == 2 {
		return fmt.Sprintf("%s between %s and %s dollars",
			itemName, strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
	}
	return fmt.Sprintf("%s %s", itemName, pr)
}
