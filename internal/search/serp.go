// internal/search/serp.go
package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	g "github.com/serpapi/google-search-results-golang"

	apperrors "shopscout/internal/common/errors"
	"shopscout/internal/common/logger"
	"shopscout/internal/common/metrics"
)

// Offer is a single priced purchase option from the shopping backend.
// Absent fields are represented as "N/A".
type Offer struct {
	Title  string `json:"title"`
	Link   string `json:"link"`
	Price  string `json:"price"`
	Source string `json:"source"`
}

// Client is the narrow interface the pipeline uses to reach the shopping
// search backend.
type Client interface {
	Search(ctx context.Context, query, region string) ([]Offer, error)
}

// SerpClient implements Client against the SerpAPI Google Shopping engine.
type SerpClient struct {
	rotator *KeyRotator
	logger  logger.Logger
}

// NewSerpClient creates a SerpAPI-backed search client.
func NewSerpClient(rotator *KeyRotator, log logger.Logger) *SerpClient {
	return &SerpClient{
		rotator: rotator,
		logger:  log.With(map[string]interface{}{"component": "serp_client"}),
	}
}

// Search runs one shopping search. It rotates across API keys on quota
// errors and retries once per key on transient network errors. A backend
// response with zero offers returns an empty slice, not an error.
func (c *SerpClient) Search(ctx context.Context, query, region string) ([]Offer, error) {
	maxRetries := c.rotator.GetTotalKeys() + 1
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		apiKey, keyIndex, err := c.rotator.GetNextKey()
		if err != nil {
			metrics.OfferSearches.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to get API key: %w", err)
		}

		parameter := map[string]string{
			"engine": "google_shopping",
			"q":      query,
			"gl":     region,
			"hl":     "en",
		}

		search := g.NewGoogleSearch(parameter, apiKey)

		// The client library takes no context, so the call runs in a
		// goroutine raced against ctx. On cancellation the in-flight call
		// is abandoned; its goroutine drains into the buffered channel.
		type serpResult struct {
			data map[string]interface{}
			err  error
		}
		ch := make(chan serpResult, 1)
		startTime := time.Now()
		go func() {
			data, err := search.GetJSON()
			ch <- serpResult{data: data, err: err}
		}()

		var data map[string]interface{}
		select {
		case <-ctx.Done():
			metrics.OfferSearches.WithLabelValues("error").Inc()
			return nil, ctx.Err()
		case res := <-ch:
			data, err = res.data, res.err
		}
		elapsed := time.Since(startTime)

		if err != nil {
			lastErr = err
			c.logger.Error("shopping search call failed", map[string]interface{}{
				"query":            query,
				"attempt":          attempt + 1,
				"key_index":        keyIndex,
				"duration_seconds": elapsed.Seconds(),
				"error":            err.Error(),
			})

			if isQuotaError(err) {
				if markErr := c.rotator.MarkKeyAsExhausted(keyIndex); markErr != nil {
					c.logger.Warn("failed to mark key as exhausted", map[string]interface{}{
						"key_index": keyIndex,
						"error":     markErr.Error(),
					})
				}
				if attempt < maxRetries {
					continue
				}
			} else if isNetworkError(err) && attempt < maxRetries {
				continue
			}

			metrics.OfferSearches.WithLabelValues("error").Inc()
			return nil, apperrors.NewSearchFailedError(query, err)
		}

		offers := extractOffers(data)
		c.logger.Info("shopping search completed", map[string]interface{}{
			"query":            query,
			"region":           region,
			"offer_count":      len(offers),
			"duration_seconds": elapsed.Seconds(),
		})

		if len(offers) == 0 {
			metrics.OfferSearches.WithLabelValues("empty").Inc()
		} else {
			metrics.OfferSearches.WithLabelValues("success").Inc()
		}
		return offers, nil
	}

	metrics.OfferSearches.WithLabelValues("error").Inc()
	if lastErr != nil {
		return nil, apperrors.NewSearchFailedError(query, lastErr)
	}
	return nil, fmt.Errorf("shopping search failed after %d attempts", maxRetries+1)
}

// extractOffers pulls the shopping_results array out of the loosely typed
// backend response. Missing fields become "N/A"; a missing link falls back
// to product_link.
func extractOffers(data map[string]interface{}) []Offer {
	results, ok := data["shopping_results"].([]interface{})
	if !ok {
		return nil
	}

	offers := make([]Offer, 0, len(results))
	for _, item := range results {
		itemMap, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		link := stringField(itemMap, "link")
		if link == "N/A" {
			link = stringField(itemMap, "product_link")
		}

		offers = append(offers, Offer{
			Title:  stringField(itemMap, "title"),
			Link:   link,
			Price:  stringField(itemMap, "price"),
			Source: stringField(itemMap, "source"),
		})
	}
	return offers
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return "N/A"
}

func isQuotaError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "run out of searches") ||
		strings.Contains(msg, "quota exceeded") ||
		strings.Contains(msg, "limit exceeded") ||
		strings.Contains(msg, "rate limit")
}

func isNetworkError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "500")
}
