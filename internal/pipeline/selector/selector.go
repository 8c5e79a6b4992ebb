// internal/pipeline/selector/selector.go
package selector

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"shopscout/internal/common/logger"
	"shopscout/internal/common/metrics"
	"shopscout/internal/llm"
	"shopscout/internal/models"
)

const systemPrompt = "You are an expert shopping assistant that returns valid JSON."

const promptHeader = `You are an expert shopping assistant. For each of the following items, select the best purchase option from the provided options based solely on the given data. Return a JSON object with the key 'results', very important that this is always the case, holding an array where each element is a JSON object with the keys: 'item_name', 'price', 'link', and 'source'. If there are no options, still return each item as an element in the array, just have the item_name be the item name, and the price, link, and source be null. Return only the JSON without any additional commentary.

`

// elementSchema validates one selected offer. Price may come back as a
// number; normalization to string happens after validation.
const elementSchema = `{
	"type": "object",
	"required": ["item_name"],
	"properties": {
		"item_name": {"type": "string"},
		"price":     {"type": ["string", "number", "null"]},
		"link":      {"type": ["string", "null"]},
		"source":    {"type": ["string", "null"]}
	}
}`

// Selector asks the language model to pick the single best offer per item
// and normalizes the answer into Recommendations.
type Selector struct {
	llm    llm.Client
	schema *gojsonschema.Schema
	logger logger.Logger
}

// New creates a Selector.
func New(client llm.Client, log logger.Logger) (*Selector, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(elementSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile selection schema: %w", err)
	}
	return &Selector{
		llm:    client,
		schema: schema,
		logger: log.With(map[string]interface{}{"component": "selector"}),
	}, nil
}

// Select returns one Recommendation per input item, in input order. Items
// the model dropped or mangled get null price/link/source. A response that
// cannot be parsed at all yields an empty slice.
func (s *Selector) Select(ctx context.Context, items []models.CandidateItem, offers map[string]string) []models.Recommendation {
	if len(items) == 0 {
		return []models.Recommendation{}
	}

	raw, err := s.llm.Complete(ctx, systemPrompt, s.buildPrompt(items, offers), llm.Options{
		JSONMode:    true,
		Temperature: 0.3,
		MaxTokens:   400,
	})
	if err != nil {
		metrics.LLMCalls.WithLabelValues("select", "error").Inc()
		s.logger.Warn("offer selection call failed", map[string]interface{}{
			"item_count": len(items),
			"error":      err.Error(),
		})
		return []models.Recommendation{}
	}

	elements, err := llm.CoerceToList(raw, "results")
	if err != nil {
		metrics.LLMCalls.WithLabelValues("select", "error").Inc()
		s.logger.Warn("offer selection response could not be parsed", map[string]interface{}{
			"error": err.Error(),
		})
		return []models.Recommendation{}
	}
	metrics.LLMCalls.WithLabelValues("select", "success").Inc()

	byName := make(map[string]models.Recommendation, len(elements))
	for idx, el := range elements {
		rec, ok := s.validateElement(idx, el)
		if !ok {
			continue
		}
		if _, exists := byName[rec.ItemName]; !exists {
			byName[rec.ItemName] = rec
		}
	}

	// Every input item appears exactly once, in input order, even if the
	// model dropped it.
	out := make([]models.Recommendation, 0, len(items))
	for _, item := range items {
		if rec, ok := byName[item.Name]; ok {
			out = append(out, rec)
			continue
		}
		out = append(out, models.Recommendation{ItemName: item.Name})
	}
	return out
}

func (s *Selector) buildPrompt(items []models.CandidateItem, offers map[string]string) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	for _, item := range items {
		options, ok := offers[item.Name]
		if !ok || options == "" {
			options = "No options found."
		}
		fmt.Fprintf(&b, "Item: %s\nPurchase Options:\n%s\n\n", item.Name, options)
	}
	return b.String()
}

// validateElement checks one parsed element against the schema and converts
// it. Invalid elements are logged and skipped so one bad element never fails
// the batch.
func (s *Selector) validateElement(idx int, el map[string]interface{}) (models.Recommendation, bool) {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(el))
	if err != nil || !result.Valid() {
		fields := map[string]interface{}{"index": idx}
		if err != nil {
			fields["error"] = err.Error()
		} else {
			fields["violations"] = formatViolations(result)
		}
		s.logger.Warn("skipping invalid selection element", fields)
		return models.Recommendation{}, false
	}

	rec := models.Recommendation{
		ItemName: el["item_name"].(string),
		Price:    normalizePrice(el["price"]),
		Link:     optionalString(el["link"]),
		Source:   optionalString(el["source"]),
	}
	return rec, true
}

// normalizePrice tolerates the model returning a bare number for price.
func normalizePrice(v interface{}) *string {
	switch p := v.(type) {
	case string:
		if p == "" || strings.EqualFold(p, "none") || strings.EqualFold(p, "null") {
			return nil
		}
		return &p
	case float64:
		formatted := strconv.FormatFloat(p, 'f', -1, 64)
		return &formatted
	default:
		return nil
	}
}

func optionalString(v interface{}) *string {
	s, ok := v.(string)
	if !ok || s == "" || strings.EqualFold(s, "none") || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

func formatViolations(result *gojsonschema.Result) []string {
	out := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		out = append(out, e.String())
	}
	return out
}
