// internal/pipeline/interpreter/interpreter.go
package interpreter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"shopscout/internal/common/logger"
	"shopscout/internal/common/metrics"
	"shopscout/internal/llm"
	"shopscout/internal/models"
)

const defaultResultCount = 3

const parseSystemPrompt = "You are a helpful text parser that returns valid JSON."

const parsePromptTemplate = `You are a text parser. Convert the following query into a JSON object with the following structure:
{
  "item_name": "<product name>",
  "category": "<category or null>",
  "price_range": "<price range or null>",
  "result_count": <number>
}

Now parse the following query and return only the JSON:
%s`

const multiItemPromptTemplate = `You are a shopping assistant. The user describes a set of related things they need, for example "ski equipment" or "home office setup". Return a JSON object with the following structure:
{
  "category": "<short name for the set>",
  "items": ["<item 1>", "<item 2>", ...]
}
Return at most 4 complementary, individually purchasable items. Return only the JSON.

Request: %s`

const chatSystemPrompt = "You are a helpful shopping assistant."

const chatPromptTemplate = `You are a shopping assistant that extracts product search queries from chat conversations.

Recent conversation:
%s

Your task:
1. If there is a shopping-related intent (i.e., someone wants to buy something), return a JSON with the following keys:
  - "item_name": a specific product name. Feel free to add adjectives to enhance specificity. For example:
      - If the user says "I want a pair of shoes that I can run in", you can return "running shoes".
      - If the user says "I want a pair of shoes that are comfortable", you can return "comfortable shoes".
  - "category": the product category (e.g., "electronics", "clothing", etc.) or null if not applicable.
  - "price_range": the price range as mentioned in the conversation (e.g., "0 - 100") or null if not specified.
  - "result_count": the number of search results. Default is 3 and must never be 1. If the user specifies a quantity (e.g., "I'm looking for 5 pairs of shoes"), use that number.

2. If there is no shopping-related intent in the conversation, simply return:
  {
    "item_name": null
  }

Examples:
- Chat: "I'm looking for wireless headphones, any suggestions?"
  Output: { "item_name": "wireless headphones", "category": "electronics", "price_range": "50-200", "result_count": 3 }

- Chat: "I'm looking for headphones under $100"
  Output: { "item_name": "headphones", "category": "electronics", "price_range": "0 - 100", "result_count": 3 }

- Chat: "Anyone played Valorant today?"
  Output: { "item_name": null }

Now, analyze the conversation above and return the correct output.`

// Interpreter turns free text into structured shopping requests.
type Interpreter struct {
	llm    llm.Client
	logger logger.Logger
}

// New creates an Interpreter.
func New(client llm.Client, log logger.Logger) *Interpreter {
	return &Interpreter{
		llm:    client,
		logger: log.With(map[string]interface{}{"component": "interpreter"}),
	}
}

// Parse converts a raw query into a StructuredQuery. It never fails: on any
// model or decode error the trimmed raw text becomes the item name and all
// other fields take their defaults.
func (i *Interpreter) Parse(ctx context.Context, rawText string) *models.StructuredQuery {
	fallback := &models.StructuredQuery{
		ItemName:    strings.TrimSpace(rawText),
		ResultCount: defaultResultCount,
	}

	prompt := fmt.Sprintf(parsePromptTemplate, rawText)
	raw, err := i.llm.Complete(ctx, parseSystemPrompt, prompt, llm.Options{JSONMode: true})
	if err != nil {
		metrics.LLMCalls.WithLabelValues("parse_query", "error").Inc()
		i.logger.Warn("query parse call failed, using fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return fallback
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(llm.StripCodeFences(raw)), &parsed); err != nil {
		metrics.LLMCalls.WithLabelValues("parse_query", "error").Inc()
		i.logger.Warn("query parse returned invalid JSON, using fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return fallback
	}
	metrics.LLMCalls.WithLabelValues("parse_query", "success").Inc()

	return structuredQueryFromMap(parsed, fallback.ItemName)
}

// ParseSet converts free text describing a set of related things into up to
// four complementary item names. On any failure the raw text itself becomes
// both the category and the single item.
func (i *Interpreter) ParseSet(ctx context.Context, rawText string) *models.MultiItemSet {
	fallback := &models.MultiItemSet{
		Category: rawText,
		Items:    []string{rawText},
	}

	prompt := fmt.Sprintf(multiItemPromptTemplate, rawText)
	raw, err := i.llm.Complete(ctx, parseSystemPrompt, prompt, llm.Options{JSONMode: true})
	if err != nil {
		metrics.LLMCalls.WithLabelValues("parse_multi", "error").Inc()
		i.logger.Warn("multi-item parse call failed, using fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return fallback
	}

	var parsed struct {
		Category string   `json:"category"`
		Items    []string `json:"items"`
	}
	if err := json.Unmarshal([]byte(llm.StripCodeFences(raw)), &parsed); err != nil {
		metrics.LLMCalls.WithLabelValues("parse_multi", "error").Inc()
		i.logger.Warn("multi-item parse returned invalid JSON, using fallback", map[string]interface{}{
			"error": err.Error(),
		})
		return fallback
	}
	metrics.LLMCalls.WithLabelValues("parse_multi", "success").Inc()

	if parsed.Category == "" {
		parsed.Category = rawText
	}
	if len(parsed.Items) == 0 {
		parsed.Items = []string{rawText}
	}
	if len(parsed.Items) > 4 {
		parsed.Items = parsed.Items[:4]
	}

	return &models.MultiItemSet{Category: parsed.Category, Items: parsed.Items}
}

// InterpretConversation inspects recent chat messages for shopping intent.
// The second return value is false when no intent was detected or the call
// failed. The result count from conversational inference is never 1.
func (i *Interpreter) InterpretConversation(ctx context.Context, messages []string) (*models.StructuredQuery, bool) {
	contextText := strings.Join(messages, "\n")

	prompt := fmt.Sprintf(chatPromptTemplate, contextText)
	raw, err := i.llm.Complete(ctx, chatSystemPrompt, prompt, llm.Options{JSONMode: true, Temperature: 0.7})
	if err != nil {
		metrics.LLMCalls.WithLabelValues("interpret_chat", "error").Inc()
		i.logger.Warn("conversation interpretation call failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, false
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(llm.StripCodeFences(raw)), &parsed); err != nil {
		metrics.LLMCalls.WithLabelValues("interpret_chat", "error").Inc()
		i.logger.Warn("conversation interpretation returned invalid JSON", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, false
	}
	metrics.LLMCalls.WithLabelValues("interpret_chat", "success").Inc()

	itemName, ok := parsed["item_name"].(string)
	if !ok || strings.TrimSpace(itemName) == "" {
		return nil, false
	}

	query := structuredQueryFromMap(parsed, itemName)
	if query.ResultCount == 1 {
		query.ResultCount = defaultResultCount
	}
	return query, true
}

// structuredQueryFromMap applies field-by-field defaulting so a partially
// valid model response is still usable.
func structuredQueryFromMap(parsed map[string]interface{}, fallbackItem string) *models.StructuredQuery {
	query := &models.StructuredQuery{
		ItemName:    fallbackItem,
		ResultCount: defaultResultCount,
	}

	if name, ok := parsed["item_name"].(string); ok && strings.TrimSpace(name) != "" {
		query.ItemName = name
	}
	if category, ok := parsed["category"].(string); ok && category != "" && !strings.EqualFold(category, "none") {
		query.Category = &category
	}
	if priceRange, ok := parsed["price_range"].(string); ok && priceRange != "" {
		query.PriceRange = &priceRange
	}
	if count, ok := parsed["result_count"].(float64); ok && count >= 1 {
		query.ResultCount = int(count)
	}

	return query
}
