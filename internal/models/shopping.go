// internal/models/shopping.go
package models

import "time"

// StructuredQuery is a normalized shopping request derived from free text.
// ItemName is always non-empty; interpretation falls back to the raw input
// when extraction fails.
type StructuredQuery struct {
	ItemName    string  `json:"item_name"`
	Category    *string `json:"category"`
	PriceRange  *string `json:"price_range"`
	ResultCount int     `json:"result_count"`
}

// MultiItemSet is a set of complementary item names under one category,
// capped at four entries.
type MultiItemSet struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
}

// CandidateItem is a specific purchasable product name suggested by the
// language model, not yet grounded in real offers.
type CandidateItem struct {
	Name string `json:"item_name"`
}

// Recommendation pairs a candidate item with its selected best offer.
// Price, Link and Source are nil when no offer was found for the item.
type Recommendation struct {
	ItemName string  `json:"item_name"`
	Price    *string `json:"price"`
	Link     *string `json:"link"`
	Source   *string `json:"source"`
}

// UserProfile is the synthesized personality profile built from a user's
// shopping history.
type UserProfile struct {
	PersonalityType   string             `json:"personality_type"`
	CategoryBreakdown map[string]float64 `json:"category_breakdown"`
	PricePreference   string             `json:"price_preference"`
	FavoriteBrands    []string           `json:"favorite_brands"`
	Recommendations   []string           `json:"recommendations"`
}

// --- Persistence entities ---

// User identifies an end user of the chat or HTTP surface.
type User struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

// QueryRecord is a persisted shopping query. QueryType records whether the
// user asked directly ("prompted") or the passive monitor triggered the
// search ("unprompted").
type QueryRecord struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	RawText    string    `json:"raw_text"`
	QueryType  string    `json:"query_type"`
	ItemName   string    `json:"item_name"`
	Category   *string   `json:"category"`
	PriceRange *string   `json:"price_range"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecommendedItem is a persisted recommendation attached to a query.
// PriceValue holds the numeric form parsed at the persistence boundary.
type RecommendedItem struct {
	ID         int64    `json:"id"`
	QueryID    int64    `json:"query_id"`
	ItemName   string   `json:"item_name"`
	PriceValue *float64 `json:"price_value"`
	Link       *string  `json:"link"`
	Source     *string  `json:"source"`
}

// Reaction is a user's like/dislike on a recommended item.
type Reaction struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ItemID    int64     `json:"item_id"`
	Liked     bool      `json:"liked"`
	CreatedAt time.Time `json:"created_at"`
}

// StringPtr returns a pointer to s. Helper for optional fields.
func StringPtr(s string) *string {
	return &s
}
