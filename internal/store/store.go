// internal/store/store.go
package store

import (
	"context"
	"strconv"
	"strings"

	"shopscout/internal/models"
)

// History bundles a user's persisted shopping activity for profile
// synthesis.
type History struct {
	UserID    int64                    `json:"user_id"`
	Queries   []models.QueryRecord     `json:"queries"`
	Items     []models.RecommendedItem `json:"items"`
	Reactions []models.Reaction        `json:"reactions"`
}

// Query types recorded on persisted queries.
const (
	QueryTypePrompted   = "prompted"
	QueryTypeUnprompted = "unprompted"
)

// Store is the repository interface for users, queries, recommendations and
// reactions.
type Store interface {
	CreateOrGetUser(ctx context.Context, externalID, name string) (*models.User, error)
	CreateQuery(ctx context.Context, userID int64, rawText, queryType string, query *models.StructuredQuery) (*models.QueryRecord, error)
	CreateRecommendedItem(ctx context.Context, queryID int64, rec models.Recommendation) (*models.RecommendedItem, error)
	CreateReaction(ctx context.Context, userID, itemID int64, liked bool) (*models.Reaction, error)
	GetRecentQueries(ctx context.Context, userID int64, limit int) ([]models.QueryRecord, error)
	GetUserHistory(ctx context.Context, userID int64) (*History, error)
	ReplaceUserRecommendations(ctx context.Context, userID int64, recs []models.Recommendation) error
	GetUserRecommendations(ctx context.Context, userID int64) ([]models.RecommendedItem, error)
}

// ParsePrice converts a source-formatted price string like "$1,049.99" to a
// numeric value. The pipeline carries prices as display strings; numeric
// normalization happens only at this boundary. Unparseable prices yield nil.
func ParsePrice(price *string) *float64 {
	if price == nil {
		return nil
	}
	cleaned := strings.TrimSpace(*price)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return nil
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &value
}
