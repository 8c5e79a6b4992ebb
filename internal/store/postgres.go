// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "shopscout/internal/common/errors"
	"shopscout/internal/common/logger"
	"shopscout/internal/models"
)

// PostgresStore implements Store on top of PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.With(map[string]interface{}{"component": "store"}),
	}
}

// CreateOrGetUser inserts a user keyed by external ID, returning the
// existing row when the ID is already known.
func (s *PostgresStore) CreateOrGetUser(ctx context.Context, externalID, name string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (external_id, name)
		VALUES ($1, $2)
		ON CONFLICT (external_id) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, external_id, name, created_at`,
		externalID, name,
	).Scan(&user.ID, &user.ExternalID, &user.Name, &user.CreatedAt)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("create_or_get_user", err)
	}
	return user, nil
}

// CreateQuery persists one shopping query with its prompted or unprompted
// origin.
func (s *PostgresStore) CreateQuery(ctx context.Context, userID int64, rawText, queryType string, query *models.StructuredQuery) (*models.QueryRecord, error) {
	record := &models.QueryRecord{
		UserID:     userID,
		RawText:    rawText,
		QueryType:  queryType,
		ItemName:   query.ItemName,
		Category:   query.Category,
		PriceRange: query.PriceRange,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO queries (user_id, raw_text, query_type, item_name, category, price_range)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		userID, rawText, queryType, query.ItemName, query.Category, query.PriceRange,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("create_query", err)
	}
	return record, nil
}

// CreateRecommendedItem persists one recommendation attached to a query.
// The display price string is parsed to a number here, not in the pipeline.
func (s *PostgresStore) CreateRecommendedItem(ctx context.Context, queryID int64, rec models.Recommendation) (*models.RecommendedItem, error) {
	item := &models.RecommendedItem{
		QueryID:    queryID,
		ItemName:   rec.ItemName,
		PriceValue: ParsePrice(rec.Price),
		Link:       rec.Link,
		Source:     rec.Source,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO recommended_items (query_id, item_name, price, link, source)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		queryID, rec.ItemName, item.PriceValue, rec.Link, rec.Source,
	).Scan(&item.ID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("create_recommended_item", err)
	}
	return item, nil
}

// CreateReaction persists a like or dislike on a recommended item.
func (s *PostgresStore) CreateReaction(ctx context.Context, userID, itemID int64, liked bool) (*models.Reaction, error) {
	reaction := &models.Reaction{
		UserID: userID,
		ItemID: itemID,
		Liked:  liked,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO reactions (user_id, item_id, liked)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		userID, itemID, liked,
	).Scan(&reaction.ID, &reaction.CreatedAt)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("create_reaction", err)
	}
	return reaction, nil
}

// GetRecentQueries returns a user's most recent queries, newest first.
func (s *PostgresStore) GetRecentQueries(ctx context.Context, userID int64, limit int) ([]models.QueryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, raw_text, query_type, item_name, category, price_range, created_at
		FROM queries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get_recent_queries", err)
	}
	defer rows.Close()

	var queries []models.QueryRecord
	for rows.Next() {
		var q models.QueryRecord
		if err := rows.Scan(&q.ID, &q.UserID, &q.RawText, &q.QueryType, &q.ItemName, &q.Category, &q.PriceRange, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan query row: %w", err)
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// GetUserHistory loads a user's queries, recommended items and reactions.
func (s *PostgresStore) GetUserHistory(ctx context.Context, userID int64) (*History, error) {
	history := &History{UserID: userID}

	queries, err := s.GetRecentQueries(ctx, userID, 100)
	if err != nil {
		return nil, err
	}
	history.Queries = queries

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT ri.id, ri.query_id, ri.item_name, ri.price, ri.link, ri.source
		FROM recommended_items ri
		JOIN queries q ON q.id = ri.query_id
		WHERE q.user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get_user_history_items", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var item models.RecommendedItem
		if err := itemRows.Scan(&item.ID, &item.QueryID, &item.ItemName, &item.PriceValue, &item.Link, &item.Source); err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		history.Items = append(history.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	reactionRows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, item_id, liked, created_at
		FROM reactions
		WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get_user_history_reactions", err)
	}
	defer reactionRows.Close()

	for reactionRows.Next() {
		var r models.Reaction
		if err := reactionRows.Scan(&r.ID, &r.UserID, &r.ItemID, &r.Liked, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reaction row: %w", err)
		}
		history.Reactions = append(history.Reactions, r)
	}
	return history, reactionRows.Err()
}

// ReplaceUserRecommendations swaps out a user's personalized
// recommendations in one transaction: delete everything, then insert the
// new set.
func (s *PostgresStore) ReplaceUserRecommendations(ctx context.Context, userID int64, recs []models.Recommendation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_recommendations WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete user recommendations: %w", err)
	}

	for _, rec := range recs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_recommendations (user_id, item_name, price, link, source)
			VALUES ($1, $2, $3, $4, $5)`,
			userID, rec.ItemName, ParsePrice(rec.Price), rec.Link, rec.Source,
		); err != nil {
			return fmt.Errorf("failed to insert user recommendation: %w", err)
		}
	}

	return tx.Commit()
}

// GetUserRecommendations returns a user's current personalized
// recommendations.
func (s *PostgresStore) GetUserRecommendations(ctx context.Context, userID int64) ([]models.RecommendedItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, item_name, price, link, source
		FROM user_recommendations
		WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get_user_recommendations", err)
	}
	defer rows.Close()

	var items []models.RecommendedItem
	for rows.Next() {
		var item models.RecommendedItem
		if err := rows.Scan(&item.ID, &item.ItemName, &item.PriceValue, &item.Link, &item.Source); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
