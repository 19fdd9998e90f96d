// internal/billing/implementation.go
package billing

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// service implements the Service interface over the billing subsystem's
// Postgres tables.
type service struct {
	db *sql.DB
}

// NewService creates a new billing query service instance.
func NewService(db *sql.DB) Service {
	return &service{db: db}
}

// GetLevel retrieves a level and its bound categories.
func (s *service) GetLevel(ctx context.Context, id int64) (*Level, error) {
	query := `
		SELECT id, name, access_model, created_at, updated_at
		FROM membership_levels
		WHERE id = $1
	`
	level := &Level{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&level.ID,
		&level.Name,
		&level.AccessModel,
		&level.CreatedAt,
		&level.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrLevelNotFound
		}
		return nil, fmt.Errorf("failed to get level %d: %w", id, err)
	}

	level.CategoryIDs, err = s.levelCategories(ctx, id)
	if err != nil {
		return nil, err
	}
	return level, nil
}

func (s *service) levelCategories(ctx context.Context, levelID int64) ([]int64, error) {
	query := `
		SELECT category_id
		FROM level_categories
		WHERE level_id = $1
		ORDER BY category_id
	`
	rows, err := s.db.QueryContext(ctx, query, levelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query level categories: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan category id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// LevelsForUser returns the levels the user actively holds.
func (s *service) LevelsForUser(ctx context.Context, userID int64) ([]Level, error) {
	query := `
		SELECT l.id, l.name, l.access_model, l.created_at, l.updated_at
		FROM membership_levels l
		JOIN user_levels ul ON ul.level_id = l.id
		WHERE ul.user_id = $1 AND ul.status = 'active'
		ORDER BY l.id
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user levels: %w", err)
	}
	defer rows.Close()

	var levels []Level
	for rows.Next() {
		var l Level
		if err := rows.Scan(&l.ID, &l.Name, &l.AccessModel, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan level: %w", err)
		}
		levels = append(levels, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range levels {
		cats, err := s.levelCategories(ctx, levels[i].ID)
		if err != nil {
			return nil, err
		}
		levels[i].CategoryIDs = cats
	}
	return levels, nil
}

// RestrictedPageIDs returns page ids from the canonical restriction table.
func (s *service) RestrictedPageIDs(ctx context.Context, levelIDs []int64) ([]int64, error) {
	if len(levelIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT DISTINCT page_id
		FROM level_pages
		WHERE level_id = ANY($1)
		ORDER BY page_id
	`
	return s.queryIDs(ctx, query, pq.Array(levelIDs))
}

// BoundCourseIDs returns candidate course ids from the reverse attribute
// index. Stale entries are possible and left for the caller to discard.
func (s *service) BoundCourseIDs(ctx context.Context, levelIDs []int64) ([]int64, error) {
	if len(levelIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT DISTINCT meta_value::bigint
		FROM level_meta
		WHERE meta_key = $1 AND level_id = ANY($2)
		ORDER BY meta_value::bigint
	`
	return s.queryIDs(ctx, query, MetaBoundCourseID, pq.Array(levelIDs))
}

func (s *service) queryIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetOrder retrieves an order by id.
func (s *service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	query := `
		SELECT id, code, user_id, level_id, total, status, created_at
		FROM orders
		WHERE id = $1
	`
	order := &Order{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.Code,
		&order.UserID,
		&order.LevelID,
		&order.Total,
		&order.Status,
		&order.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	return order, nil
}
