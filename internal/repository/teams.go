package repository

import (
	"context"
	"fmt"
)

// TeamRepository handles team database operations
type TeamRepository struct {
	db *Database
}

// Count returns the total number of teams
func (r *TeamRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM teams`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count teams: %w", err)
	}

	return count, nil
}
