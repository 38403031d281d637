package database

import (
	"database/sql"
	"fmt"
	"time"
)

// StatsRepository provides the read-only queries behind the stats
// endpoint. The dashboard consumes the same schema; nothing here
// mutates any row.
type StatsRepository struct {
	db *DB
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(db *DB) *StatsRepository {
	return &StatsRepository{db: db}
}

var _ StatsStore = (*StatsRepository)(nil)

// GetEntityCounts returns the row count of every table in the schema.
func (r *StatsRepository) GetEntityCounts() (EntityCounts, error) {
	var counts EntityCounts

	err := r.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM media),
			(SELECT COUNT(*) FROM feeds),
			(SELECT COUNT(*) FROM news),
			(SELECT COUNT(*) FROM files),
			(SELECT COUNT(*) FROM chosen_news),
			(SELECT COUNT(*) FROM instagram_posts),
			(SELECT COUNT(*) FROM published),
			(SELECT COUNT(*) FROM stories)
	`).Scan(
		&counts.Media, &counts.Feeds, &counts.News, &counts.Files,
		&counts.ChosenNews, &counts.InstagramPosts, &counts.Published,
		&counts.Stories,
	)
	if err != nil {
		return EntityCounts{}, fmt.Errorf("failed to get entity counts: %w", err)
	}

	return counts, nil
}

// GetNewsTimeRange returns the oldest and newest published_at across
// all news rows, or nils when the table is empty.
func (r *StatsRepository) GetNewsTimeRange() (*time.Time, *time.Time, error) {
	var oldest, newest sql.NullTime
	err := r.db.QueryRow(`
		SELECT MIN(published_at), MAX(published_at) FROM news
	`).Scan(&oldest, &newest)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get news time range: %w", err)
	}

	var oldestPtr, newestPtr *time.Time
	if oldest.Valid {
		oldestPtr = &oldest.Time
	}
	if newest.Valid {
		newestPtr = &newest.Time
	}

	return oldestPtr, newestPtr, nil
}
