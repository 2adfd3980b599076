package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.StatsStore = (*StatsRepo)(nil)

// StatsRepo aggregates counts across the review state tables.
type StatsRepo struct {
	db *DB
}

// NewStatsRepo creates a new StatsRepo backed by the given DB.
func NewStatsRepo(db *DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// ReviewStats returns totals for completed reviews, pending approvals by
// status, and active escalations. RecentReviews counts reviews at or after since.
func (r *StatsRepo) ReviewStats(ctx context.Context, since time.Time) (model.ReviewStats, error) {
	stats := model.ReviewStats{ByVerdict: make(map[model.VerdictKind]int)}

	err := r.db.Reader.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT repo_full_name),
			COALESCE(SUM(CASE WHEN reviewed_at >= ? THEN 1 ELSE 0 END), 0)
		FROM completed_reviews
	`, since.UTC()).Scan(&stats.TotalReviews, &stats.Repositories, &stats.RecentReviews)
	if err != nil {
		return model.ReviewStats{}, fmt.Errorf("count completed reviews: %w", err)
	}

	if err := r.countGrouped(ctx, `SELECT verdict, COUNT(*) FROM completed_reviews GROUP BY verdict`, func(key string, n int) {
		stats.ByVerdict[model.VerdictKind(key)] = n
	}); err != nil {
		return model.ReviewStats{}, err
	}

	if err := r.countGrouped(ctx, `SELECT status, COUNT(*) FROM pending_approvals GROUP BY status`, func(key string, n int) {
		switch model.PendingStatus(key) {
		case model.PendingStatusPending:
			stats.Pending = n
		case model.PendingStatusApproved:
			stats.Approved = n
		case model.PendingStatusRejected:
			stats.Rejected = n
		case model.PendingStatusOutdated:
			stats.Outdated = n
		}
	}); err != nil {
		return model.ReviewStats{}, err
	}

	err = r.db.Reader.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM escalations WHERE cleared_at IS NULL`,
	).Scan(&stats.Escalated)
	if err != nil {
		return model.ReviewStats{}, fmt.Errorf("count escalations: %w", err)
	}

	return stats, nil
}

func (r *StatsRepo) countGrouped(ctx context.Context, query string, fn func(key string, n int)) error {
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query grouped counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan grouped count: %w", err)
		}
		fn(key, n)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate grouped counts: %w", err)
	}

	return nil
}
