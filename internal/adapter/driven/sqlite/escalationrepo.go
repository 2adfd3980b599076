package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EscalationStore = (*EscalationRepo)(nil)

// EscalationRepo is the SQLite implementation of the EscalationStore port.
// Clearing a marker stamps cleared_at rather than deleting the row.
type EscalationRepo struct {
	db *DB
}

// NewEscalationRepo creates a new EscalationRepo backed by the given DB.
func NewEscalationRepo(db *DB) *EscalationRepo {
	return &EscalationRepo{db: db}
}

const escalationColumns = `id, repo_full_name, pr_number, head_sha, pr_title, pr_author, pr_url, reason, created_at`

// Create inserts an active marker. Returns driven.ErrAlreadyEscalated if the
// PR already has one.
func (r *EscalationRepo) Create(ctx context.Context, marker model.Escalation) error {
	const query = `
		INSERT INTO escalations (repo_full_name, pr_number, head_sha, pr_title, pr_author, pr_url, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := marker.CreatedAt
	if createdAt.IsZero() {
		createdAt = now()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		marker.RepoFullName, marker.PRNumber, marker.HeadSHA, marker.Title,
		marker.Author, marker.URL, marker.Reason, createdAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("escalate %s: %w", marker.Key(), driven.ErrAlreadyEscalated)
		}
		return fmt.Errorf("escalate %s: %w", marker.Key(), err)
	}

	return nil
}

// Get returns the active marker for a PR, or nil, nil.
func (r *EscalationRepo) Get(ctx context.Context, repoFullName string, prNumber int) (*model.Escalation, error) {
	query := `SELECT ` + escalationColumns + `
		FROM escalations
		WHERE repo_full_name = ? AND pr_number = ? AND cleared_at IS NULL`

	marker, err := scanEscalation(r.db.Reader.QueryRowContext(ctx, query, repoFullName, prNumber))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get escalation %s: %w", model.PRKey(repoFullName, prNumber), err)
	}

	return marker, nil
}

// ListAll returns every active marker, newest first.
func (r *EscalationRepo) ListAll(ctx context.Context) ([]model.Escalation, error) {
	query := `SELECT ` + escalationColumns + `
		FROM escalations
		WHERE cleared_at IS NULL
		ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	defer rows.Close()

	markers := []model.Escalation{}
	for rows.Next() {
		marker, err := scanEscalation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		markers = append(markers, *marker)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escalations: %w", err)
	}

	return markers, nil
}

// Clear deactivates the marker for a PR. Returns driven.ErrNotFound if the PR
// is not escalated.
func (r *EscalationRepo) Clear(ctx context.Context, repoFullName string, prNumber int) error {
	const query = `UPDATE escalations SET cleared_at = ? WHERE repo_full_name = ? AND pr_number = ? AND cleared_at IS NULL`

	key := model.PRKey(repoFullName, prNumber)

	result, err := r.db.Writer.ExecContext(ctx, query, now(), repoFullName, prNumber)
	if err != nil {
		return fmt.Errorf("clear escalation %s: %w", key, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("clear escalation %s: %w", key, driven.ErrNotFound)
	}

	return nil
}

func scanEscalation(s scanner) (*model.Escalation, error) {
	var marker model.Escalation
	var createdAt string

	err := s.Scan(
		&marker.ID, &marker.RepoFullName, &marker.PRNumber, &marker.HeadSHA,
		&marker.Title, &marker.Author, &marker.URL, &marker.Reason, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	marker.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &marker, nil
}
