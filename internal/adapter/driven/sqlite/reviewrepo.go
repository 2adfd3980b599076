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
var _ driven.ReviewStore = (*ReviewRepo)(nil)

// ReviewRepo is the SQLite implementation of the ReviewStore port interface.
type ReviewRepo struct {
	db *DB
}

// NewReviewRepo creates a new ReviewRepo backed by the given DB.
func NewReviewRepo(db *DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

const completedReviewColumns = `
	id, repo_full_name, pr_number, head_sha, base_sha, pr_title, pr_author,
	verdict, comment, summary, source, pending_id, reviewed_at`

// UpsertCompletedReview records a terminal decision for a head commit and its
// posted annotations. It returns driven.ErrConstraintViolation when the commit
// already has a completed review; existing rows are never replaced.
func (r *ReviewRepo) UpsertCompletedReview(ctx context.Context, review model.CompletedReview) (int64, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	id, err := insertCompletedReview(ctx, tx, review)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit completed review %s: %w", model.PRKey(review.RepoFullName, review.PRNumber), err)
	}

	return id, nil
}

// insertCompletedReview writes the review row and its annotations on tx.
func insertCompletedReview(ctx context.Context, tx *sql.Tx, review model.CompletedReview) (int64, error) {
	const query = `
		INSERT INTO completed_reviews (
			repo_full_name, pr_number, head_sha, base_sha, pr_title, pr_author,
			verdict, comment, summary, source, pending_id, reviewed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	reviewedAt := review.ReviewedAt
	if reviewedAt.IsZero() {
		reviewedAt = now()
	}

	source := review.Source
	if source == "" {
		source = model.ReviewSourceAutomated
	}

	var pendingID any
	if review.PendingID != 0 {
		pendingID = review.PendingID
	}

	key := model.PRKey(review.RepoFullName, review.PRNumber)

	res, err := tx.ExecContext(ctx, query,
		review.RepoFullName, review.PRNumber, review.HeadSHA, review.BaseSHA,
		review.Title, review.Author, string(review.Verdict), review.Comment,
		review.Summary, string(source), pendingID, reviewedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert completed review %s@%s: %w", key, model.ShortSHA(review.HeadSHA), driven.ErrConstraintViolation)
		}
		return 0, fmt.Errorf("insert completed review %s: %w", key, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read completed review id: %w", err)
	}

	const annotationQuery = `
		INSERT INTO review_annotations (review_id, position, file_path, line, message)
		VALUES (?, ?, ?, ?, ?)
	`
	for i, a := range review.Annotations {
		if _, err := tx.ExecContext(ctx, annotationQuery, id, i, a.File, a.Line, a.Message); err != nil {
			return 0, fmt.Errorf("insert review annotation %d for %s: %w", i, key, err)
		}
	}

	return id, nil
}

// GetForCommit returns the completed review for a specific head commit, or
// nil, nil if that commit has not been reviewed.
func (r *ReviewRepo) GetForCommit(ctx context.Context, repoFullName string, prNumber int, headSHA string) (*model.CompletedReview, error) {
	query := `SELECT ` + completedReviewColumns + `
		FROM completed_reviews
		WHERE repo_full_name = ? AND pr_number = ? AND head_sha = ?`

	return r.getOne(ctx, query, repoFullName, prNumber, headSHA)
}

// GetLatest returns the most recent completed review for a PR, or nil, nil.
func (r *ReviewRepo) GetLatest(ctx context.Context, repoFullName string, prNumber int) (*model.CompletedReview, error) {
	query := `SELECT ` + completedReviewColumns + `
		FROM completed_reviews
		WHERE repo_full_name = ? AND pr_number = ?
		ORDER BY reviewed_at DESC, id DESC
		LIMIT 1`

	return r.getOne(ctx, query, repoFullName, prNumber)
}

// ListByRepo returns up to limit completed reviews for a repository, newest first.
func (r *ReviewRepo) ListByRepo(ctx context.Context, repoFullName string, limit int) ([]model.CompletedReview, error) {
	query := `SELECT ` + completedReviewColumns + `
		FROM completed_reviews
		WHERE repo_full_name = ?
		ORDER BY reviewed_at DESC, id DESC
		LIMIT ?`

	return r.list(ctx, query, repoFullName, limit)
}

// ListRecent returns up to limit completed reviews across all repositories, newest first.
func (r *ReviewRepo) ListRecent(ctx context.Context, limit int) ([]model.CompletedReview, error) {
	query := `SELECT ` + completedReviewColumns + `
		FROM completed_reviews
		ORDER BY reviewed_at DESC, id DESC
		LIMIT ?`

	return r.list(ctx, query, limit)
}

func (r *ReviewRepo) getOne(ctx context.Context, query string, args ...any) (*model.CompletedReview, error) {
	review, err := scanCompletedReview(r.db.Reader.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completed review: %w", err)
	}

	reviews := []model.CompletedReview{*review}
	if err := loadReviewAnnotations(ctx, r.db.Reader, reviews); err != nil {
		return nil, err
	}

	return &reviews[0], nil
}

func (r *ReviewRepo) list(ctx context.Context, query string, args ...any) ([]model.CompletedReview, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query completed reviews: %w", err)
	}
	defer rows.Close()

	reviews := []model.CompletedReview{}
	for rows.Next() {
		review, err := scanCompletedReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completed review: %w", err)
		}
		reviews = append(reviews, *review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completed reviews: %w", err)
	}

	if err := loadReviewAnnotations(ctx, r.db.Reader, reviews); err != nil {
		return nil, err
	}

	return reviews, nil
}

// loadReviewAnnotations fills Annotations for every review in one query.
func loadReviewAnnotations(ctx context.Context, q querier, reviews []model.CompletedReview) error {
	if len(reviews) == 0 {
		return nil
	}

	ids := make([]int64, len(reviews))
	byID := make(map[int64]*model.CompletedReview, len(reviews))
	for i := range reviews {
		ids[i] = reviews[i].ID
		byID[reviews[i].ID] = &reviews[i]
	}

	query := `SELECT review_id, position, file_path, line, message
		FROM review_annotations
		WHERE review_id IN (` + placeholders(len(ids)) + `)
		ORDER BY review_id, position`

	rows, err := q.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("query review annotations: %w", err)
	}

	annotations, err := scanAnnotationRows(rows, false)
	if err != nil {
		return err
	}

	for _, a := range annotations {
		if review, ok := byID[a.ownerID]; ok {
			review.Annotations = append(review.Annotations, a.Annotation)
		}
	}

	return nil
}

func scanCompletedReview(s scanner) (*model.CompletedReview, error) {
	var review model.CompletedReview
	var verdict, source, reviewedAt string
	var pendingID sql.NullInt64

	err := s.Scan(
		&review.ID, &review.RepoFullName, &review.PRNumber, &review.HeadSHA,
		&review.BaseSHA, &review.Title, &review.Author, &verdict,
		&review.Comment, &review.Summary, &source, &pendingID, &reviewedAt,
	)
	if err != nil {
		return nil, err
	}

	review.Verdict = model.VerdictKind(verdict)
	review.Source = model.ReviewSource(source)
	if pendingID.Valid {
		review.PendingID = pendingID.Int64
	}

	review.ReviewedAt, err = parseTime(reviewedAt)
	if err != nil {
		return nil, fmt.Errorf("parse reviewed_at: %w", err)
	}

	return &review, nil
}
