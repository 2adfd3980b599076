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
var _ driven.PendingStore = (*PendingRepo)(nil)

const (
	annotationKindProposed = "proposed"
	annotationKindEdited   = "edited"
)

// PendingRepo is the SQLite implementation of the PendingStore port interface.
// Proposed and edited annotations are kept in pending_annotations, so the
// original proposal stays queryable after a human edits it.
type PendingRepo struct {
	db *DB
}

// NewPendingRepo creates a new PendingRepo backed by the given DB.
func NewPendingRepo(db *DB) *PendingRepo {
	return &PendingRepo{db: db}
}

const pendingColumns = `
	id, repo_full_name, pr_number, pr_title, pr_author, pr_url, head_sha, base_sha,
	verdict, comment, summary, reason, edited_comment, edited_summary,
	annotations_edited, status, rejection_reason, created_at, updated_at, decided_at`

// UpsertPending supersedes the open row for the candidate's PR in place, or
// inserts a new row when the PR has no open row. Superseding replaces the
// proposal and head commit and discards any edits made to the old proposal.
// Terminal rows are left untouched.
func (r *PendingRepo) UpsertPending(ctx context.Context, candidate model.PendingApproval) (model.PendingApproval, error) {
	key := candidate.Key()

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return model.PendingApproval{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM pending_approvals WHERE repo_full_name = ? AND pr_number = ? AND status = 'pending'`,
		candidate.RepoFullName, candidate.PRNumber,
	).Scan(&id)

	ts := now()

	switch {
	case errors.Is(err, sql.ErrNoRows):
		const insert = `
			INSERT INTO pending_approvals (
				repo_full_name, pr_number, pr_title, pr_author, pr_url, head_sha, base_sha,
				verdict, comment, summary, reason, status, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?, ?)
		`
		res, err := tx.ExecContext(ctx, insert,
			candidate.RepoFullName, candidate.PRNumber, candidate.Title, candidate.Author,
			candidate.URL, candidate.HeadSHA, candidate.BaseSHA, string(candidate.Verdict),
			candidate.Comment, candidate.Summary, candidate.Reason, ts, ts,
		)
		if err != nil {
			return model.PendingApproval{}, fmt.Errorf("insert pending approval %s: %w", key, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return model.PendingApproval{}, fmt.Errorf("read pending approval id: %w", err)
		}

	case err != nil:
		return model.PendingApproval{}, fmt.Errorf("find open pending approval %s: %w", key, err)

	default:
		const update = `
			UPDATE pending_approvals SET
				pr_title = ?, pr_author = ?, pr_url = ?, head_sha = ?, base_sha = ?,
				verdict = ?, comment = ?, summary = ?, reason = ?,
				edited_comment = NULL, edited_summary = NULL, annotations_edited = 0,
				updated_at = ?
			WHERE id = ?
		`
		_, err := tx.ExecContext(ctx, update,
			candidate.Title, candidate.Author, candidate.URL, candidate.HeadSHA, candidate.BaseSHA,
			string(candidate.Verdict), candidate.Comment, candidate.Summary, candidate.Reason,
			ts, id,
		)
		if err != nil {
			return model.PendingApproval{}, fmt.Errorf("supersede pending approval %d for %s: %w", id, key, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM pending_annotations WHERE approval_id = ?`, id); err != nil {
			return model.PendingApproval{}, fmt.Errorf("clear annotations of pending approval %d: %w", id, err)
		}
	}

	if err := insertPendingAnnotations(ctx, tx, id, annotationKindProposed, candidate.Annotations); err != nil {
		return model.PendingApproval{}, err
	}

	if err := tx.Commit(); err != nil {
		return model.PendingApproval{}, fmt.Errorf("commit pending approval %s: %w", key, err)
	}

	stored, err := r.GetByID(ctx, id)
	if err != nil {
		return model.PendingApproval{}, err
	}
	if stored == nil {
		return model.PendingApproval{}, fmt.Errorf("read back pending approval %d: %w", id, driven.ErrNotFound)
	}

	return *stored, nil
}

// GetByID returns the pending approval with the given id, or nil, nil.
func (r *PendingRepo) GetByID(ctx context.Context, id int64) (*model.PendingApproval, error) {
	query := `SELECT ` + pendingColumns + ` FROM pending_approvals WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetOpen returns the pending-status row for the PR, or nil, nil.
func (r *PendingRepo) GetOpen(ctx context.Context, repoFullName string, prNumber int) (*model.PendingApproval, error) {
	query := `SELECT ` + pendingColumns + `
		FROM pending_approvals
		WHERE repo_full_name = ? AND pr_number = ? AND status = 'pending'`
	return r.getOne(ctx, query, repoFullName, prNumber)
}

// GetLatestForCommit returns the newest row of any status proposed against headSHA.
func (r *PendingRepo) GetLatestForCommit(ctx context.Context, repoFullName string, prNumber int, headSHA string) (*model.PendingApproval, error) {
	query := `SELECT ` + pendingColumns + `
		FROM pending_approvals
		WHERE repo_full_name = ? AND pr_number = ? AND head_sha = ?
		ORDER BY id DESC
		LIMIT 1`
	return r.getOne(ctx, query, repoFullName, prNumber, headSHA)
}

// ListOpen returns every pending-status row, oldest first.
func (r *PendingRepo) ListOpen(ctx context.Context) ([]model.PendingApproval, error) {
	query := `SELECT ` + pendingColumns + `
		FROM pending_approvals
		WHERE status = 'pending'
		ORDER BY created_at, id`
	return r.list(ctx, query)
}

// ListByStatus returns one page of rows with the given status, most recently
// decided first, together with the total number of matching rows.
func (r *PendingRepo) ListByStatus(ctx context.Context, status model.PendingStatus, page model.Page) ([]model.PendingApproval, int, error) {
	page = page.Normalize()

	var total int
	err := r.db.Reader.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_approvals WHERE status = ?`, string(status),
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s approvals: %w", status, err)
	}

	query := `SELECT ` + pendingColumns + `
		FROM pending_approvals
		WHERE status = ?
		ORDER BY COALESCE(decided_at, updated_at) DESC, id DESC
		LIMIT ? OFFSET ?`

	items, err := r.list(ctx, query, string(status), page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

// SaveEdits replaces the human edits of an open row. Fields left nil in edits
// revert to the original proposal.
func (r *PendingRepo) SaveEdits(ctx context.Context, id int64, edits model.PendingEdits) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	if err := requireOpen(ctx, tx, id); err != nil {
		return err
	}

	if err := writeEdits(ctx, tx, id, edits); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit edits for pending approval %d: %w", id, err)
	}

	return nil
}

// SetStatus moves an open row to rejected or outdated.
func (r *PendingRepo) SetStatus(ctx context.Context, id int64, status model.PendingStatus, reason string) error {
	if status != model.PendingStatusRejected && status != model.PendingStatusOutdated {
		return fmt.Errorf("set pending approval %d to %q: %w", id, status, driven.ErrInvalidTransition)
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	if err := requireOpen(ctx, tx, id); err != nil {
		return err
	}

	if status != model.PendingStatusRejected {
		reason = ""
	}

	ts := now()
	_, err = tx.ExecContext(ctx,
		`UPDATE pending_approvals SET status = ?, rejection_reason = ?, decided_at = ?, updated_at = ? WHERE id = ?`,
		string(status), reason, ts, ts, id,
	)
	if err != nil {
		return fmt.Errorf("set pending approval %d to %s: %w", id, status, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status for pending approval %d: %w", id, err)
	}

	return nil
}

// Approve marks an open row approved with its final edits and records the
// completed review in the same transaction.
func (r *PendingRepo) Approve(ctx context.Context, id int64, edits model.PendingEdits, review model.CompletedReview) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	if err := requireOpen(ctx, tx, id); err != nil {
		return err
	}

	if err := writeEdits(ctx, tx, id, edits); err != nil {
		return err
	}

	ts := now()
	_, err = tx.ExecContext(ctx,
		`UPDATE pending_approvals SET status = 'approved', decided_at = ?, updated_at = ? WHERE id = ?`,
		ts, ts, id,
	)
	if err != nil {
		return fmt.Errorf("approve pending approval %d: %w", id, err)
	}

	review.PendingID = id
	review.Source = model.ReviewSourceHuman
	if review.ReviewedAt.IsZero() {
		review.ReviewedAt = ts
	}
	if _, err := insertCompletedReview(ctx, tx, review); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit approval of pending approval %d: %w", id, err)
	}

	return nil
}

// requireOpen fails with ErrNotFound or ErrInvalidTransition unless the row
// exists and is still pending.
func requireOpen(ctx context.Context, tx *sql.Tx, id int64) error {
	var status string
	err := tx.QueryRowContext(ctx, `SELECT status FROM pending_approvals WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("pending approval %d: %w", id, driven.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read status of pending approval %d: %w", id, err)
	}

	if model.PendingStatus(status) != model.PendingStatusPending {
		return fmt.Errorf("pending approval %d is %s: %w", id, status, driven.ErrInvalidTransition)
	}

	return nil
}

func writeEdits(ctx context.Context, tx *sql.Tx, id int64, edits model.PendingEdits) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE pending_approvals SET edited_comment = ?, edited_summary = ?, annotations_edited = ?, updated_at = ? WHERE id = ?`,
		nullString(edits.Comment), nullString(edits.Summary), boolToInt(edits.AnnotationsEdited), now(), id,
	)
	if err != nil {
		return fmt.Errorf("save edits for pending approval %d: %w", id, err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM pending_annotations WHERE approval_id = ? AND kind = ?`, id, annotationKindEdited,
	)
	if err != nil {
		return fmt.Errorf("clear edited annotations of pending approval %d: %w", id, err)
	}

	if !edits.AnnotationsEdited {
		return nil
	}

	return insertPendingAnnotations(ctx, tx, id, annotationKindEdited, edits.Annotations)
}

func insertPendingAnnotations(ctx context.Context, db execer, approvalID int64, kind string, annotations []model.Annotation) error {
	const query = `
		INSERT INTO pending_annotations (approval_id, kind, position, file_path, line, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for i, a := range annotations {
		if _, err := db.ExecContext(ctx, query, approvalID, kind, i, a.File, a.Line, a.Message); err != nil {
			return fmt.Errorf("insert %s annotation %d for pending approval %d: %w", kind, i, approvalID, err)
		}
	}
	return nil
}

func (r *PendingRepo) getOne(ctx context.Context, query string, args ...any) (*model.PendingApproval, error) {
	item, err := scanPending(r.db.Reader.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending approval: %w", err)
	}

	items := []model.PendingApproval{*item}
	if err := loadPendingAnnotations(ctx, r.db.Reader, items); err != nil {
		return nil, err
	}

	return &items[0], nil
}

func (r *PendingRepo) list(ctx context.Context, query string, args ...any) ([]model.PendingApproval, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending approvals: %w", err)
	}
	defer rows.Close()

	items := []model.PendingApproval{}
	for rows.Next() {
		item, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending approval: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending approvals: %w", err)
	}

	if err := loadPendingAnnotations(ctx, r.db.Reader, items); err != nil {
		return nil, err
	}

	return items, nil
}

// loadPendingAnnotations fills proposed and edited annotations for every item in one query.
func loadPendingAnnotations(ctx context.Context, q querier, items []model.PendingApproval) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]int64, len(items))
	byID := make(map[int64]*model.PendingApproval, len(items))
	for i := range items {
		ids[i] = items[i].ID
		byID[items[i].ID] = &items[i]
	}

	query := `SELECT approval_id, kind, position, file_path, line, message
		FROM pending_annotations
		WHERE approval_id IN (` + placeholders(len(ids)) + `)
		ORDER BY approval_id, kind, position`

	rows, err := q.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("query pending annotations: %w", err)
	}

	annotations, err := scanAnnotationRows(rows, true)
	if err != nil {
		return err
	}

	for _, a := range annotations {
		item, ok := byID[a.ownerID]
		if !ok {
			continue
		}
		switch a.kind {
		case annotationKindProposed:
			item.Annotations = append(item.Annotations, a.Annotation)
		case annotationKindEdited:
			item.Edits.Annotations = append(item.Edits.Annotations, a.Annotation)
		}
	}

	return nil
}

func scanPending(s scanner) (*model.PendingApproval, error) {
	var p model.PendingApproval
	var verdict, status, createdAt, updatedAt string
	var editedComment, editedSummary, decidedAt sql.NullString
	var annotationsEdited int

	err := s.Scan(
		&p.ID, &p.RepoFullName, &p.PRNumber, &p.Title, &p.Author, &p.URL,
		&p.HeadSHA, &p.BaseSHA, &verdict, &p.Comment, &p.Summary, &p.Reason,
		&editedComment, &editedSummary, &annotationsEdited, &status,
		&p.RejectionReason, &createdAt, &updatedAt, &decidedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Verdict = model.VerdictKind(verdict)
	p.Status = model.PendingStatus(status)
	p.Edits.Comment = stringPtr(editedComment)
	p.Edits.Summary = stringPtr(editedSummary)
	p.Edits.AnnotationsEdited = annotationsEdited != 0
	if p.Edits.AnnotationsEdited {
		p.Edits.Annotations = []model.Annotation{}
	}

	p.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	p.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	p.DecidedAt, err = parseNullTime(decidedAt)
	if err != nil {
		return nil, fmt.Errorf("parse decided_at: %w", err)
	}

	return &p, nil
}
