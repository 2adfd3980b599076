package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
)

// setupTestDB creates a named shared in-memory SQLite database for testing.
// Writer and reader connections share the same in-memory database via cache=shared.
// A unique name derived from t.Name() keeps tests isolated from each other.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Percent-encode the test name so subtest slashes cannot be read as
	// path separators or query parameters in the DSN.
	safeName := url.PathEscape(t.Name())
	// WAL mode is not applicable to in-memory databases; omit journal_mode pragma.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		safeName,
	)

	writer, err := sql.Open("sqlite", dsn)
	require.NoError(t, err, "open test db writer")
	writer.SetMaxOpenConns(1)
	require.NoError(t, writer.PingContext(context.Background()), "ping test db writer")

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("open test db reader: %v", err)
	}
	reader.SetMaxOpenConns(4)

	db := &DB{Writer: writer, Reader: reader, path: dsn}
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(db.Writer), "run migrations")

	return db
}

func makeCandidate(repo string, number int, head string) model.PendingApproval {
	return model.PendingApproval{
		RepoFullName: repo,
		PRNumber:     number,
		Title:        "Add widget",
		Author:       "alice",
		URL:          fmt.Sprintf("https://github.com/%s/pull/%d", repo, number),
		HeadSHA:      head,
		BaseSHA:      "base000",
		Verdict:      model.VerdictApproveWithComment,
		Comment:      "nit: rename var",
		Annotations: []model.Annotation{
			{File: "main.go", Line: 10, Message: "rename x"},
			{File: "util.go", Line: 3, Message: "unused import"},
		},
	}
}

func makeReview(repo string, number int, head string, verdict model.VerdictKind) model.CompletedReview {
	return model.CompletedReview{
		RepoFullName: repo,
		PRNumber:     number,
		HeadSHA:      head,
		BaseSHA:      "base000",
		Title:        "Add widget",
		Author:       "alice",
		Verdict:      verdict,
		Source:       model.ReviewSourceAutomated,
		ReviewedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func strPtr(s string) *string { return &s }
