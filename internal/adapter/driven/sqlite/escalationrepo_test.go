package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewgate/internal/domain/model"
	"github.com/ericfisherdev/reviewgate/internal/domain/port/driven"
)

func TestEscalationRepo_CreateGetList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEscalationRepo(db)
	ctx := context.Background()

	marker := model.Escalation{
		RepoFullName: "org/repo",
		PRNumber:     3,
		HeadSHA:      "ddd",
		Title:        "Payments refactor",
		Author:       "bob",
		Reason:       "payment logic",
	}
	require.NoError(t, repo.Create(ctx, marker))

	got, err := repo.Get(ctx, "org/repo", 3)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "payment logic", got.Reason)
	assert.Equal(t, "ddd", got.HeadSHA)
	assert.False(t, got.CreatedAt.IsZero())

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEscalationRepo_CreateTwiceIsAlreadyEscalated(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEscalationRepo(db)
	ctx := context.Background()

	marker := model.Escalation{RepoFullName: "org/repo", PRNumber: 3, HeadSHA: "ddd"}
	require.NoError(t, repo.Create(ctx, marker))

	marker.HeadSHA = "eee"
	err := repo.Create(ctx, marker)
	require.ErrorIs(t, err, driven.ErrAlreadyEscalated)
}

func TestEscalationRepo_ClearKeepsHistoryAndAllowsNewMarker(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEscalationRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, model.Escalation{RepoFullName: "org/repo", PRNumber: 3}))
	require.NoError(t, repo.Clear(ctx, "org/repo", 3))

	got, err := repo.Get(ctx, "org/repo", 3)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = repo.Clear(ctx, "org/repo", 3)
	require.ErrorIs(t, err, driven.ErrNotFound)

	require.NoError(t, repo.Create(ctx, model.Escalation{RepoFullName: "org/repo", PRNumber: 3, Reason: "again"}))

	var rows int
	require.NoError(t, db.Reader.QueryRow(`SELECT COUNT(*) FROM escalations`).Scan(&rows))
	assert.Equal(t, 2, rows)
}

func TestEscalationRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEscalationRepo(db)

	got, err := repo.Get(context.Background(), "org/repo", 42)
	require.NoError(t, err)
	assert.Nil(t, got)
}
