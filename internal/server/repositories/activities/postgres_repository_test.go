package activities

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/devlens/devlens/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertBatch_CountsOnlyNewRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewPostgresRepository(db)

	// first row inserts, second hits the conflict and is ignored
	mock.ExpectExec("INSERT INTO activities").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO activities").
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := r.UpsertBatch(context.Background(), []*models.Activity{
		{UserID: "u1", Type: models.ActivityCommit, Source: models.ProviderGitHub, ExternalID: "new"},
		{UserID: "u1", Type: models.ActivityCommit, Source: models.ProviderGitHub, ExternalID: "dup"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBatch_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewPostgresRepository(db)

	inserted, err := r.UpsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByProvider(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewPostgresRepository(db)

	mock.ExpectExec("DELETE FROM activities").
		WithArgs("u1", "notion").
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, r.DeleteByProvider(context.Background(), "u1", models.ProviderNotion))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewPostgresRepository(db)
	since := time.Now().AddDate(0, 0, -7)

	mock.ExpectQuery("SELECT type, source, COUNT").
		WithArgs("u1", since).
		WillReturnRows(sqlmock.NewRows([]string{"type", "source", "count"}).
			AddRow("commit", "github", 5).
			AddRow("meeting", "google_calendar", 2))

	mock.ExpectQuery("SELECT to_char").
		WithArgs("u1", since).
		WillReturnRows(sqlmock.NewRows([]string{"day", "n"}).AddRow("2025-06-05", 4))

	stats, err := r.Stats(context.Background(), "u1", since)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 5, stats.ByType["commit"])
	assert.Equal(t, 2, stats.BySource["google_calendar"])
	assert.Equal(t, "2025-06-05", stats.BusiestDay)
}
