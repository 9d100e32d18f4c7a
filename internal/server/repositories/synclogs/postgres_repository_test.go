package synclogs

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/devlens/devlens/internal/common"
	"github.com/devlens/devlens/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewPostgresRepository(db)
	started := time.Now()

	mock.ExpectExec("INSERT INTO sync_logs").
		WithArgs("id-1", "u1", "github", "syncing", 0, started).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = r.Create(context.Background(), &models.SyncLog{
		ID:        "id-1",
		UserID:    "u1",
		Provider:  models.ProviderGitHub,
		Status:    models.SyncStatusSyncing,
		StartedAt: started,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_GuardsFinishedEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewPostgresRepository(db)
	done := time.Now()

	// the WHERE clause skips entries that already completed; zero rows
	// affected is not an error
	mock.ExpectExec("UPDATE sync_logs SET").
		WithArgs("id-1", "success", 7, "", int64(1500), done).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = r.Complete(context.Background(), "id-1", models.SyncStatusSuccess, 7, "", 1500*time.Millisecond, done)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLatest_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewPostgresRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM sync_logs").
		WithArgs("u1", "notion").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = r.Latest(context.Background(), "u1", models.ProviderNotion)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewPostgresRepository(db)
	started := time.Now()
	completed := started.Add(time.Second)

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "provider", "status", "items_synced",
		"error_message", "duration_ms", "started_at", "completed_at",
	}).
		AddRow("id-2", "u1", "github", "failed", 0, "502", int64(900), started, completed).
		AddRow("id-1", "u1", "github", "success", 3, "", int64(1200), started.Add(-time.Hour), completed.Add(-time.Hour))

	mock.ExpectQuery("SELECT (.+) FROM sync_logs").
		WithArgs("u1", "github", 10).
		WillReturnRows(rows)

	entries, err := r.ListRecent(context.Background(), "u1", models.ProviderGitHub, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.SyncStatusFailed, entries[0].Status)
	require.NotNil(t, entries[0].CompletedAt)
	assert.Equal(t, 3, entries[1].ItemsSynced)
}
