package synclogs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/devlens/devlens/internal/common"
	"github.com/devlens/devlens/internal/dbx"
	"github.com/devlens/devlens/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, user_id, provider, status, items_synced, COALESCE(error_message, ''), duration_ms, started_at, completed_at`

func (r *PostgresRepository) Create(ctx context.Context, entry *models.SyncLog) error {

	query :=
		`INSERT INTO sync_logs (id, user_id, provider, status, items_synced, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 `

	_, err := r.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, string(entry.Provider), string(entry.Status),
		entry.ItemsSynced, entry.StartedAt)

	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Complete(ctx context.Context, id string, status models.SyncStatus, items int, errorMessage string, duration time.Duration, completedAt time.Time) error {

	query :=
		`UPDATE sync_logs SET
		     status = $2,
		     items_synced = $3,
		     error_message = NULLIF($4, ''),
		     duration_ms = $5,
		     completed_at = $6
		 WHERE id = $1 AND completed_at IS NULL
		 `

	_, err := r.db.ExecContext(ctx, query,
		id, string(status), items, errorMessage, duration.Milliseconds(), completedAt)

	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListRecent(ctx context.Context, userID string, provider models.Provider, limit int) ([]*models.SyncLog, error) {

	query :=
		`SELECT ` + selectColumns + ` FROM sync_logs
		 WHERE user_id = $1 AND provider = $2
		 ORDER BY started_at DESC
		 LIMIT $3
		 `

	rows, err := r.db.QueryContext(ctx, query, userID, string(provider), limit)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	var entries []*models.SyncLog
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

func (r *PostgresRepository) Latest(ctx context.Context, userID string, provider models.Provider) (*models.SyncLog, error) {

	query :=
		`SELECT ` + selectColumns + ` FROM sync_logs
		 WHERE user_id = $1 AND provider = $2
		 ORDER BY started_at DESC
		 LIMIT 1
		 `

	return r.queryOne(ctx, query, userID, string(provider))
}

func (r *PostgresRepository) LastSuccessful(ctx context.Context, userID string, provider models.Provider) (*models.SyncLog, error) {

	query :=
		`SELECT ` + selectColumns + ` FROM sync_logs
		 WHERE user_id = $1 AND provider = $2 AND status = 'success'
		 ORDER BY started_at DESC
		 LIMIT 1
		 `

	return r.queryOne(ctx, query, userID, string(provider))
}

func (r *PostgresRepository) DeleteByProvider(ctx context.Context, userID string, provider models.Provider) error {

	query := `DELETE FROM sync_logs WHERE user_id = $1 AND provider = $2`

	_, err := r.db.ExecContext(ctx, query, userID, string(provider))
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.SyncLog, error) {
	row := r.db.QueryRowContext(ctx, query, args...)

	entry := &models.SyncLog{}
	var completedAt sql.NullTime

	err := row.Scan(&entry.ID, &entry.UserID, &entry.Provider, &entry.Status,
		&entry.ItemsSynced, &entry.ErrorMessage, &entry.DurationMS,
		&entry.StartedAt, &completedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	if completedAt.Valid {
		entry.CompletedAt = &completedAt.Time
	}

	return entry, nil
}

func scanEntry(rows *sql.Rows) (*models.SyncLog, error) {
	entry := &models.SyncLog{}
	var completedAt sql.NullTime

	err := rows.Scan(&entry.ID, &entry.UserID, &entry.Provider, &entry.Status,
		&entry.ItemsSynced, &entry.ErrorMessage, &entry.DurationMS,
		&entry.StartedAt, &completedAt)
	if err != nil {
		return nil, fmt.Errorf("error scanning row: %w", err)
	}

	if completedAt.Valid {
		entry.CompletedAt = &completedAt.Time
	}

	return entry, nil
}
