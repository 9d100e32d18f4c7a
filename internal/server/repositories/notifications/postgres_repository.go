package notifications

import (
	"context"
	"database/sql"
	"encoding/json"
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

const selectColumns = `id, user_id, provider, type, severity, title, message, COALESCE(action_url, ''), read, metadata, created_at`

func (r *PostgresRepository) Create(ctx context.Context, n *models.Notification) error {

	query :=
		`INSERT INTO notifications
		     (id, user_id, provider, type, severity, title, message, action_url, read, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11)
		 `

	var metadata any
	if n.Metadata != nil {
		b, err := json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("error marshaling metadata: %w", err)
		}
		metadata = b
	}

	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.UserID, string(n.Provider), string(n.Type), string(n.Severity),
		n.Title, n.Message, n.ActionURL, n.Read, metadata, n.CreatedAt)

	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) FindRecentUnread(ctx context.Context, userID string, provider models.Provider, ntype models.NotificationType, since time.Time) (*models.Notification, error) {

	query :=
		`SELECT ` + selectColumns + ` FROM notifications
		 WHERE user_id = $1 AND provider = $2 AND type = $3 AND read = FALSE AND created_at >= $4
		 ORDER BY created_at DESC
		 LIMIT 1
		 `

	row := r.db.QueryRowContext(ctx, query, userID, string(provider), string(ntype), since)

	n, err := scanNotification(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	return n, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {

	query :=
		`SELECT ` + selectColumns + ` FROM notifications
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2
		 `

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	var result []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) MarkRead(ctx context.Context, userID, id string) error {

	query := `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND id = $2`

	_, err := r.db.ExecContext(ctx, query, userID, id)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) MarkAllRead(ctx context.Context, userID string) error {

	query := `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`

	_, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteByProvider(ctx context.Context, userID string, provider models.Provider) error {

	query := `DELETE FROM notifications WHERE user_id = $1 AND provider = $2`

	_, err := r.db.ExecContext(ctx, query, userID, string(provider))
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) UnreadCount(ctx context.Context, userID string) (int, error) {

	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`

	var count int
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error performing sql request: %w", err)
	}

	return count, nil
}

func scanNotification(scan func(dest ...any) error) (*models.Notification, error) {
	n := &models.Notification{}
	var metadata []byte

	err := scan(&n.ID, &n.UserID, &n.Provider, &n.Type, &n.Severity,
		&n.Title, &n.Message, &n.ActionURL, &n.Read, &metadata, &n.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
			return nil, fmt.Errorf("error unmarshaling metadata: %w", err)
		}
	}

	return n, nil
}
