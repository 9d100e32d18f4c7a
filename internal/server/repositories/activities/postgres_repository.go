package activities

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/devlens/devlens/internal/dbx"
	"github.com/devlens/devlens/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) UpsertBatch(ctx context.Context, items []*models.Activity) (int, error) {

	query :=
		`INSERT INTO activities
		     (user_id, type, title, description, source, external_id, external_url, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id, external_id) DO NOTHING
		 `

	inserted := 0
	for _, a := range items {

		var metadata any
		if a.Metadata != nil {
			b, err := json.Marshal(a.Metadata)
			if err != nil {
				return inserted, fmt.Errorf("error marshaling metadata: %w", err)
			}
			metadata = b
		}

		createdAt := a.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		res, err := r.db.ExecContext(ctx, query,
			a.UserID, a.Type, a.Title, a.Description, string(a.Source),
			a.ExternalID, a.ExternalURL, metadata, createdAt)
		if err != nil {
			return inserted, fmt.Errorf("error performing sql request: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("error reading rows affected: %w", err)
		}
		inserted += int(n)
	}

	return inserted, nil
}

func (r *PostgresRepository) DeleteByProvider(ctx context.Context, userID string, provider models.Provider) error {

	query := `DELETE FROM activities WHERE user_id = $1 AND source = $2`

	_, err := r.db.ExecContext(ctx, query, userID, string(provider))
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Stats(ctx context.Context, userID string, since time.Time) (*Stats, error) {

	stats := &Stats{
		ByType:   make(map[string]int),
		BySource: make(map[string]int),
	}

	query :=
		`SELECT type, source, COUNT(*) FROM activities
		 WHERE user_id = $1 AND created_at >= $2
		 GROUP BY type, source
		 `

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var typ, source string
		var count int
		if err := rows.Scan(&typ, &source, &count); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		stats.ByType[typ] += count
		stats.BySource[source] += count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	dayQuery :=
		`SELECT to_char(created_at, 'YYYY-MM-DD') AS day, COUNT(*) AS n FROM activities
		 WHERE user_id = $1 AND created_at >= $2
		 GROUP BY day
		 ORDER BY n DESC, day DESC
		 LIMIT 1
		 `

	var n int
	err = r.db.QueryRowContext(ctx, dayQuery, userID, since).Scan(&stats.BusiestDay, &n)
	if err != nil && stats.Total > 0 {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	return stats, nil
}
