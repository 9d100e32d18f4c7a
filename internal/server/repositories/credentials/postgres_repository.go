package credentials

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

func (r *PostgresRepository) Upsert(ctx context.Context, cred *models.Credential) error {

	query :=
		`INSERT INTO integration_credentials
		     (user_id, provider, access_token_enc, refresh_token_enc, expires_at, connected, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (user_id, provider) DO UPDATE SET
		     access_token_enc = EXCLUDED.access_token_enc,
		     refresh_token_enc = EXCLUDED.refresh_token_enc,
		     expires_at = EXCLUDED.expires_at,
		     connected = EXCLUDED.connected,
		     updated_at = now()
		 `

	_, err := r.db.ExecContext(ctx, query,
		cred.UserID, string(cred.Provider),
		nullString(cred.AccessTokenEnc), nullString(cred.RefreshTokenEnc),
		nullTime(cred.ExpiresAt), cred.Connected)

	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID string, provider models.Provider) (*models.Credential, error) {

	query :=
		`SELECT user_id, provider, access_token_enc, refresh_token_enc, expires_at, connected, last_sync_at, updated_at
		 FROM integration_credentials
		 WHERE user_id = $1 AND provider = $2
		 `

	cred := &models.Credential{}
	var accessEnc, refreshEnc sql.NullString
	var expiresAt, lastSyncAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, userID, string(provider)).Scan(
		&cred.UserID, &cred.Provider, &accessEnc, &refreshEnc,
		&expiresAt, &cred.Connected, &lastSyncAt, &cred.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	cred.AccessTokenEnc = accessEnc.String
	cred.RefreshTokenEnc = refreshEnc.String
	cred.ExpiresAt = expiresAt.Time
	cred.LastSyncAt = lastSyncAt.Time

	return cred, nil
}

func (r *PostgresRepository) Clear(ctx context.Context, userID string, provider models.Provider) error {

	query :=
		`UPDATE integration_credentials SET
		     access_token_enc = NULL,
		     refresh_token_enc = NULL,
		     expires_at = NULL,
		     connected = FALSE,
		     updated_at = now()
		 WHERE user_id = $1 AND provider = $2
		 `

	_, err := r.db.ExecContext(ctx, query, userID, string(provider))
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) SetLastSync(ctx context.Context, userID string, provider models.Provider, t time.Time) error {

	query :=
		`UPDATE integration_credentials SET last_sync_at = $3, updated_at = now()
		 WHERE user_id = $1 AND provider = $2
		 `

	_, err := r.db.ExecContext(ctx, query, userID, string(provider), t)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListConnected(ctx context.Context, userID string) ([]models.Provider, error) {

	query :=
		`SELECT provider FROM integration_credentials
		 WHERE user_id = $1 AND connected = TRUE
		 ORDER BY provider
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	var providers []models.Provider
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		providers = append(providers, models.Provider(p))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return providers, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
