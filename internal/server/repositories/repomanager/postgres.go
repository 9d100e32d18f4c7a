// PostgresManager binds the postgres repository implementations, also
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/devlens/devlens/internal/dbx"
	"github.com/devlens/devlens/internal/server/migrations"
	"github.com/devlens/devlens/internal/server/repositories/activities"
	"github.com/devlens/devlens/internal/server/repositories/credentials"
	"github.com/devlens/devlens/internal/server/repositories/notifications"
	"github.com/devlens/devlens/internal/server/repositories/synclogs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresManager struct{}

func NewPostgresManager() *PostgresManager {
	return &PostgresManager{}
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against db.
func (m *PostgresManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("error setting goose dialect: %w", err)
	}

	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	return nil
}

func (m *PostgresManager) Credentials(db dbx.DBTX) credentials.Repository {
	return credentials.NewPostgresRepository(db)
}

func (m *PostgresManager) Activities(db dbx.DBTX) activities.Repository {
	return activities.NewPostgresRepository(db)
}

func (m *PostgresManager) SyncLogs(db dbx.DBTX) synclogs.Repository {
	return synclogs.NewPostgresRepository(db)
}

func (m *PostgresManager) Notifications(db dbx.DBTX) notifications.Repository {
	return notifications.NewPostgresRepository(db)
}

// Open opens a pgx-backed database handle for the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return db, nil
}
