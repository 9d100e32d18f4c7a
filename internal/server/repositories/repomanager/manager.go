// Package repomanager wires repository constructors to a database handle.
// Repositories are bound per call, so the same manager serves both plain
// connections and transactions started via dbx.WithTx.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/devlens/devlens/internal/dbx"
	"github.com/devlens/devlens/internal/server/repositories/activities"
	"github.com/devlens/devlens/internal/server/repositories/credentials"
	"github.com/devlens/devlens/internal/server/repositories/notifications"
	"github.com/devlens/devlens/internal/server/repositories/synclogs"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Credentials(db dbx.DBTX) credentials.Repository
	Activities(db dbx.DBTX) activities.Repository
	SyncLogs(db dbx.DBTX) synclogs.Repository
	Notifications(db dbx.DBTX) notifications.Repository
}
