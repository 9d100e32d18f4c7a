package syncer

import (
	"context"
	"time"

	"github.com/devlens/devlens/internal/server/models"
)

// Batch is what one pipeline run produced: the unified activities to ingest
// plus the raw provider payload for optional archival.
type Batch struct {
	Activities []*models.Activity

	// Raw is the provider response material before transformation, kept
	// only long enough to archive.
	Raw []byte
}

// Pipeline fetches one provider's activity since the cursor and transforms
// it into unified records. Implementations classify their own errors into
// the providers taxonomy.
type Pipeline interface {
	Provider() models.Provider
	Run(ctx context.Context, userID, accessToken string, since time.Time) (*Batch, error)
}
