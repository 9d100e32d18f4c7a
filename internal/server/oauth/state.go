package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/devlens/devlens/internal/common"
	"github.com/devlens/devlens/internal/server/kvstore"
	"github.com/devlens/devlens/internal/server/models"
)

// stateTTL bounds how long an OAuth flow may stay in flight.
const stateTTL = 10 * time.Minute

const stateKeyPrefix = "oauthstate:"

type statePayload struct {
	UserID   string          `json:"user_id"`
	Provider models.Provider `json:"provider"`
}

// StateManager issues and validates the single-use CSRF state tokens binding
// an OAuth flow to the (user, provider) that started it.
type StateManager struct {
	store kvstore.Store
}

func NewStateManager(store kvstore.Store) *StateManager {
	return &StateManager{store: store}
}

// Generate creates a cryptographically random state token tied to
// (userID, provider) for the next ten minutes.
func (s *StateManager) Generate(ctx context.Context, userID string, provider models.Provider) (string, error) {
	token, err := common.RandHexString(32)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(statePayload{UserID: userID, Provider: provider})
	if err != nil {
		return "", err
	}

	if err := s.store.Set(ctx, stateKeyPrefix+token, payload, stateTTL); err != nil {
		return "", fmt.Errorf("error storing state: %w", err)
	}

	return token, nil
}

// Validate reports whether token belongs to exactly (userID, provider) and is
// still live. The entry is consumed regardless of outcome, so a replay of a
// valid token fails the second time.
func (s *StateManager) Validate(ctx context.Context, token, userID string, provider models.Provider) bool {
	owner, p, err := s.Consume(ctx, token)
	if err != nil {
		return false
	}
	return owner == userID && p == provider
}

// Consume resolves and destroys a state token, returning the user and
// provider that started the flow. Used by the OAuth callback, which arrives
// as an unauthenticated browser redirect and has only the state to go on.
func (s *StateManager) Consume(ctx context.Context, token string) (string, models.Provider, error) {
	raw, err := s.store.GetDel(ctx, stateKeyPrefix+token)
	if err != nil {
		return "", "", common.ErrInvalidState
	}

	var payload statePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", "", common.ErrInvalidState
	}

	return payload.UserID, payload.Provider, nil
}
