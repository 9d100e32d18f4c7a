// Package tokenstore layers encryption and lifecycle handling over the
// credentials repository. Callers above it deal in plaintext TokenSets and
// never see ciphertext; callers below it (the repository) never see
// plaintext.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devlens/devlens/internal/common"
	"github.com/devlens/devlens/internal/logging"
	"github.com/devlens/devlens/internal/server/models"
	"github.com/devlens/devlens/internal/server/repositories/credentials"
)

// RefreshFunc exchanges a refresh token for a fresh TokenSet. It returns
// common.ErrRefreshUnsupported for providers without a refresh grant.
type RefreshFunc func(ctx context.Context, provider models.Provider, refreshToken string) (*models.TokenSet, error)

// Encryptor is anything that can seal and open per-user blobs.
type Encryptor interface {
	Encrypt(plaintext, userID string) (string, error)
	Decrypt(blob, userID string) (string, error)
}

// Store encrypts tokens on the way in and decrypts plus refreshes them on
// the way out.
type Store struct {
	repo credentials.Repository
	enc  Encryptor
	log  logging.Logger
	now  func() time.Time
}

func New(repo credentials.Repository, enc Encryptor, log logging.Logger) *Store {
	return &Store{repo: repo, enc: enc, log: log, now: time.Now}
}

// Store encrypts and persists tokens for (userID, provider), replacing any
// previous credential.
func (s *Store) Store(ctx context.Context, userID string, provider models.Provider, tokens *models.TokenSet) error {
	accessEnc, err := s.enc.Encrypt(tokens.AccessToken, userID)
	if err != nil {
		return fmt.Errorf("error encrypting access token: %w", err)
	}

	var refreshEnc string
	if tokens.RefreshToken != "" {
		refreshEnc, err = s.enc.Encrypt(tokens.RefreshToken, userID)
		if err != nil {
			return fmt.Errorf("error encrypting refresh token: %w", err)
		}
	}

	cred := &models.Credential{
		UserID:          userID,
		Provider:        provider,
		AccessTokenEnc:  accessEnc,
		RefreshTokenEnc: refreshEnc,
		ExpiresAt:       tokens.ExpiresAt,
		Connected:       true,
		UpdatedAt:       s.now(),
	}
	return s.repo.Upsert(ctx, cred)
}

// Get returns the decrypted tokens, or (nil, nil) when the provider is not
// connected. Decryption failure clears the unusable credential and reports
// reauth.
func (s *Store) Get(ctx context.Context, userID string, provider models.Provider) (*models.TokenSet, error) {
	cred, err := s.repo.Get(ctx, userID, provider)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !cred.Connected || cred.AccessTokenEnc == "" {
		return nil, nil
	}

	access, err := s.enc.Decrypt(cred.AccessTokenEnc, userID)
	if err != nil {
		s.log.Warn(ctx, "clearing undecryptable credential", "user_id", userID, "provider", provider)
		_ = s.repo.Clear(ctx, userID, provider)
		return nil, common.ErrReauthRequired
	}

	ts := &models.TokenSet{AccessToken: access, ExpiresAt: cred.ExpiresAt}
	if cred.RefreshTokenEnc != "" {
		refresh, err := s.enc.Decrypt(cred.RefreshTokenEnc, userID)
		if err != nil {
			s.log.Warn(ctx, "clearing undecryptable credential", "user_id", userID, "provider", provider)
			_ = s.repo.Clear(ctx, userID, provider)
			return nil, common.ErrReauthRequired
		}
		ts.RefreshToken = refresh
	}
	return ts, nil
}

// GetValid returns tokens ready for an API call, refreshing expired ones
// through refresh. An expired token that cannot be refreshed clears the
// credential and returns common.ErrReauthRequired.
func (s *Store) GetValid(ctx context.Context, userID string, provider models.Provider, refresh RefreshFunc) (*models.TokenSet, error) {
	ts, err := s.Get(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	if ts == nil {
		return nil, common.ErrNotConnected
	}

	if !ts.Expired(s.now()) {
		return ts, nil
	}

	if ts.RefreshToken == "" || refresh == nil {
		s.log.Info(ctx, "expired token without refresh path", "user_id", userID, "provider", provider)
		_ = s.repo.Clear(ctx, userID, provider)
		return nil, common.ErrReauthRequired
	}

	fresh, err := refresh(ctx, provider, ts.RefreshToken)
	if err != nil {
		s.log.Warn(ctx, "token refresh failed", "user_id", userID, "provider", provider, "error", err)
		_ = s.repo.Clear(ctx, userID, provider)
		return nil, common.ErrReauthRequired
	}

	// some providers rotate refresh tokens, others omit them on refresh
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = ts.RefreshToken
	}

	if err := s.Store(ctx, userID, provider, fresh); err != nil {
		return nil, fmt.Errorf("error storing refreshed tokens: %w", err)
	}

	s.log.Info(ctx, "token refreshed", "user_id", userID, "provider", provider)
	return fresh, nil
}

// Delete removes the credential entirely.
func (s *Store) Delete(ctx context.Context, userID string, provider models.Provider) error {
	return s.repo.Clear(ctx, userID, provider)
}

// IsConnected reports whether the user has a live credential for provider.
func (s *Store) IsConnected(ctx context.Context, userID string, provider models.Provider) (bool, error) {
	cred, err := s.repo.Get(ctx, userID, provider)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return cred.Connected && cred.AccessTokenEnc != "", nil
}

// ConnectedProviders lists the user's connected providers.
func (s *Store) ConnectedProviders(ctx context.Context, userID string) ([]models.Provider, error) {
	return s.repo.ListConnected(ctx, userID)
}

// MarkSynced records a successful sync completion time.
func (s *Store) MarkSynced(ctx context.Context, userID string, provider models.Provider) error {
	return s.repo.SetLastSync(ctx, userID, provider, s.now())
}
