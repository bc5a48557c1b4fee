package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/storefront-backend/internal/model"
	"github.com/iliyamo/storefront-backend/internal/repository"
	"github.com/iliyamo/storefront-backend/internal/utils"
)

// RefreshRepository is the persistence contract for refresh records.
// Rotate must revoke oldHash and insert next as one atomic step and
// return repository.ErrRefreshNotActive when the conditional revoke fails.
type RefreshRepository interface {
	Insert(ctx context.Context, rec *model.RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	Rotate(ctx context.Context, oldHash string, next *model.RefreshToken, now time.Time) error
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// RefreshTokenStore issues, looks up, rotates and revokes refresh tokens.
// Raw secrets are returned to callers once and never persisted.
type RefreshTokenStore struct {
	repo RefreshRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewRefreshTokenStore wraps repo.  now defaults to time.Now.
func NewRefreshTokenStore(repo RefreshRepository, ttl time.Duration, now func() time.Time) *RefreshTokenStore {
	if now == nil {
		now = time.Now
	}
	return &RefreshTokenStore{repo: repo, ttl: ttl, now: now}
}

func (s *RefreshTokenStore) newRecord(userID string) (string, *model.RefreshToken, error) {
	secret, err := utils.NewRefreshSecret()
	if err != nil {
		return "", nil, fmt.Errorf("generate refresh secret: %w", err)
	}
	now := s.now().UTC()
	return secret, &model.RefreshToken{
		TokenHash: utils.HashRefreshRaw(secret),
		UserID:    userID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}, nil
}

// Issue persists a fresh record for userID and returns its raw secret.
func (s *RefreshTokenStore) Issue(ctx context.Context, userID string) (string, *model.RefreshToken, error) {
	secret, rec, err := s.newRecord(userID)
	if err != nil {
		return "", nil, err
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return "", nil, err
	}
	return secret, rec, nil
}

// Lookup returns the record for secret in whatever state it is in, or
// repository.ErrNotFound.
func (s *RefreshTokenStore) Lookup(ctx context.Context, secret string) (*model.RefreshToken, error) {
	return s.repo.FindByHash(ctx, utils.HashRefreshRaw(secret))
}

// LookupActive returns the record for secret only when it is neither
// revoked nor expired; otherwise (nil, nil).  It is the non-diagnostic
// view: Refresh uses Lookup instead so a replay is told apart from an
// unknown secret.
func (s *RefreshTokenStore) LookupActive(ctx context.Context, secret string) (*model.RefreshToken, error) {
	rec, err := s.Lookup(ctx, secret)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Revoked || rec.ExpiredAt(s.now()) {
		return nil, nil
	}
	return rec, nil
}

// Rotate revokes presented and issues its successor for the same user in
// one repository step.
func (s *RefreshTokenStore) Rotate(ctx context.Context, presented *model.RefreshToken) (string, *model.RefreshToken, error) {
	secret, next, err := s.newRecord(presented.UserID)
	if err != nil {
		return "", nil, err
	}
	if err := s.repo.Rotate(ctx, presented.TokenHash, next, s.now().UTC()); err != nil {
		return "", nil, err
	}
	return secret, next, nil
}

// Revoke marks the record for secret revoked.  Unknown secrets are ignored.
func (s *RefreshTokenStore) Revoke(ctx context.Context, secret string) error {
	return s.repo.Revoke(ctx, utils.HashRefreshRaw(secret))
}

// RevokeAllForUser revokes every record of userID.
func (s *RefreshTokenStore) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.repo.RevokeAllForUser(ctx, userID)
}
