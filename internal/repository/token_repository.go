package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/storefront-backend/internal/model"
)

// TokenRepo persists refresh tokens in MySQL, keyed by token hash.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

const insertRefresh = "INSERT INTO refresh_tokens (token_hash, user_id, expires_at, revoked, created_at) VALUES (?,?,?,?,?)"

// Insert stores a new refresh token row.
func (r *TokenRepo) Insert(ctx context.Context, rec *model.RefreshToken) error {
	_, err := r.DB.ExecContext(ctx, insertRefresh,
		rec.TokenHash, rec.UserID, rec.ExpiresAt, rec.Revoked, rec.CreatedAt)
	return err
}

// FindByHash returns the row for tokenHash regardless of state.
func (r *TokenRepo) FindByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	rec := model.RefreshToken{TokenHash: tokenHash}
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked, created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&rec.UserID, &rec.ExpiresAt, &rec.Revoked, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Rotate revokes oldHash and inserts next in one transaction.  The revoke
// is a conditional update (revoked=0 -> 1, still unexpired at now); when it
// touches no row another caller won the rotation, or the token was never
// active, and ErrRefreshNotActive is returned with nothing written.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash string, next *model.RefreshToken, now time.Time) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rotate: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=1 WHERE token_hash=? AND revoked=0 AND expires_at>?",
		oldHash, now)
	if err != nil {
		return fmt.Errorf("revoke presented token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke presented token: %w", err)
	}
	if n != 1 {
		return ErrRefreshNotActive
	}
	if _, err := tx.ExecContext(ctx, insertRefresh,
		next.TokenHash, next.UserID, next.ExpiresAt, next.Revoked, next.CreatedAt); err != nil {
		return fmt.Errorf("insert successor token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rotate: %w", err)
	}
	committed = true
	return nil
}

// Revoke marks a token as revoked.  Unknown or already revoked hashes are
// not an error.
func (r *TokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=1 WHERE token_hash=? AND revoked=0",
		tokenHash)
	return err
}

// RevokeAllForUser revokes all user's active tokens.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked=1 WHERE user_id=? AND revoked=0",
		userID)
	return err
}
