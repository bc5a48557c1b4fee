package repository

// This file provides a Redis-backed refresh token repository.  Each record
// lives in a hash at <prefix>:rt:<token_hash> and each user has a set of
// their token hashes for bulk revocation.  Every state change that needs a
// compare-and-set runs as a Lua script so Redis executes it as one step.

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/storefront-backend/internal/model"
)

var insertScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 1 then
		return 0
	end
	redis.call('HSET', KEYS[1], 'user_id', ARGV[1], 'expires_at', ARGV[2], 'revoked', '0', 'created_at', ARGV[3])
	redis.call('PEXPIREAT', KEYS[1], ARGV[4])
	redis.call('SADD', KEYS[2], ARGV[5])
	redis.call('PEXPIREAT', KEYS[2], ARGV[4])
	return 1
`)

var rotateScript = redis.NewScript(`
	local st = redis.call('HMGET', KEYS[1], 'revoked', 'expires_at', 'user_id')
	if not st[1] or st[1] ~= '0' then
		return 0
	end
	if tonumber(st[2]) <= tonumber(ARGV[1]) then
		return 0
	end
	if st[3] ~= ARGV[2] then
		return 0
	end
	if redis.call('EXISTS', KEYS[2]) == 1 then
		return -1
	end
	redis.call('HSET', KEYS[1], 'revoked', '1')
	redis.call('HSET', KEYS[2], 'user_id', ARGV[2], 'expires_at', ARGV[3], 'revoked', '0', 'created_at', ARGV[4])
	redis.call('PEXPIREAT', KEYS[2], ARGV[5])
	redis.call('SADD', KEYS[3], ARGV[6])
	redis.call('PEXPIREAT', KEYS[3], ARGV[5])
	return 1
`)

var revokeScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 1 then
		redis.call('HSET', KEYS[1], 'revoked', '1')
		return 1
	end
	return 0
`)

var revokeAllScript = redis.NewScript(`
	local members = redis.call('SMEMBERS', KEYS[1])
	local n = 0
	for _, h in ipairs(members) do
		local k = ARGV[1] .. h
		if redis.call('EXISTS', k) == 1 then
			redis.call('HSET', k, 'revoked', '1')
			n = n + 1
		end
	end
	return n
`)

// RedisTokenRepo stores refresh tokens in Redis.  Records are kept for
// retention past their expiry so a replayed, rotated token is still
// recognised as revoked rather than unknown.
type RedisTokenRepo struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
}

// NewRedisTokenRepo builds a repository using keys under prefix.
func NewRedisTokenRepo(rdb *redis.Client, prefix string, retention time.Duration) *RedisTokenRepo {
	if prefix == "" {
		prefix = "auth"
	}
	return &RedisTokenRepo{rdb: rdb, prefix: prefix, retention: retention}
}

func (r *RedisTokenRepo) recordKey(hash string) string { return r.prefix + ":rt:" + hash }
func (r *RedisTokenRepo) userKey(uid string) string    { return r.prefix + ":rt:user:" + uid }

// Insert stores rec.  Inserting an existing hash is an error.
func (r *RedisTokenRepo) Insert(ctx context.Context, rec *model.RefreshToken) error {
	res, err := insertScript.Run(ctx, r.rdb,
		[]string{r.recordKey(rec.TokenHash), r.userKey(rec.UserID)},
		rec.UserID,
		rec.ExpiresAt.UnixMilli(),
		rec.CreatedAt.UnixMilli(),
		rec.ExpiresAt.Add(r.retention).UnixMilli(),
		rec.TokenHash,
	).Int()
	if err != nil {
		return err
	}
	if res != 1 {
		return fmt.Errorf("refresh token hash collision")
	}
	return nil
}

// FindByHash returns the record for tokenHash regardless of state.
func (r *RedisTokenRepo) FindByHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	m, err := r.rdb.HGetAll(ctx, r.recordKey(tokenHash)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	exp, err := strconv.ParseInt(m["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt expires_at: %w", err)
	}
	created, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt created_at: %w", err)
	}
	return &model.RefreshToken{
		TokenHash: tokenHash,
		UserID:    m["user_id"],
		ExpiresAt: time.UnixMilli(exp).UTC(),
		Revoked:   m["revoked"] == "1",
		CreatedAt: time.UnixMilli(created).UTC(),
	}, nil
}

// Rotate revokes oldHash and stores next atomically.  It fails with
// ErrRefreshNotActive unless oldHash is unrevoked, unexpired at now, and
// owned by next.UserID.
func (r *RedisTokenRepo) Rotate(ctx context.Context, oldHash string, next *model.RefreshToken, now time.Time) error {
	res, err := rotateScript.Run(ctx, r.rdb,
		[]string{r.recordKey(oldHash), r.recordKey(next.TokenHash), r.userKey(next.UserID)},
		now.UnixMilli(),
		next.UserID,
		next.ExpiresAt.UnixMilli(),
		next.CreatedAt.UnixMilli(),
		next.ExpiresAt.Add(r.retention).UnixMilli(),
		next.TokenHash,
	).Int()
	if err != nil {
		return err
	}
	switch res {
	case 1:
		return nil
	case -1:
		return fmt.Errorf("refresh token hash collision")
	default:
		return ErrRefreshNotActive
	}
}

// Revoke marks tokenHash revoked.  Unknown hashes are not an error.
func (r *RedisTokenRepo) Revoke(ctx context.Context, tokenHash string) error {
	return revokeScript.Run(ctx, r.rdb, []string{r.recordKey(tokenHash)}).Err()
}

// RevokeAllForUser revokes every stored token of userID.
func (r *RedisTokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	return revokeAllScript.Run(ctx, r.rdb, []string{r.userKey(userID)}, r.prefix+":rt:").Err()
}
