package utils // package utils provides helpers for credential creation and hashing

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA‑256 hashing for refresh tokens
    "encoding/hex"  // hex encoding of secrets and digests
    "errors"        // sentinel verification errors
    "time"          // expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens

    "github.com/iliyamo/storefront-backend/internal/model"
)

// Access token verification failures.  Callers surface all of them as one
// coarse "invalid or expired token" answer; the kinds exist for logs and
// metrics.
var (
    ErrTokenMalformed    = errors.New("access token malformed")
    ErrTokenBadSignature = errors.New("access token signature invalid")
    ErrTokenExpired      = errors.New("access token expired")
)

// signingMethod is the only algorithm issued or accepted.
var signingMethod = jwt.SigningMethodHS256

// RefreshSecretBytes is the entropy of a refresh secret (512 bits, 128 hex chars).
const RefreshSecretBytes = 64

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// TokenIssuer signs and verifies access tokens with one process secret.
// It holds no mutable state and is safe for concurrent use.
type TokenIssuer struct {
    secret []byte
    ttl    time.Duration
    now    func() time.Time
}

// IssuerOption customises a TokenIssuer.
type IssuerOption func(*TokenIssuer)

// WithClock overrides the time source used for iat/exp and verification.
func WithClock(now func() time.Time) IssuerOption {
    return func(t *TokenIssuer) { t.now = now }
}

// NewTokenIssuer builds an issuer for the given secret and access token TTL.
func NewTokenIssuer(secret string, ttl time.Duration, opts ...IssuerOption) *TokenIssuer {
    t := &TokenIssuer{
        secret: []byte(secret),
        ttl:    ttl,
        now:    time.Now,
    }
    for _, o := range opts {
        o(t)
    }
    return t
}

// Issue builds and signs an HS256 JWT carrying {userID, isAdmin, iat, exp}.
func (t *TokenIssuer) Issue(userID string, isAdmin bool) (AccessToken, error) {
    now := t.now().UTC().Truncate(time.Second)
    exp := now.Add(t.ttl)
    claims := model.AccessClaims{
        UserID:  userID,
        IsAdmin: isAdmin,
        RegisteredClaims: jwt.RegisteredClaims{
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(t.secret)
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// Verify parses raw, checks the signature under the issuer's secret with the
// server-side algorithm allow-list, and rejects it at or after exp.
func (t *TokenIssuer) Verify(raw string) (*model.AccessClaims, error) {
    claims := &model.AccessClaims{}
    tok, err := jwt.ParseWithClaims(raw, claims,
        func(*jwt.Token) (any, error) { return t.secret, nil },
        jwt.WithValidMethods([]string{signingMethod.Alg()}),
        jwt.WithExpirationRequired(),
        jwt.WithTimeFunc(t.now),
    )
    if err != nil {
        switch {
        case errors.Is(err, jwt.ErrTokenMalformed):
            return nil, ErrTokenMalformed
        case errors.Is(err, jwt.ErrTokenExpired):
            return nil, ErrTokenExpired
        case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
            return nil, ErrTokenBadSignature
        default:
            return nil, ErrTokenMalformed
        }
    }
    if !tok.Valid || claims.UserID == "" {
        return nil, ErrTokenMalformed
    }
    return claims, nil
}

// NewRefreshSecret returns a hex-encoded random secret of RefreshSecretBytes bytes.
func NewRefreshSecret() (string, error) {
    return randomHex(RefreshSecretBytes)
}

// HashRefreshRaw returns the SHA‑256 hash of the raw refresh token as a hex
// string.  Only this digest is persisted.
func HashRefreshRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
