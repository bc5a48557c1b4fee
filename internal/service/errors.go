package service

import "errors"

// Error kinds returned by AuthService and UserService.  Handlers map them
// to HTTP statuses with errors.Is; wrapped causes are for logs only.
var (
	// ErrValidation covers bad or duplicate input (400).
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is returned for an unknown email and for a
	// wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound is returned by user lookups outside the login path.
	ErrNotFound = errors.New("not found")
	// ErrInvalidToken rejects a refresh secret that is unknown, revoked,
	// lost a concurrent rotation, or whose owner no longer exists.
	ErrInvalidToken = errors.New("invalid refresh token")
	// ErrTokenExpired rejects a refresh secret found past its expiry.
	ErrTokenExpired = errors.New("refresh token expired")
	// ErrStoreUnavailable wraps infrastructure failures (500).
	ErrStoreUnavailable = errors.New("store unavailable")
)
