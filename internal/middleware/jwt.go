package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "errors"   // sentinel errors for the gate
    "net/http" // HTTP status codes for responses
    "strings"  // header parsing

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/storefront-backend/internal/model"
)

// ErrMissingCredential means no usable bearer credential was sent.
var ErrMissingCredential = errors.New("missing bearer credential")

// AccessVerifier verifies access tokens.  *utils.TokenIssuer satisfies it.
type AccessVerifier interface {
    Verify(raw string) (*model.AccessClaims, error)
}

// bearerToken extracts the credential from an "Authorization: Bearer <t>"
// header.  The scheme is matched case-insensitively.
func bearerToken(header string) (string, error) {
    scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
    if !ok || !strings.EqualFold(scheme, "Bearer") {
        return "", ErrMissingCredential
    }
    token = strings.TrimSpace(token)
    if token == "" {
        return "", ErrMissingCredential
    }
    return token, nil
}

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects its claims into the request.  Verification is purely
// cryptographic: no store is consulted.  Handlers read the caller through
// ClaimsFrom, c.Get("user_id") or c.Get("is_admin").
func JWTAuth(v AccessVerifier) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw, err := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
            if err != nil {
                c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing or malformed authorization header"})
            }

            claims, err := v.Verify(raw)
            if err != nil {
                // Same answer for every failure kind; the kind goes to the log only.
                c.Logger().Debugf("access token rejected: %v", err)
                c.Response().Header().Set(echo.HeaderWWWAuthenticate, `Bearer error="invalid_token"`)
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
            }

            setClaims(c, claims)
            return next(c)
        }
    }
}
