package middleware

// identity.go stores and reads the verified caller.  Claims are attached
// both to the echo context (for handlers) and to the request's
// context.Context (for code below the HTTP layer).

import (
    "context"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/storefront-backend/internal/model"
)

type claimsContextKey struct{}

const (
    ctxClaims  = "claims"
    ctxUserID  = "user_id"
    ctxIsAdmin = "is_admin"
)

func setClaims(c echo.Context, claims *model.AccessClaims) {
    c.Set(ctxClaims, claims)
    c.Set(ctxUserID, claims.UserID)
    c.Set(ctxIsAdmin, claims.IsAdmin)
    req := c.Request()
    c.SetRequest(req.WithContext(ContextWithClaims(req.Context(), claims)))
}

// ContextWithClaims attaches verified claims to ctx.
func ContextWithClaims(ctx context.Context, claims *model.AccessClaims) context.Context {
    return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext returns claims attached by the gate.
func ClaimsFromContext(ctx context.Context) (*model.AccessClaims, bool) {
    if ctx == nil {
        return nil, false
    }
    v, ok := ctx.Value(claimsContextKey{}).(*model.AccessClaims)
    return v, ok && v != nil
}

// ClaimsFrom returns the claims set by JWTAuth on c.
func ClaimsFrom(c echo.Context) (*model.AccessClaims, bool) {
    v, ok := c.Get(ctxClaims).(*model.AccessClaims)
    return v, ok && v != nil
}

// userID returns the caller's id or "anon" when unauthenticated.
func userID(c echo.Context) string {
    if cl, ok := ClaimsFrom(c); ok {
        return cl.UserID
    }
    return "anon"
}
