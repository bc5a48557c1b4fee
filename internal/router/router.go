package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/storefront-backend/internal/config"
	"github.com/iliyamo/storefront-backend/internal/handler"
	"github.com/iliyamo/storefront-backend/internal/metrics"
	"github.com/iliyamo/storefront-backend/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication and
// sit outside the API base path: the health check and Prometheus metrics.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterAuth mounts the public credential routes under base + "/users".
func RegisterAuth(e *echo.Echo, base string, a *handler.AuthHandler) {
	g := e.Group(base + "/users")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
}

// RegisterUsers mounts the protected user routes.  Every route runs the
// access token gate; deletion additionally requires an administrator.
// The count route is served from the Redis response cache when rdb is
// available, keyed per caller.
func RegisterUsers(e *echo.Echo, base string, a *handler.AuthHandler, u *handler.UserHandler,
	v middleware.AccessVerifier, cacheCfg config.CacheConfig, rdb *redis.Client) {
	g := e.Group(base+"/users", middleware.JWTAuth(v))

	g.GET("", u.List)
	g.GET("/get/count", u.Count, middleware.NewRedisCache(cacheCfg, rdb))
	g.GET("/me", a.Me)
	g.GET("/:id", u.Get)
	g.DELETE("/:id", u.Delete, middleware.RequireAdmin())
}
