package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/storefront-backend/internal/config"
	"github.com/iliyamo/storefront-backend/internal/database"
	"github.com/iliyamo/storefront-backend/internal/handler"
	"github.com/iliyamo/storefront-backend/internal/metrics"
	"github.com/iliyamo/storefront-backend/internal/queue"
	"github.com/iliyamo/storefront-backend/internal/repository"
	"github.com/iliyamo/storefront-backend/internal/router"
	"github.com/iliyamo/storefront-backend/internal/service"
	"github.com/iliyamo/storefront-backend/internal/utils"
)

func main() {
	e := echo.New()
	e.HideBanner = true

	cfg, err := config.Load()
	if err != nil {
		e.Logger.Fatalf("config: %v", err)
	}
	e.Logger.SetLevel(logLevel(cfg.LogLevel))

	metrics.Init()
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(echomw.BodyLimit("50M"))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			c.Logger().Infof("%s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))
	e.Use(metrics.Instrument())

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		e.Logger.Fatalf("database: %v", err)
	}
	defer db.Close()
	if cfg.MigrateOnStart {
		mctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := database.Migrate(mctx, db)
		cancel()
		if err != nil {
			e.Logger.Fatalf("migrate: %v", err)
		}
	}

	// Redis is optional: without it caching is off and refresh records stay in MySQL.
	rdb := config.NewRedisClient()
	if rdb == nil {
		e.Logger.Warn("redis unavailable; response cache disabled")
	} else {
		defer rdb.Close()
	}

	var refreshRepo service.RefreshRepository = repository.NewTokenRepo(db)
	if cfg.RefreshStore == config.StoreRedis {
		if rdb != nil {
			refreshRepo = repository.NewRedisTokenRepo(rdb, "auth", cfg.RefreshTTL)
		} else {
			e.Logger.Warn("REFRESH_STORE=redis but redis is unavailable; using mysql")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events service.EventPublisher = service.NoopPublisher{}
	if cfg.EventsEnabled {
		events = service.NewAMQPPublisher(cfg.RabbitMQURL, e.Logger)
		go func() {
			if err := queue.StartAuthEventConsumer(ctx, cfg.RabbitMQURL, e.Logger); err != nil && !errors.Is(err, context.Canceled) {
				e.Logger.Errorf("auth-consumer stopped: %v", err)
			}
		}()
	}

	issuer := utils.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTTL)
	users := repository.NewUserRepo(db)
	tokens := service.NewRefreshTokenStore(refreshRepo, cfg.RefreshTTL, nil)
	authSvc, err := service.NewAuthService(users, tokens, issuer, service.AuthOptions{
		BcryptCost:             cfg.BcryptCost,
		IsAdminEmail:           cfg.IsAdminEmail,
		RefreshReuseRevokesAll: cfg.RefreshReuseRevokesAll,
		Events:                 events,
		Logger:                 e.Logger,
	})
	if err != nil {
		e.Logger.Fatalf("auth service: %v", err)
	}
	userSvc := service.NewUserService(users, tokens)

	authH := handler.NewAuthHandler(authSvc)
	userH := handler.NewUserHandler(userSvc)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, cfg.APIURL, authH)
	router.RegisterUsers(e, cfg.APIURL, authH, userH, issuer, config.LoadCacheConfig(), rdb)

	addr := ":" + cfg.Port
	go func() {
		e.Logger.Infof("listening on %s (env=%s, refresh store=%s)", addr, cfg.Env, cfg.RefreshStore)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Errorf("shutdown: %v", err)
	}
}

func logLevel(s string) log.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}
