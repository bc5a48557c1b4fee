package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "shop")
	t.Setenv("JWT_SECRET", strings.Repeat("s", MinSecretLen))
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIURL)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, StoreMySQL, cfg.RefreshStore)
	assert.False(t, cfg.RefreshReuseRevokesAll)
	assert.False(t, cfg.EventsEnabled)
	assert.True(t, cfg.MigrateOnStart)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("API_URL", "/shop/")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("REFRESH_TOKEN_TTL", "24h")
	t.Setenv("BCRYPT_COST", "10")
	t.Setenv("REFRESH_STORE", "Redis")
	t.Setenv("REFRESH_REUSE_REVOKES_ALL", "true")
	t.Setenv("ADMIN_EMAILS", " Boss@Example.com, ops@example.com ,")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://mq:5672/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/shop", cfg.APIURL)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, StoreRedis, cfg.RefreshStore)
	assert.True(t, cfg.RefreshReuseRevokesAll)
	assert.Equal(t, "amqp://mq:5672/", cfg.RabbitMQURL)

	assert.True(t, cfg.IsAdminEmail("boss@example.com"))
	assert.True(t, cfg.IsAdminEmail(" OPS@example.com"))
	assert.False(t, cfg.IsAdminEmail("someone@example.com"))
	assert.False(t, cfg.IsAdminEmail(""))
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	for _, k := range []string{"APP_PORT", "DB_USER", "DB_HOST", "DB_PORT", "DB_NAME", "JWT_SECRET"} {
		t.Setenv(k, "")
	}

	_, err := Load()
	require.Error(t, err)
	for _, k := range []string{"APP_PORT", "DB_USER", "DB_HOST", "DB_PORT", "DB_NAME", "JWT_SECRET"} {
		assert.Contains(t, err.Error(), k)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"short secret":  {"JWT_SECRET", "too-short"},
		"bcrypt cost":   {"BCRYPT_COST", "3"},
		"negative ttl":  {"ACCESS_TOKEN_TTL", "-1m"},
		"unknown store": {"REFRESH_STORE", "memcached"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_TTL", "10s")
	t.Setenv("CACHE_KEY_STRATEGY", "user_route_query")

	c := LoadCacheConfig()
	assert.True(t, c.Enabled)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
	assert.Equal(t, 10*time.Second, c.TTL)
	assert.Equal(t, "user_route_query", c.KeyStrategy)
	assert.Equal(t, 1<<20, c.MaxBodyBytes)
}

func TestLoadRedisConfig(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_TLS", "1")

	rc := LoadRedisConfig()
	assert.Equal(t, "cache:6380", rc.Addr)
	assert.Equal(t, 2, rc.DB)
	opts := rc.Options()
	require.NotNil(t, opts.TLSConfig)

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("REDIS_TLS", "")
	rc = LoadRedisConfig()
	assert.Equal(t, "redis:6379", rc.Addr)
	assert.Nil(t, rc.Options().TLSConfig)
}
