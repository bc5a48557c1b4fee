package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/storefront-backend/internal/config"
)

// bodyRecorder tees the response to the client and into buf.  Once more
// than limit bytes are written the copy is abandoned.
type bodyRecorder struct {
	http.ResponseWriter
	status   int
	buf      bytes.Buffer
	limit    int64
	overflow bool
}

func (r *bodyRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *bodyRecorder) Write(b []byte) (int, error) {
	if !r.overflow {
		if r.limit > 0 && int64(r.buf.Len()+len(b)) > r.limit {
			r.overflow = true
			r.buf.Reset()
		} else {
			r.buf.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

// cachedResponse is what a hit replays.
type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

var errCorruptEntry = errors.New("corrupt cache entry")

// marshal packs: [4 bytes status][4 bytes header length][header JSON][body]
func (cr cachedResponse) marshal() ([]byte, error) {
	hdr, err := json.Marshal(cr.header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8, 8+len(hdr)+len(cr.body))
	binary.BigEndian.PutUint32(out[0:4], uint32(cr.status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdr)))
	out = append(out, hdr...)
	return append(out, cr.body...), nil
}

func unmarshalCached(bs []byte) (cachedResponse, error) {
	if len(bs) < 8 {
		return cachedResponse{}, errCorruptEntry
	}
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen > len(bs)-8 {
		return cachedResponse{}, errCorruptEntry
	}
	cr := cachedResponse{status: int(binary.BigEndian.Uint32(bs[0:4])), header: http.Header{}}
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &cr.header); err != nil {
			return cachedResponse{}, errCorruptEntry
		}
	}
	cr.body = bs[8+hlen:]
	return cr, nil
}

// responseCache stores successful responses in Redis.
type responseCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
	ttl time.Duration
}

// key builds <prefix>:<sha1 of the strategy parts>.
func (rc *responseCache) key(c echo.Context) string {
	r := c.Request()
	var parts []string
	switch strings.ToLower(rc.cfg.KeyStrategy) {
	case "route":
		parts = []string{"route", c.Path()}
	case "method_route":
		parts = []string{"method", r.Method, "route", c.Path()}
	case "method_route_query":
		parts = []string{"method", r.Method, "route", c.Path(), "q", r.URL.RawQuery}
	case "user_route_query":
		parts = []string{"user", userID(c), "route", c.Path(), "q", r.URL.RawQuery}
	default: // route_query
		parts = []string{"route", c.Path(), "q", r.URL.RawQuery}
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("%s:%x", rc.cfg.Prefix, sum[:])
}

func (rc *responseCache) replay(c echo.Context, cr cachedResponse) {
	h := c.Response().Header()
	for k, vals := range cr.header {
		// Content-Length is recomputed; X-Cache is set fresh.
		if strings.EqualFold(k, echo.HeaderContentLength) || strings.EqualFold(k, "X-Cache") {
			continue
		}
		for _, v := range vals {
			h.Add(k, v)
		}
	}
	h.Set("X-Cache", "HIT")
	c.Response().WriteHeader(cr.status)
	if len(cr.body) > 0 {
		_, _ = c.Response().Write(cr.body)
	}
}

func (rc *responseCache) store(key string, c echo.Context, rec *bodyRecorder) {
	if rec.status != http.StatusOK || rec.overflow {
		return
	}
	payload, err := cachedResponse{
		status: rec.status,
		header: c.Response().Header().Clone(),
		body:   rec.buf.Bytes(),
	}.marshal()
	if err != nil {
		return
	}
	if err := rc.rdb.SetEx(context.Background(), key, payload, rc.ttl).Err(); err != nil {
		c.Logger().Warnf("cache: store %s: %v", c.Path(), err)
	}
}

// NewRedisCache caches successful responses (headers + body) in Redis so a
// hit replays exactly what the handler produced.  Mount it after JWTAuth
// so only authenticated requests can read cached bodies.  With caching
// disabled or no client it is a pass-through.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	rc := &responseCache{cfg: cfg, rdb: rdb, ttl: cfg.TTL}
	if rc.ttl <= 0 {
		rc.ttl = 5 * time.Minute
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			key := rc.key(c)

			if bs, err := rdb.Get(c.Request().Context(), key).Bytes(); err == nil {
				if cr, err := unmarshalCached(bs); err == nil {
					rc.replay(c, cr)
					return nil
				}
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(cfg.MaxBodyBytes)}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			rc.store(key, c, rec)
			return nil
		}
	}
}
