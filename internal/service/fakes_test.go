package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/storefront-backend/internal/model"
	"github.com/iliyamo/storefront-backend/internal/repository"
	"github.com/iliyamo/storefront-backend/internal/storetest"
	"github.com/iliyamo/storefront-backend/internal/utils"
)

// memRefresh is an in-memory RefreshRepository with the same conditional
// revoke semantics as the SQL and Redis backends.
type memRefresh struct {
	mu   sync.Mutex
	recs map[string]*model.RefreshToken
}

func newMemRefresh() *memRefresh { return &memRefresh{recs: map[string]*model.RefreshToken{}} }

func (m *memRefresh) Insert(_ context.Context, rec *model.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.recs[rec.TokenHash] = &cp
	return nil
}

func (m *memRefresh) FindByHash(_ context.Context, h string) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.recs[h]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memRefresh) Rotate(_ context.Context, oldHash string, next *model.RefreshToken, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.recs[oldHash]
	if !ok || old.Revoked || old.ExpiredAt(now) {
		return repository.ErrRefreshNotActive
	}
	old.Revoked = true
	cp := *next
	m.recs[next.TokenHash] = &cp
	return nil
}

func (m *memRefresh) Revoke(_ context.Context, h string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.recs[h]; ok {
		r.Revoked = true
	}
	return nil
}

func (m *memRefresh) RevokeAllForUser(_ context.Context, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.UserID == uid {
			r.Revoked = true
		}
	}
	return nil
}

func (m *memRefresh) byHash(secret string) model.RefreshToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.recs[utils.HashRefreshRaw(secret)]
}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []model.AuthEvent
}

func (r *recorder) Publish(_ context.Context, ev model.AuthEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

const (
	testSecret = "0123456789abcdef0123456789abcdef"
	accessTTL  = 15 * time.Minute
	refreshTTL = 7 * 24 * time.Hour
)

type env struct {
	auth    *AuthService
	users   *UserService
	userDB  *storetest.Users
	tokenDB *memRefresh
	issuer  *utils.TokenIssuer
	events  *recorder
	clock   *clock
}

func newEnv(t *testing.T, mutate func(*AuthOptions)) *env {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	users := storetest.NewUsers()
	refresh := newMemRefresh()
	issuer := utils.NewTokenIssuer(testSecret, accessTTL, utils.WithClock(clk.Now))
	store := NewRefreshTokenStore(refresh, refreshTTL, clk.Now)
	rec := &recorder{}

	logger := log.New("test")
	logger.SetOutput(io.Discard)

	opts := AuthOptions{
		BcryptCost:   bcrypt.MinCost,
		IsAdminEmail: func(e string) bool { return e == "boss@example.com" },
		Events:       rec,
		Logger:       logger,
		Now:          clk.Now,
	}
	if mutate != nil {
		mutate(&opts)
	}
	auth, err := NewAuthService(users, store, issuer, opts)
	require.NoError(t, err)

	return &env{
		auth:    auth,
		users:   NewUserService(users, store),
		userDB:  users,
		tokenDB: refresh,
		issuer:  issuer,
		events:  rec,
		clock:   clk,
	}
}

func (e *env) registerAndLogin(t *testing.T, email, password string) (*IdentitySummary, *TokenPair) {
	t.Helper()
	id, err := e.auth.Register(context.Background(), RegisterInput{Name: "Test", Email: email, Password: password})
	require.NoError(t, err)
	pair, err := e.auth.Login(context.Background(), email, password)
	require.NoError(t, err)
	return id, pair
}
