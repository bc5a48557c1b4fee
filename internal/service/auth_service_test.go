package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/storefront-backend/internal/metrics"
	"github.com/iliyamo/storefront-backend/internal/model"
	"github.com/iliyamo/storefront-backend/internal/utils"
)

func TestRegister(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	out, err := e.auth.Register(ctx, RegisterInput{Name: "Ann", Email: "  Ann@Example.com ", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", out.Email)
	assert.NotEmpty(t, out.ID)

	u, err := e.userDB.GetByID(ctx, out.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "pw", u.PasswordHash)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "pw"))
	assert.False(t, u.IsAdmin)
	assert.Equal(t, []string{model.EventUserRegistered}, e.events.types())
}

func TestRegister_AdminFromConfigOnly(t *testing.T) {
	e := newEnv(t, nil)
	out, err := e.auth.Register(context.Background(), RegisterInput{Email: "boss@example.com", Password: "pw"})
	require.NoError(t, err)

	u, err := e.userDB.GetByID(context.Background(), out.ID)
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
}

func TestRegister_Validation(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	cases := []RegisterInput{
		{Email: "", Password: "pw"},
		{Email: "a@example.com", Password: ""},
		{Email: "not-an-email", Password: "pw"},
		{Email: "Ann <a@example.com>", Password: "pw"},
		{Email: "a@example.com", Password: strings.Repeat("p", 73)},
	}
	for _, in := range cases {
		_, err := e.auth.Register(ctx, in)
		assert.ErrorIs(t, err, ErrValidation, "%+v", in)
	}
	n, _ := e.userDB.Count(ctx)
	assert.Zero(t, n)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	_, err := e.auth.Register(ctx, RegisterInput{Email: "a@example.com", Password: "pw"})
	require.NoError(t, err)
	_, err = e.auth.Register(ctx, RegisterInput{Email: "A@example.com", Password: "other"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLogin(t *testing.T) {
	e := newEnv(t, nil)
	id, pair := e.registerAndLogin(t, "a@example.com", "pw")

	claims, err := e.issuer.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id.ID, claims.UserID)
	assert.False(t, claims.IsAdmin)
	assert.Equal(t, e.clock.Now().Add(accessTTL), pair.AccessExpiresAt)

	assert.Len(t, pair.RefreshToken, 2*utils.RefreshSecretBytes)
	rec := e.tokenDB.byHash(pair.RefreshToken)
	assert.Equal(t, id.ID, rec.UserID)
	assert.False(t, rec.Revoked)
	assert.Equal(t, e.clock.Now().Add(refreshTTL), rec.ExpiresAt)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	e := newEnv(t, nil)
	e.registerAndLogin(t, "a@example.com", "pw")
	ctx := context.Background()

	_, errUnknown := e.auth.Login(ctx, "nobody@example.com", "pw")
	_, errWrong := e.auth.Login(ctx, "a@example.com", "wrong")

	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())

	_, err := e.auth.Login(ctx, "", "pw")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRefresh_RotatesOnce(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	_, p1 := e.registerAndLogin(t, "a@example.com", "pw")

	p2, err := e.auth.Refresh(ctx, p1.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, p1.RefreshToken, p2.RefreshToken)
	assert.True(t, e.tokenDB.byHash(p1.RefreshToken).Revoked)
	assert.False(t, e.tokenDB.byHash(p2.RefreshToken).Revoked)

	_, err = e.auth.Refresh(ctx, p1.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// narrow replay policy: the successor stays usable
	p3, err := e.auth.Refresh(ctx, p2.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, p3.RefreshToken)

	assert.Contains(t, e.events.types(), model.EventRefreshReplayed)
	assert.Contains(t, e.events.types(), model.EventSessionRotated)
}

func TestRefresh_ReplayRevokesAll(t *testing.T) {
	e := newEnv(t, func(o *AuthOptions) { o.RefreshReuseRevokesAll = true })
	ctx := context.Background()
	_, p1 := e.registerAndLogin(t, "a@example.com", "pw")

	p2, err := e.auth.Refresh(ctx, p1.RefreshToken)
	require.NoError(t, err)

	_, err = e.auth.Refresh(ctx, p1.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = e.auth.Refresh(ctx, p2.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh_ReplayIsCounted(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	_, p1 := e.registerAndLogin(t, "a@example.com", "pw")

	before := testutil.ToFloat64(metrics.AuthCounter("refresh", "replayed"))
	_, err := e.auth.Refresh(ctx, p1.RefreshToken)
	require.NoError(t, err)
	_, _ = e.auth.Refresh(ctx, p1.RefreshToken)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.AuthCounter("refresh", "replayed")))
}

func TestRefresh_Expired(t *testing.T) {
	e := newEnv(t, nil)
	_, p1 := e.registerAndLogin(t, "a@example.com", "pw")

	e.clock.Advance(refreshTTL)
	_, err := e.auth.Refresh(context.Background(), p1.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh_JustBeforeExpiry(t *testing.T) {
	e := newEnv(t, nil)
	_, p1 := e.registerAndLogin(t, "a@example.com", "pw")

	e.clock.Advance(refreshTTL - time.Second)
	_, err := e.auth.Refresh(context.Background(), p1.RefreshToken)
	assert.NoError(t, err)
}

func TestRefresh_UnknownAndEmpty(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	_, err := e.auth.Refresh(ctx, strings.Repeat("ab", 64))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = e.auth.Refresh(ctx, "   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRefresh_ConcurrentSingleWinner(t *testing.T) {
	e := newEnv(t, nil)
	_, p1 := e.registerAndLogin(t, "a@example.com", "pw")

	const n = 20
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		losses int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.auth.Refresh(context.Background(), p1.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, ErrInvalidToken) {
				losses++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, losses)
}

func TestRefresh_OrphanedToken(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	id, p1 := e.registerAndLogin(t, "a@example.com", "pw")

	require.NoError(t, e.userDB.Delete(ctx, id.ID))
	_, err := e.auth.Refresh(ctx, p1.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.True(t, e.tokenDB.byHash(p1.RefreshToken).Revoked)
}

func TestRefresh_CarriesCurrentAdminFlag(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	id, p1 := e.registerAndLogin(t, "a@example.com", "pw")

	e.userDB.SetAdmin(id.ID, true)

	p2, err := e.auth.Refresh(ctx, p1.RefreshToken)
	require.NoError(t, err)
	claims, err := e.issuer.Verify(p2.AccessToken)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)
}

func TestLogout(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	_, p1 := e.registerAndLogin(t, "a@example.com", "pw")

	require.NoError(t, e.auth.Logout(ctx, p1.RefreshToken))
	_, err := e.auth.Refresh(ctx, p1.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// idempotent and silent for unknown secrets
	assert.NoError(t, e.auth.Logout(ctx, p1.RefreshToken))
	assert.NoError(t, e.auth.Logout(ctx, "unknown"))
	assert.ErrorIs(t, e.auth.Logout(ctx, ""), ErrValidation)

	assert.Contains(t, e.events.types(), model.EventSessionRevoked)
}

func TestLogout_EventOnlyForLiveSession(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	_, p1 := e.registerAndLogin(t, "a@example.com", "pw")

	revoked := func() int {
		n := 0
		for _, typ := range e.events.types() {
			if typ == model.EventSessionRevoked {
				n++
			}
		}
		return n
	}

	// a rotated secret is already dead: no revoke event
	p2, err := e.auth.Refresh(ctx, p1.RefreshToken)
	require.NoError(t, err)
	require.NoError(t, e.auth.Logout(ctx, p1.RefreshToken))
	assert.Zero(t, revoked())

	require.NoError(t, e.auth.Logout(ctx, p2.RefreshToken))
	assert.Equal(t, 1, revoked())

	// repeated logout stays silent
	require.NoError(t, e.auth.Logout(ctx, p2.RefreshToken))
	assert.Equal(t, 1, revoked())
}

func TestLogout_LeavesOtherSessions(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	_, p1 := e.registerAndLogin(t, "a@example.com", "pw")
	p2, err := e.auth.Login(ctx, "a@example.com", "pw")
	require.NoError(t, err)

	require.NoError(t, e.auth.Logout(ctx, p1.RefreshToken))
	_, err = e.auth.Refresh(ctx, p2.RefreshToken)
	assert.NoError(t, err)
}
