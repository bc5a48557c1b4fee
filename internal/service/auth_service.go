package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/storefront-backend/internal/metrics"
	"github.com/iliyamo/storefront-backend/internal/model"
	"github.com/iliyamo/storefront-backend/internal/repository"
	"github.com/iliyamo/storefront-backend/internal/utils"
)

// UserStore is the identity persistence contract.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
}

// RegisterInput is the registration payload.  IsAdmin is not part of it:
// the role flag comes from configuration, never from the client.
type RegisterInput struct {
	Name      string
	Email     string
	Password  string
	Phone     string
	Street    string
	Apartment string
	Zip       string
	City      string
	Country   string
}

// IdentitySummary is all registration returns.
type IdentitySummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// TokenPair is the wire result of login and refresh.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// AuthOptions tunes an AuthService.  Zero values pick production defaults.
type AuthOptions struct {
	BcryptCost             int
	IsAdminEmail           func(email string) bool
	RefreshReuseRevokesAll bool
	Events                 EventPublisher
	Logger                 echo.Logger
	Now                    func() time.Time
}

// AuthService runs the register -> login -> refresh -> logout lifecycle.
// It holds no mutable state; concurrent refreshes of one secret are
// serialised by the refresh repository's conditional revoke.
type AuthService struct {
	users  UserStore
	tokens *RefreshTokenStore
	issuer *utils.TokenIssuer

	cost            int
	isAdminEmail    func(string) bool
	reuseRevokesAll bool
	events          EventPublisher
	log             echo.Logger
	now             func() time.Time

	// dummyHash is compared against on unknown-email logins so both
	// failure paths spend one bcrypt comparison.
	dummyHash string
}

// NewAuthService wires the rotation engine.
func NewAuthService(users UserStore, tokens *RefreshTokenStore, issuer *utils.TokenIssuer, opts AuthOptions) (*AuthService, error) {
	s := &AuthService{
		users:           users,
		tokens:          tokens,
		issuer:          issuer,
		cost:            opts.BcryptCost,
		isAdminEmail:    opts.IsAdminEmail,
		reuseRevokesAll: opts.RefreshReuseRevokesAll,
		events:          opts.Events,
		log:             opts.Logger,
		now:             opts.Now,
	}
	if s.cost == 0 {
		s.cost = 12
	}
	if s.isAdminEmail == nil {
		s.isAdminEmail = func(string) bool { return false }
	}
	if s.events == nil {
		s.events = NoopPublisher{}
	}
	if s.log == nil {
		s.log = log.New("auth")
	}
	if s.now == nil {
		s.now = time.Now
	}
	h, err := utils.HashPassword(uuid.NewString(), s.cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	s.dummyHash = h
	return s, nil
}

// Register creates a standard (or configured admin) identity.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*IdentitySummary, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: invalid email", ErrValidation)
	}

	hash, err := utils.HashPassword(in.Password, s.cost)
	if err != nil {
		if errors.Is(err, utils.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password too long", ErrValidation)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: hash,
		Phone:        strings.TrimSpace(in.Phone),
		IsAdmin:      s.isAdminEmail(email),
		Street:       in.Street,
		Apartment:    in.Apartment,
		Zip:          in.Zip,
		City:         in.City,
		Country:      in.Country,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			metrics.ObserveAuth("register", "duplicate")
			return nil, fmt.Errorf("%w: email already registered", ErrValidation)
		}
		return nil, fmt.Errorf("%w: create user: %v", ErrStoreUnavailable, err)
	}

	metrics.ObserveAuth("register", "ok")
	s.publish(ctx, model.EventUserRegistered, u.ID)
	return &IdentitySummary{ID: u.ID, Email: u.Email}, nil
}

// Login checks email/password and issues an access/refresh pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.VerifyPassword(s.dummyHash, password)
			metrics.ObserveAuth("login", "unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: load user: %v", ErrStoreUnavailable, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		metrics.ObserveAuth("login", "bad_password")
		return nil, ErrInvalidCredentials
	}

	access, err := s.issuer.Issue(u.ID, u.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	secret, rec, err := s.tokens.Issue(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: issue refresh token: %v", ErrStoreUnavailable, err)
	}

	metrics.ObserveAuth("login", "ok")
	s.publish(ctx, model.EventUserLoggedIn, u.ID)
	return &TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     secret,
		AccessExpiresAt:  access.Exp,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// Refresh exchanges a refresh secret for a new pair.  The presented record
// is revoked and its successor stored in one repository step, so the same
// secret rotates at most once.
func (s *AuthService) Refresh(ctx context.Context, secret string) (*TokenPair, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: refresh token required", ErrValidation)
	}

	rec, err := s.tokens.Lookup(ctx, secret)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			metrics.ObserveAuth("refresh", "unknown")
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: lookup refresh token: %v", ErrStoreUnavailable, err)
	}
	if rec.Revoked {
		s.onReplay(ctx, rec)
		return nil, ErrInvalidToken
	}
	if rec.ExpiredAt(s.now()) {
		metrics.ObserveAuth("refresh", "expired")
		return nil, ErrTokenExpired
	}

	u, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Owner is gone: the record can never be used again.
			_ = s.tokens.Revoke(ctx, secret)
			metrics.ObserveAuth("refresh", "orphaned")
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: load user: %v", ErrStoreUnavailable, err)
	}

	access, err := s.issuer.Issue(u.ID, u.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	next, nextRec, err := s.tokens.Rotate(ctx, rec)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshNotActive) {
			metrics.ObserveAuth("refresh", "lost_race")
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: rotate refresh token: %v", ErrStoreUnavailable, err)
	}

	metrics.ObserveAuth("refresh", "ok")
	s.publish(ctx, model.EventSessionRotated, u.ID)
	return &TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     next,
		AccessExpiresAt:  access.Exp,
		RefreshExpiresAt: nextRec.ExpiresAt,
	}, nil
}

// onReplay handles a rotated or logged-out secret being presented again.
// By default only the attempt is recorded; with RefreshReuseRevokesAll
// every refresh record of the owner is revoked as well.
func (s *AuthService) onReplay(ctx context.Context, rec *model.RefreshToken) {
	metrics.ObserveAuth("refresh", "replayed")
	s.log.Warnj(log.JSON{"event": model.EventRefreshReplayed, "user_id": rec.UserID})
	if s.reuseRevokesAll {
		if err := s.tokens.RevokeAllForUser(ctx, rec.UserID); err != nil {
			s.log.Errorf("revoke sessions after replay for user %s: %v", rec.UserID, err)
		}
	}
	s.publish(ctx, model.EventRefreshReplayed, rec.UserID)
}

// Logout revokes the record for secret.  It reports success whether or
// not such a record existed.
func (s *AuthService) Logout(ctx context.Context, secret string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return fmt.Errorf("%w: refresh token required", ErrValidation)
	}
	// Best effort: only a record that was still unrevoked produces an event.
	rec, lookupErr := s.tokens.Lookup(ctx, secret)
	if err := s.tokens.Revoke(ctx, secret); err != nil {
		return fmt.Errorf("%w: revoke refresh token: %v", ErrStoreUnavailable, err)
	}
	metrics.ObserveAuth("logout", "ok")
	if lookupErr == nil && !rec.Revoked {
		s.publish(ctx, model.EventSessionRevoked, rec.UserID)
	}
	return nil
}

func (s *AuthService) publish(ctx context.Context, typ, userID string) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if err := s.events.Publish(pctx, NewAuthEvent(typ, userID, s.now())); err != nil {
		s.log.Warnf("publish %s: %v", typ, err)
	}
}
