package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/storefront-backend/internal/model"
	"github.com/iliyamo/storefront-backend/internal/repository"
)

// UserService backs the protected user CRUD routes.
type UserService struct {
	users  UserStore
	tokens *RefreshTokenStore
}

func NewUserService(users UserStore, tokens *RefreshTokenStore) *UserService {
	return &UserService{users: users, tokens: tokens}
}

// List returns all users.
func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", ErrStoreUnavailable, err)
	}
	return users, nil
}

// Count returns the number of users.
func (s *UserService) Count(ctx context.Context) (int64, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count users: %v", ErrStoreUnavailable, err)
	}
	return n, nil
}

// Get returns one user or ErrNotFound.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: load user: %v", ErrStoreUnavailable, err)
	}
	return u, nil
}

// Delete removes a user and revokes every refresh token they hold.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: delete user: %v", ErrStoreUnavailable, err)
	}
	if err := s.tokens.RevokeAllForUser(ctx, id); err != nil {
		return fmt.Errorf("%w: revoke sessions: %v", ErrStoreUnavailable, err)
	}
	return nil
}
