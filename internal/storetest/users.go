// Package storetest provides in-memory stores for tests of the service and
// HTTP layers.
package storetest

import (
	"context"
	"strings"
	"sync"

	"github.com/iliyamo/storefront-backend/internal/model"
	"github.com/iliyamo/storefront-backend/internal/repository"
)

// Users is an in-memory user store with the repository's error contract:
// repository.ErrEmailExists on a duplicate email and repository.ErrNotFound
// on a missing id.  Records are copied in and out.
type Users struct {
	mu   sync.Mutex
	byID map[string]*model.User
}

func NewUsers() *Users { return &Users{byID: map[string]*model.User{}} }

func (m *Users) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *Users) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, x := range m.byID {
		if x.Email == email {
			cp := *x
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Users) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if x, ok := m.byID[id]; ok {
		cp := *x
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *Users) List(context.Context) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.User, 0, len(m.byID))
	for _, x := range m.byID {
		cp := *x
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Users) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.byID)), nil
}

func (m *Users) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// SetAdmin flips the role flag of a stored user, as an administrative
// update outside the credential core would.
func (m *Users) SetAdmin(id string, admin bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if x, ok := m.byID[id]; ok {
		x.IsAdmin = admin
	}
}
