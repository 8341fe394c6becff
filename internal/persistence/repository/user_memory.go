package repository

import (
	"context"
	"sync"

	"github.com/hilthontt/huddle/internal/domain"
)

type memoryUserRepository struct {
	users map[string]domain.User // username -> User
	mu    sync.RWMutex
}

func NewMemoryUserRepository() UserStore {
	return &memoryUserRepository{users: make(map[string]domain.User)}
}

func (r *memoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" || user.Username == "" {
		return domain.ErrInvalidInput
	}

	key := domain.NormalizeUsername(user.Username)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[key]; exists {
		return domain.ErrUserAlreadyExists
	}
	r.users[key] = *user
	return nil
}

func (r *memoryUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[domain.NormalizeUsername(username)]
	if !exists {
		return nil, domain.ErrIdentityNotFound
	}
	return &user, nil
}

func (r *memoryUserRepository) Lookup(ctx context.Context, identifier string) (*domain.Identity, error) {
	user, err := r.GetByUsername(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return user.Identity(), nil
}
