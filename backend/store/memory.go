package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PhilHem/go-totp-identity/backend/models"
)

// MemoryStore keeps users in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.Mutex
	users  map[string]*models.User // keyed by lower-cased email
	order  []string
	nextID uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*models.User)}
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var found *models.User
	err := s.WithLock(ctx, func(tx Tx) error {
		u, err := tx.FindByEmail(email)
		found = u
		return err
	})
	return found, err
}

func (s *MemoryStore) Insert(ctx context.Context, u *models.User) error {
	return s.WithLock(ctx, func(tx Tx) error {
		return tx.Insert(u)
	})
}

func (s *MemoryStore) WithLock(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(memoryTx{s})
}

// Len returns the number of stored users.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

type memoryTx struct {
	s *MemoryStore
}

func (tx memoryTx) FindByEmail(email string) (*models.User, error) {
	u, ok := tx.s.users[strings.ToLower(email)]
	if !ok || u.Email != email {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	return u.Clone(), nil
}

func (tx memoryTx) FindByEmailFold(email string) (*models.User, error) {
	u, ok := tx.s.users[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	return u.Clone(), nil
}

func (tx memoryTx) Insert(u *models.User) error {
	key := strings.ToLower(u.Email)
	if _, exists := tx.s.users[key]; exists {
		return fmt.Errorf("%w: %s", ErrConflict, u.Email)
	}
	tx.s.nextID++
	now := time.Now()
	u.ID = tx.s.nextID
	u.CreatedAt = now
	u.UpdatedAt = now
	tx.s.users[key] = u.Clone()
	tx.s.order = append(tx.s.order, key)
	return nil
}

func (tx memoryTx) Update(u *models.User) error {
	key := strings.ToLower(u.Email)
	stored, ok := tx.s.users[key]
	if !ok || stored.Email != u.Email {
		return fmt.Errorf("%w: %s", ErrNotFound, u.Email)
	}
	u.UpdatedAt = time.Now()
	tx.s.users[key] = u.Clone()
	return nil
}
