package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/PhilHem/go-totp-identity/backend/models"

	"gorm.io/gorm"
)

// GormStore keeps users in a SQL database. WithLock holds the process mutex
// and a transaction for the duration of fn.
type GormStore struct {
	mu sync.Mutex
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var found *models.User
	err := s.WithLock(ctx, func(tx Tx) error {
		u, err := tx.FindByEmail(email)
		found = u
		return err
	})
	return found, err
}

func (s *GormStore) Insert(ctx context.Context, u *models.User) error {
	return s.WithLock(ctx, func(tx Tx) error {
		return tx.Insert(u)
	})
}

func (s *GormStore) WithLock(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(gormTx{db})
	})
}

type gormTx struct {
	db *gorm.DB
}

func (tx gormTx) first(email, query string) (*models.User, error) {
	var u models.User
	err := tx.db.Where(query, email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, email)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (tx gormTx) FindByEmail(email string) (*models.User, error) {
	return tx.first(email, "email = ?")
}

func (tx gormTx) FindByEmailFold(email string) (*models.User, error) {
	return tx.first(email, "LOWER(email) = LOWER(?)")
}

func (tx gormTx) Insert(u *models.User) error {
	_, err := tx.FindByEmailFold(u.Email)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrConflict, u.Email)
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	return tx.db.Create(u).Error
}

func (tx gormTx) Update(u *models.User) error {
	if u.ID == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, u.Email)
	}
	return tx.db.Save(u).Error
}
