package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/PhilHem/go-totp-identity/backend/database"
	"github.com/PhilHem/go-totp-identity/backend/models"

	"github.com/stretchr/testify/require"
)

var implementations = map[string]func(t *testing.T) Store{
	"memory": func(t *testing.T) Store { return NewMemoryStore() },
	"gorm": func(t *testing.T) Store {
		db, err := database.Open(filepath.Join(t.TempDir(), "users.db"))
		require.NoError(t, err)
		return NewGormStore(db)
	},
}

func TestStore_InsertConflictIsCaseInsensitive(t *testing.T) {
	for name, newStore := range implementations {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			require.NoError(t, s.Insert(ctx, &models.User{Email: "a@x.com", Password: "p1"}))

			err := s.Insert(ctx, &models.User{Email: "A@X.COM", Password: "p2"})
			require.ErrorIs(t, err, ErrConflict)

			u, err := s.FindByEmail(ctx, "a@x.com")
			require.NoError(t, err)
			require.Equal(t, "p1", u.Password, "the original record must be untouched")
		})
	}
}

func TestStore_FindByEmailIsExact(t *testing.T) {
	for name, newStore := range implementations {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()
			require.NoError(t, s.Insert(ctx, &models.User{Email: "Mixed@x.com"}))

			_, err := s.FindByEmail(ctx, "mixed@x.com")
			require.ErrorIs(t, err, ErrNotFound)

			err = s.WithLock(ctx, func(tx Tx) error {
				u, err := tx.FindByEmailFold("MIXED@X.COM")
				if err != nil {
					return err
				}
				require.Equal(t, "Mixed@x.com", u.Email)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_UpdatePersistsOTPFields(t *testing.T) {
	for name, newStore := range implementations {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()
			require.NoError(t, s.Insert(ctx, &models.User{Email: "a@x.com"}))

			err := s.WithLock(ctx, func(tx Tx) error {
				u, err := tx.FindByEmail("a@x.com")
				if err != nil {
					return err
				}
				u.BeginEnrollment("JBSWY3DPEHPK3PXP")
				return tx.Update(u)
			})
			require.NoError(t, err)

			u, err := s.FindByEmail(ctx, "a@x.com")
			require.NoError(t, err)
			require.NotNil(t, u.OTPSecret)
			require.Equal(t, "JBSWY3DPEHPK3PXP", *u.OTPSecret)
			require.NotNil(t, u.OTPVerified)
			require.False(t, *u.OTPVerified)

			err = s.WithLock(ctx, func(tx Tx) error {
				u, err := tx.FindByEmail("a@x.com")
				if err != nil {
					return err
				}
				u.ClearOTP()
				return tx.Update(u)
			})
			require.NoError(t, err)

			u, err = s.FindByEmail(ctx, "a@x.com")
			require.NoError(t, err)
			require.Nil(t, u.OTPSecret)
			require.Nil(t, u.OTPVerified)
		})
	}
}

func TestStore_ChangesInvisibleWithoutUpdate(t *testing.T) {
	for name, newStore := range implementations {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()
			require.NoError(t, s.Insert(ctx, &models.User{Email: "a@x.com"}))

			u, err := s.FindByEmail(ctx, "a@x.com")
			require.NoError(t, err)
			u.BeginEnrollment("SECRET")

			again, err := s.FindByEmail(ctx, "a@x.com")
			require.NoError(t, err)
			require.Nil(t, again.OTPSecret)
		})
	}
}

func TestStore_WithLockPropagatesError(t *testing.T) {
	for name, newStore := range implementations {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			sentinel := errors.New("stop")
			err := s.WithLock(context.Background(), func(tx Tx) error { return sentinel })
			require.ErrorIs(t, err, sentinel)
		})
	}
}

func TestMemoryStore_ConcurrentInsertsOnlyOneWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Insert(ctx, &models.User{Email: "race@x.com"}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, 1, s.Len())
}

func TestMemoryStore_UpdateUnknownUser(t *testing.T) {
	s := NewMemoryStore()
	err := s.WithLock(context.Background(), func(tx Tx) error {
		return tx.Update(&models.User{Email: "ghost@x.com"})
	})
	require.ErrorIs(t, err, ErrNotFound)
}
