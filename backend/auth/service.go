// Package auth implements registration, password sign-in and the TOTP second
// factor on top of the user store and the session layer.
//
// A session moves between three states: anonymous (no record), awaiting 2FA
// (record with signed_in=false) and signed in (signed_in=true). Whether a
// user has 2FA is a property of the user record, independent of the session.
//
// Every operation runs its whole body under the store lock, so a verify on a
// record cannot interleave with an enable or disable on the same record.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/PhilHem/go-totp-identity/backend/apperror"
	"github.com/PhilHem/go-totp-identity/backend/models"
	"github.com/PhilHem/go-totp-identity/backend/session"
	"github.com/PhilHem/go-totp-identity/backend/store"
)

type Service struct {
	users     store.Store
	sessions  session.Sessions
	otp       OTPEngine
	passwords PasswordScheme
	now       func() time.Time
	log       *slog.Logger
}

type Option func(*Service)

// WithPasswordScheme replaces the default plaintext scheme.
func WithPasswordScheme(p PasswordScheme) Option {
	return func(s *Service) { s.passwords = p }
}

// WithClock sets the time used to check OTP codes.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

func NewService(users store.Store, sessions session.Sessions, otp OTPEngine, opts ...Option) *Service {
	s := &Service{
		users:     users,
		sessions:  sessions,
		otp:       otp,
		passwords: Plaintext{},
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignInResult omits User while a second factor is pending.
type SignInResult struct {
	OTPVerificationRequired bool
	User                    *models.PublicUser
}

// VerifyResult reports a code check. A wrong code is Verified=false, not an error.
type VerifyResult struct {
	Verified bool
	User     *models.PublicUser
}

// locked runs fn under the store lock. Store failures outside the taxonomy
// become transport failures.
func (s *Service) locked(ctx context.Context, fn func(tx store.Tx) error) error {
	err := s.users.WithLock(ctx, fn)
	if err == nil || apperror.KindOf(err) != "" {
		return err
	}
	return apperror.Transport("Error accessing user store", err)
}

func (s *Service) writeSession(ctx context.Context, sid string, rec session.Record) error {
	if err := s.sessions.Store(ctx, sid, session.UserKey, rec); err != nil {
		return apperror.Transport("Error saving user into session", err)
	}
	return nil
}

func (s *Service) readSession(ctx context.Context, sid string) (*session.Record, error) {
	rec, err := s.sessions.Load(ctx, sid, session.UserKey)
	if err != nil {
		return nil, apperror.Transport("Error reading session", err)
	}
	if rec == nil {
		return nil, apperror.Unauthorized("No user found for the current session.")
	}
	return rec, nil
}

func findUser(tx store.Tx, email string) (*models.User, error) {
	u, err := tx.FindByEmail(email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NotFound("User with email %s does not exist.", email)
	}
	return u, err
}

// Register creates a user without 2FA and signs the session in.
func (s *Service) Register(ctx context.Context, sid, email, password string) (*models.PublicUser, error) {
	stored, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.Transport("Error storing password", err)
	}

	var view models.PublicUser
	err = s.locked(ctx, func(tx store.Tx) error {
		_, err := tx.FindByEmailFold(email)
		if err == nil {
			return apperror.Conflict("User with email %s exists.", email)
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		u := &models.User{Email: email, Password: stored}
		if err := tx.Insert(u); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return apperror.Conflict("User with email %s exists.", email)
			}
			return err
		}

		if err := s.writeSession(ctx, sid, session.Record{Email: u.Email, SignedIn: true}); err != nil {
			return err
		}
		view = u.Public()
		return nil
	})
	if err != nil {
		s.log.Warn("registration failed", "source", "auth", "email", email, "error", err.Error())
		return nil, err
	}

	s.log.Info("user registered", "source", "auth", "email", email)
	return &view, nil
}

// SignIn checks the password. Users with confirmed 2FA are left awaiting
// the second factor.
func (s *Service) SignIn(ctx context.Context, sid, email, password string) (*SignInResult, error) {
	var res SignInResult
	err := s.locked(ctx, func(tx store.Tx) error {
		u, err := findUser(tx, email)
		if err != nil {
			return err
		}
		if !s.passwords.Compare(u.Password, password) {
			return apperror.InvalidCredential("Invalid credential.")
		}

		res.OTPVerificationRequired = u.OTPEnabled()
		if err := s.writeSession(ctx, sid, session.Record{Email: u.Email, SignedIn: !res.OTPVerificationRequired}); err != nil {
			return err
		}
		if !res.OTPVerificationRequired {
			view := u.Public()
			res.User = &view
		}
		return nil
	})
	if err != nil {
		s.log.Warn("sign-in failed", "source", "auth", "email", email, "error", err.Error())
		return nil, err
	}

	s.log.Info("user signed in", "source", "auth", "email", email, "otp_required", res.OTPVerificationRequired)
	return &res, nil
}

// SignOut empties the session's user slot. Signing out twice is fine.
func (s *Service) SignOut(ctx context.Context, sid string) error {
	err := s.locked(ctx, func(tx store.Tx) error {
		if err := s.sessions.Clear(ctx, sid, session.UserKey); err != nil {
			return apperror.Transport("Error signing out user", err)
		}
		return nil
	})
	if err != nil {
		s.log.Warn("sign-out failed", "source", "auth", "error", err.Error())
		return err
	}
	s.log.Info("user signed out", "source", "auth")
	return nil
}

// EnableOTP issues a new secret, replacing any previous one, and leaves it
// unconfirmed until VerifyOTP succeeds.
func (s *Service) EnableOTP(ctx context.Context, sid string, rt ResponseType) (*Provisioning, error) {
	var (
		prov  *Provisioning
		email string
	)
	err := s.locked(ctx, func(tx store.Tx) error {
		rec, err := s.readSession(ctx, sid)
		if err != nil {
			return err
		}
		email = rec.Email
		u, err := findUser(tx, rec.Email)
		if err != nil {
			return err
		}

		key, err := s.otp.Generate(u.Email)
		if err != nil {
			return apperror.Transport("Error generating otp", err)
		}
		prov, err = render(key, rt)
		if err != nil {
			return err
		}

		u.BeginEnrollment(key.Secret())
		return tx.Update(u)
	})
	if err != nil {
		s.log.Warn("otp enable failed", "source", "mfa", "email", email, "error", err.Error())
		return nil, err
	}

	s.log.Info("otp secret issued", "source", "mfa", "email", email, "response_type", string(prov.Type))
	return prov, nil
}

// DisableOTP removes 2FA. The session must be fully signed in.
func (s *Service) DisableOTP(ctx context.Context, sid string) (*models.PublicUser, error) {
	var (
		view  models.PublicUser
		email string
	)
	err := s.locked(ctx, func(tx store.Tx) error {
		rec, err := s.readSession(ctx, sid)
		if err != nil {
			return err
		}
		email = rec.Email
		if !rec.SignedIn {
			return apperror.Forbidden("User has to sign in to disable 2FA.")
		}
		u, err := findUser(tx, rec.Email)
		if err != nil {
			return err
		}

		u.ClearOTP()
		if err := tx.Update(u); err != nil {
			return err
		}
		view = u.Public()
		return nil
	})
	if err != nil {
		s.log.Warn("otp disable failed", "source", "mfa", "email", email, "error", err.Error())
		return nil, err
	}

	s.log.Info("otp disabled", "source", "mfa", "email", email)
	return &view, nil
}

// VerifyOTP checks code against the stored secret. On success it confirms
// enrollment and signs the session in; on failure nothing changes. Calling
// it on an already signed-in session confirms a pending enrollment.
func (s *Service) VerifyOTP(ctx context.Context, sid, code string) (*VerifyResult, error) {
	var (
		res   VerifyResult
		email string
	)
	err := s.locked(ctx, func(tx store.Tx) error {
		rec, err := s.readSession(ctx, sid)
		if err != nil {
			return err
		}
		email = rec.Email
		u, err := findUser(tx, rec.Email)
		if err != nil {
			return err
		}
		if u.OTPSecret == nil {
			return apperror.PreconditionFailed("User does not have otp enabled.")
		}

		key, err := s.otp.FromSecret(*u.OTPSecret, u.Email)
		if err != nil {
			return apperror.Transport("Error generating otp", err)
		}
		ok, err := s.otp.Validate(key.Secret(), code, s.now())
		if err != nil {
			return apperror.Transport("Error validating otp", err)
		}
		if !ok {
			return nil
		}

		u.ConfirmEnrollment()
		if err := tx.Update(u); err != nil {
			return err
		}
		if err := s.writeSession(ctx, sid, session.Record{Email: u.Email, SignedIn: true}); err != nil {
			return err
		}
		res.Verified = true
		view := u.Public()
		res.User = &view
		return nil
	})
	if err != nil {
		s.log.Warn("otp verification error", "source", "mfa", "email", email, "error", err.Error())
		return nil, err
	}

	if res.Verified {
		s.log.Info("otp verified", "source", "mfa", "email", email)
	} else {
		s.log.Warn("otp verification failed: invalid code", "source", "mfa", "email", email)
	}
	return &res, nil
}

// Seed inserts an account at startup without touching any session.
// An existing account with the same email is left alone.
func (s *Service) Seed(ctx context.Context, email, password string) error {
	stored, err := s.passwords.Hash(password)
	if err != nil {
		return err
	}
	err = s.users.Insert(ctx, &models.User{Email: email, Password: stored})
	if errors.Is(err, store.ErrConflict) {
		return nil
	}
	return err
}
