package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/PhilHem/go-totp-identity/backend/session"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const sessionIDValue = "sid"

// NewCookieStore returns a signed cookie store that only carries the session
// id. maxAge is the inactivity expiry; the cookie is re-issued on every
// request so it slides with activity.
func NewCookieStore(secret []byte, maxAge time.Duration, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(int(maxAge.Seconds()))
	return store
}

// SessionSecret returns the configured signing key, or a random one when
// none is configured. generated reports the latter.
func SessionSecret(configured string) (key []byte, generated bool, err error) {
	if configured != "" {
		return []byte(configured), false, nil
	}
	key = securecookie.GenerateRandomKey(32)
	if key == nil {
		return nil, false, errors.New("failed to generate session key")
	}
	return key, true, nil
}

// BindSession gives every request a session id, read from the cookie name
// or freshly minted, and stores it in the request context.
func BindSession(store sessions.Store, name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := store.Get(r, name)
			if err != nil {
				// Tampered, expired or foreign cookie: start a new session.
				slog.Debug("discarding session cookie", "source", "http", "error", err.Error())
				s.Values = make(map[interface{}]interface{})
			}

			id, _ := s.Values[sessionIDValue].(string)
			if id == "" {
				id = uuid.NewString()
				s.Values[sessionIDValue] = id
			}

			if err := s.Save(r, w); err != nil {
				slog.Error("failed to save session cookie", "source", "http", "error", err.Error())
				writeJSONError(w, http.StatusInternalServerError, "Error saving session.")
				return
			}

			next.ServeHTTP(w, r.WithContext(session.WithID(r.Context(), id)))
		})
	}
}
