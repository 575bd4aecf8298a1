package handlers

import (
	"net/http"
	"strings"

	"github.com/PhilHem/go-totp-identity/backend/apperror"
	"github.com/PhilHem/go-totp-identity/backend/auth"
)

// API serves the JSON endpoints under /auth.
type API struct {
	Auth        *auth.Service
	MaxBodySize int64
}

func NewAPI(svc *auth.Service, maxBodySize int64) *API {
	return &API{Auth: svc, MaxBodySize: maxBodySize}
}

// Routes registers the auth endpoints and the frontend assets on mux.
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/register", a.Register)
	mux.HandleFunc("POST /auth/signin", a.SignIn)
	mux.HandleFunc("GET /auth/signout", a.SignOut)
	mux.HandleFunc("GET /auth/otp/enable", a.EnableOTP)
	mux.HandleFunc("GET /auth/otp/disable", a.DisableOTP)
	mux.HandleFunc("POST /auth/otp/verify", a.VerifyOTP)

	mux.HandleFunc("GET /index.html", IndexHTML)
	mux.HandleFunc("GET /index.js", IndexJS)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/index.html", http.StatusSeeOther)
	})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) readCredentials(w http.ResponseWriter, r *http.Request) (*credentials, error) {
	var c credentials
	if err := decodeJSON(w, r, a.MaxBodySize, &c); err != nil {
		return nil, err
	}
	c.Email = strings.TrimSpace(c.Email)
	if c.Email == "" || c.Password == "" {
		return nil, apperror.BadRequest("email and password are required.")
	}
	return &c, nil
}

// Register handles POST /auth/register.
func (a *API) Register(w http.ResponseWriter, r *http.Request) {
	sid, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := a.readCredentials(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := a.Auth.Register(r.Context(), sid, c.Email, c.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

// SignIn handles POST /auth/signin.
func (a *API) SignIn(w http.ResponseWriter, r *http.Request) {
	sid, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := a.readCredentials(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := a.Auth.SignIn(r.Context(), sid, c.Email, c.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, signInResponse{
		OTPVerificationRequired: res.OTPVerificationRequired,
		User:                    res.User,
	})
}

// SignOut handles GET /auth/signout.
func (a *API) SignOut(w http.ResponseWriter, r *http.Request) {
	sid, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.Auth.SignOut(r.Context(), sid); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, signOutResponse{})
}
