package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/PhilHem/go-totp-identity/backend/apperror"
	"github.com/PhilHem/go-totp-identity/backend/models"
	"github.com/PhilHem/go-totp-identity/backend/session"
)

type errorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}

type userResponse struct {
	Error bool               `json:"error"`
	User  *models.PublicUser `json:"user"`
}

type signInResponse struct {
	Error                   bool               `json:"error"`
	OTPVerificationRequired bool               `json:"otp_verification_required"`
	User                    *models.PublicUser `json:"user"`
}

type signOutResponse struct {
	Error bool `json:"error"`
}

type verifyResponse struct {
	OTPVerified bool               `json:"otp_verified"`
	User        *models.PublicUser `json:"user"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "source", "http", "error", err.Error())
	}
}

// writeError renders err as {error:true, message} with its client-error status.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, apperror.Status(err), errorResponse{Error: true, Message: apperror.Message(err)})
}

// decodeJSON reads a JSON body no larger than limit into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.BadRequest("Request body too large.")
		}
		return apperror.BadRequest("Invalid JSON body: %v", err)
	}
	return nil
}

func sessionID(r *http.Request) (string, error) {
	id, ok := session.IDFromContext(r.Context())
	if !ok {
		return "", apperror.Transport("Error loading session", session.ErrNoSession)
	}
	return id, nil
}
