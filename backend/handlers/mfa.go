package handlers

import (
	"net/http"
	"strconv"

	"github.com/PhilHem/go-totp-identity/backend/apperror"
	"github.com/PhilHem/go-totp-identity/backend/auth"
)

type verifyRequest struct {
	OTPToken string `json:"otp_token"`
}

// EnableOTP handles GET /auth/otp/enable?response_type=...
func (a *API) EnableOTP(w http.ResponseWriter, r *http.Request) {
	sid, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rt, err := auth.ParseResponseType(r.URL.Query().Get("response_type"))
	if err != nil {
		writeError(w, err)
		return
	}

	prov, err := a.Auth.EnableOTP(r.Context(), sid, rt)
	if err != nil {
		writeError(w, err)
		return
	}

	switch prov.Type {
	case auth.ResponseQRPNG:
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(prov.PNG)))
		w.WriteHeader(http.StatusOK)
		w.Write(prov.PNG)
	case auth.ResponseSecretKey:
		writeJSON(w, http.StatusOK, map[string]string{"otp_key": prov.Value})
	case auth.ResponseQRBase64:
		writeJSON(w, http.StatusOK, map[string]string{"otp_qr_base64": prov.Value})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"otp_auth_url": prov.Value})
	}
}

// DisableOTP handles GET /auth/otp/disable.
func (a *API) DisableOTP(w http.ResponseWriter, r *http.Request) {
	sid, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := a.Auth.DisableOTP(r.Context(), sid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

// VerifyOTP handles POST /auth/otp/verify. A wrong code is a 200 with
// otp_verified=false.
func (a *API) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	sid, err := sessionID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req verifyRequest
	if err := decodeJSON(w, r, a.MaxBodySize, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.OTPToken == "" {
		writeError(w, apperror.BadRequest("otp_token is required."))
		return
	}

	res, err := a.Auth.VerifyOTP(r.Context(), sid, req.OTPToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifyResponse{OTPVerified: res.Verified, User: res.User})
}
