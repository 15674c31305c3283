package api

import (
	"net/http"
	"time"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LoginHandler exchanges admin credentials for a bearer token.
type LoginHandler struct {
	auth    Authenticator
	limiter LoginLimiter
}

// NewLoginHandler creates a login handler. A nil authenticator disables login.
func NewLoginHandler(auth Authenticator, limiter LoginLimiter) *LoginHandler {
	return &LoginHandler{auth: auth, limiter: limiter}
}

// HandleLogin handles POST /api/login.
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.login"
	if h.limiter != nil && !h.limiter.Allow(clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "rate_limited", NewKind(op, ErrRateLimited))
		return
	}
	if h.auth == nil {
		writeError(w, http.StatusUnauthorized, "login_disabled", NewKind(op, ErrUnauthorized))
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	token, expires, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", WrapKind(op, ErrUnauthorized, err))
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires})
}
