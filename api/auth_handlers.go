package api

import (
	"errors"
	"net/http"

	"github.com/jmcleod/taskbox/auth"
	"github.com/jmcleod/taskbox/store"
)

func userResponse(user *store.User) UserResponse {
	return UserResponse{ID: user.ID, Email: user.Email}
}

// CreateUser handles POST /users. Registration implies login: the response
// carries the freshly issued token in the x-auth header.
func (a *API) CreateUser(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CreateUserRequest](w, r)
	if !ok {
		return
	}

	user, token, err := a.sessions.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		a.mapError(w, r, err)
		return
	}

	a.audit.logEvent(AuditRegister, r, user.ID)
	w.Header().Set(AuthHeader, token)
	writeJSON(w, http.StatusCreated, userResponse(user))
}

// Login handles POST /users/login. A wrong password and an unknown email
// produce byte-identical responses, and neither carries an x-auth header.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r)
	if !ok {
		return
	}

	key := rateLimitKey(req.Email)
	if blocked, retryAfter := a.rateLimiter.check(key); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "rate limited")
		w.Header().Set("Retry-After", retryAfter.Round(1e9).String())
		writeError(w, http.StatusTooManyRequests, "too many attempts")
		return
	}

	user, token, err := a.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		// Only a credentials rejection counts against the limiter; a
		// store fault is not the caller's fault.
		if errors.Is(err, auth.ErrInvalidCredentials) {
			a.rateLimiter.recordFailure(key)
			a.audit.logFailure(AuditLoginFailure, r, "invalid credentials")
		}
		a.mapError(w, r, err)
		return
	}
	a.rateLimiter.recordSuccess(key)

	a.audit.logEvent(AuditLoginSuccess, r, user.ID)
	w.Header().Set(AuthHeader, token)
	writeJSON(w, http.StatusOK, userResponse(user))
}

// Me handles GET /users/me.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, userResponse(user))
}

// Logout handles DELETE /users/me/token. It revokes exactly the token the
// request authenticated with; a token already removed by a concurrent
// logout is a 404, not a silent success.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	token := tokenFromContext(r.Context())

	if err := a.sessions.Logout(r.Context(), user.ID, token); err != nil {
		a.mapError(w, r, err)
		return
	}

	a.audit.logEvent(AuditLogout, r, user.ID)
	writeJSON(w, http.StatusOK, struct{}{})
}

// ChangePassword handles PUT /users/me/password.
func (a *API) ChangePassword(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ChangePasswordRequest](w, r)
	if !ok {
		return
	}

	user := userFromContext(r.Context())
	if err := a.sessions.SetPassword(r.Context(), user.ID, req.Password); err != nil {
		a.mapError(w, r, err)
		return
	}

	a.audit.logEvent(AuditPasswordChanged, r, user.ID)
	writeJSON(w, http.StatusOK, struct{}{})
}
