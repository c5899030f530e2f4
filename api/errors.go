package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmcleod/taskbox/auth"
	"github.com/jmcleod/taskbox/store"
)

// maxBodySize caps request bodies for all JSON endpoints.
const maxBodySize = 64 * 1024

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeUnauthorized rejects with 401 and an empty body. Every
// authorization failure goes through here so the response shape cannot
// vary with the root cause.
func writeUnauthorized(w http.ResponseWriter) {
	w.WriteHeader(http.StatusUnauthorized)
}

func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	return v, true
}

// mapError translates domain errors to HTTP responses in one place.
// Anything unrecognized is an infrastructure fault and becomes a plain
// 500 — a store outage must never read as an authorization outcome.
func (a *API) mapError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, store.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "email already in use")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeUnauthorized(w)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		a.logger.ErrorContext(r.Context(), "internal error",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
