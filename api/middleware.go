package api

import (
	"context"
	"net/http"

	"github.com/jmcleod/taskbox/store"
)

// AuthHeader is the request header carrying the raw bearer token.
const AuthHeader = "x-auth"

type contextKey int

const (
	userKey contextKey = iota
	tokenKey
)

// RequireAuth gates a route behind token authentication. It extracts the
// token from the x-auth header, resolves it to a user, and binds both to
// the request context. A missing token is rejected before the session
// manager is consulted; a failed resolve is rejected identically. The read
// path never mutates store state.
func (a *API) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(AuthHeader)
		if token == "" {
			writeUnauthorized(w)
			return
		}

		// mapError keeps the split between a credentials rejection
		// (uniform 401) and a store fault (500).
		user, err := a.sessions.Resolve(r.Context(), token)
		if err != nil {
			a.mapError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) *store.User {
	user, _ := ctx.Value(userKey).(*store.User)
	return user
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}
