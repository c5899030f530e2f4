package auth

import (
	"errors"
	"fmt"
)

// ErrInvalidCredentials is the single failure returned for every
// authentication problem: unknown email, wrong password, missing token,
// malformed token, bad signature, or revoked token. Callers and clients
// cannot distinguish the root cause.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidToken indicates a token failed structural or signature
// verification. The Manager converts it to ErrInvalidCredentials before it
// reaches the API surface.
var ErrInvalidToken = errors.New("invalid token")

// ValidationError reports a malformed registration or update field. Unlike
// authentication failures, validation failures carry enough detail to fix
// the request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
