// Package store provides the persistence abstraction layer for user and
// todo records.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a referenced user, token, or todo does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned when creating a user with an email that is
// already registered. Email uniqueness is enforced by the store at write
// time, never by a read-then-write in the caller.
var ErrEmailTaken = errors.New("email already in use")

// AuthToken is one issued bearer token held by a user. Purpose is a token
// class tag; only "auth" is issued today, but the field leaves room for
// other classes (password reset, API keys) without a schema change.
type AuthToken struct {
	Purpose string `json:"purpose"`
	Token   string `json:"token"`
}

// User is the persisted credential record. PasswordHash is the PHC-encoded
// argon2id digest — the plaintext password is never stored. Tokens holds
// every currently active session token; a token absent from this list is
// revoked regardless of its signature.
type User struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	PasswordHash string      `json:"password_hash"`
	Tokens       []AuthToken `json:"tokens"`
	CreatedAt    time.Time   `json:"created_at"`
}

// HasToken reports whether the user currently holds an exact (purpose,
// token) pair.
func (u *User) HasToken(purpose, token string) bool {
	for _, t := range u.Tokens {
		if t.Purpose == purpose && t.Token == token {
			return true
		}
	}
	return false
}

// Todo is a single task owned by one user. CompletedAt is set when
// Completed flips to true and cleared when it flips back.
type Todo struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatorID   string     `json:"creator_id"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Users defines the credential store consumed by the auth core.
//
// Token append/remove must be atomic per user within the backend (bbolt
// update transaction, SQL row update) — concurrent logins and logouts on
// the same user must not lose each other's writes. No ordering guarantee
// exists between a racing login and logout; both outcomes are valid.
type Users interface {
	// Create persists a new user with an empty token list. Returns
	// ErrEmailTaken if the email is already registered.
	Create(ctx context.Context, email, passwordHash string) (*User, error)

	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)

	// FindByCredential succeeds only if the user exists and currently
	// holds the exact (purpose, token) pair. This membership check is
	// what makes logout an immediate revocation.
	FindByCredential(ctx context.Context, userID, purpose, token string) (*User, error)

	// AppendToken adds an issued token to the user's active set with
	// add-to-set semantics: appending a (purpose, token) pair the user
	// already holds is a no-op, since token issuance is deterministic and
	// a re-login re-issues the same string.
	AppendToken(ctx context.Context, userID, purpose, token string) error

	// RemoveToken deletes an exact token string from the user's active
	// set. A token that is not present is ErrNotFound, not a no-op.
	RemoveToken(ctx context.Context, userID, token string) error

	// UpdatePassword replaces the stored hash. The caller hashes exactly
	// once; the store never re-derives or touches the hash on other
	// updates.
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// Todos defines the task store. Every operation is scoped to a creator so
// that a user can never read or mutate another user's todos; an id owned
// by someone else is indistinguishable from an id that does not exist.
type Todos interface {
	Create(ctx context.Context, todo *Todo) error
	FindByID(ctx context.Context, creatorID, id string) (*Todo, error)
	ListByCreator(ctx context.Context, creatorID string) ([]*Todo, error)
	Update(ctx context.Context, todo *Todo) error
	Delete(ctx context.Context, creatorID, id string) error
}
