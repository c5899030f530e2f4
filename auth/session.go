package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/jmcleod/taskbox/store"
)

// MinPasswordLen is the minimum plaintext password length accepted at
// registration and password change.
const MinPasswordLen = 6

// Manager orchestrates login, logout, and token resolution over the
// credential store, the password hasher, and the token codec.
//
// Every authentication failure — unknown email, wrong password, invalid or
// revoked token — surfaces as the one ErrInvalidCredentials sentinel.
// Store infrastructure faults are deliberately NOT collapsed into it: a
// database outage propagates as-is so it becomes a server error upstream,
// never a credentials rejection.
type Manager struct {
	users  store.Users
	hasher *Hasher
	codec  *Codec
}

// NewManager creates a session Manager.
func NewManager(users store.Users, hasher *Hasher, codec *Codec) *Manager {
	return &Manager{users: users, hasher: hasher, codec: codec}
}

// Register validates the email and password, creates the user, and
// immediately issues an auth token — registration implies login.
func (m *Manager) Register(ctx context.Context, email, password string) (*store.User, string, error) {
	if err := validateEmail(email); err != nil {
		return nil, "", err
	}
	if err := validatePassword(password); err != nil {
		return nil, "", err
	}

	hash, err := m.hasher.Hash(password)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	user, err := m.users.Create(ctx, email, hash)
	if err != nil {
		return nil, "", err
	}

	token, err := m.issueAndAppend(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies the credentials and issues an auth token. An unknown
// email and a wrong password return the identical error.
func (m *Manager) Login(ctx context.Context, email, password string) (*store.User, string, error) {
	user, err := m.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !m.hasher.Verify(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := m.issueAndAppend(ctx, user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Resolve maps a bearer token back to its user. The codec check proves the
// token was minted here; the store membership check proves it has not been
// revoked since. A structurally valid token that has been logged out fails
// exactly like a forged one.
func (m *Manager) Resolve(ctx context.Context, token string) (*store.User, error) {
	userID, purpose, err := m.codec.Decode(token)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := m.users.FindByCredential(ctx, userID, purpose, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return user, nil
}

// Logout revokes one token. A token that is not currently listed is
// store.ErrNotFound, not a silent success.
func (m *Manager) Logout(ctx context.Context, userID, token string) error {
	return m.users.RemoveToken(ctx, userID, token)
}

// SetPassword hashes the new password exactly once and stores the result.
// This is the only path that touches the stored hash, so unrelated record
// updates can never re-hash an already-hashed value.
func (m *Manager) SetPassword(ctx context.Context, userID, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := m.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return m.users.UpdatePassword(ctx, userID, hash)
}

func (m *Manager) issueAndAppend(ctx context.Context, user *store.User) (string, error) {
	token, err := m.codec.Issue(user.ID, PurposeAuth)
	if err != nil {
		return "", err
	}
	if err := m.users.AppendToken(ctx, user.ID, PurposeAuth, token); err != nil {
		return "", err
	}
	return token, nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Reason: "not a valid email address"}
	}
	// ParseAddress accepts bare local parts and display names; require a
	// plain addr-spec with a dotted domain.
	at := strings.LastIndex(email, "@")
	if at <= 0 || !strings.Contains(email[at+1:], ".") {
		return &ValidationError{Field: "email", Reason: "not a valid email address"}
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLen {
		return &ValidationError{
			Field:  "password",
			Reason: fmt.Sprintf("must be at least %d characters", MinPasswordLen),
		}
	}
	return nil
}
