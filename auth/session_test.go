package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/taskbox/store"
	"github.com/jmcleod/taskbox/store/memory"
)

func testManager() (*Manager, *memory.Store) {
	st := memory.NewStore()
	m := NewManager(st.Users(), NewHasher(InteractiveHashParams()), NewCodec([]byte("test-signing-secret")))
	return m, st
}

func TestRegisterIssuesResolvableToken(t *testing.T) {
	m, _ := testManager()
	ctx := context.Background()

	user, token, err := m.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "a@x.com", user.Email)
	assert.NotEmpty(t, user.ID)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	resolved, err := m.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestRegisterValidation(t *testing.T) {
	m, _ := testManager()
	ctx := context.Background()

	var verr *ValidationError

	_, _, err := m.Register(ctx, "not-an-email", "secret1")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)

	_, _, err = m.Register(ctx, "a@x", "secret1")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)

	_, _, err = m.Register(ctx, "Name <a@x.com>", "secret1")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)

	_, _, err = m.Register(ctx, "a@x.com", "short")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	m, st := testManager()
	ctx := context.Background()

	_, _, err := m.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	_, _, err = m.Register(ctx, "a@x.com", "other-password")
	require.ErrorIs(t, err, store.ErrEmailTaken)

	// Exactly one user holds the email.
	user, err := st.Users().FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, NewHasher(InteractiveHashParams()).Verify("secret1", user.PasswordHash))
}

func TestLogin(t *testing.T) {
	m, _ := testManager()
	ctx := context.Background()

	registered, _, err := m.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	user, token, err := m.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)

	resolved, err := m.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, resolved.ID)
}

func TestLoginFailureIsUniform(t *testing.T) {
	m, _ := testManager()
	ctx := context.Background()

	_, _, err := m.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	// Wrong password on an existing email and any password on an unknown
	// email return the same sentinel: nothing distinguishes the causes.
	_, _, wrongPass := m.Login(ctx, "a@x.com", "wrong-password")
	_, _, unknownEmail := m.Login(ctx, "nobody@x.com", "secret1")

	require.ErrorIs(t, wrongPass, ErrInvalidCredentials)
	require.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPass.Error(), unknownEmail.Error())
}

func TestLogoutRevokesToken(t *testing.T) {
	m, _ := testManager()
	ctx := context.Background()

	user, token, err := m.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx, user.ID, token))

	// The token still verifies structurally but the store membership
	// check fails: revoked means delisted, not malformed.
	codec := NewCodec([]byte("test-signing-secret"))
	uid, purpose, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, uid)
	assert.Equal(t, PurposeAuth, purpose)

	_, err = m.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutMissingTokenIsNotFound(t *testing.T) {
	m, _ := testManager()
	ctx := context.Background()

	user, token, err := m.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx, user.ID, token))
	assert.ErrorIs(t, m.Logout(ctx, user.ID, token), store.ErrNotFound)
}

func TestMultiSession(t *testing.T) {
	m, _ := testManager()
	ctx := context.Background()

	user, t1, err := m.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	// Issuance is deterministic, so a second login re-issues the same
	// string; the set semantics keep a single entry.
	_, t2, err := m.Login(ctx, "a@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, t1, t2)

	require.NoError(t, m.Logout(ctx, user.ID, t1))
	_, err = m.Resolve(ctx, t2)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSetPassword(t *testing.T) {
	m, _ := testManager()
	ctx := context.Background()

	user, token, err := m.Register(ctx, "a@x.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, m.SetPassword(ctx, user.ID, "secret2"))

	_, _, err = m.Login(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = m.Login(ctx, "a@x.com", "secret2")
	require.NoError(t, err)

	// Changing the password does not revoke existing sessions.
	_, err = m.Resolve(ctx, token)
	require.NoError(t, err)

	var verr *ValidationError
	err = m.SetPassword(ctx, user.ID, "short")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)
}

// faultyUsers simulates a store outage on every operation.
type faultyUsers struct {
	err error
}

var _ store.Users = (*faultyUsers)(nil)

func (f *faultyUsers) Create(ctx context.Context, email, hash string) (*store.User, error) {
	return nil, f.err
}
func (f *faultyUsers) FindByEmail(ctx context.Context, email string) (*store.User, error) {
	return nil, f.err
}
func (f *faultyUsers) FindByID(ctx context.Context, id string) (*store.User, error) {
	return nil, f.err
}
func (f *faultyUsers) FindByCredential(ctx context.Context, userID, purpose, token string) (*store.User, error) {
	return nil, f.err
}
func (f *faultyUsers) AppendToken(ctx context.Context, userID, purpose, token string) error {
	return f.err
}
func (f *faultyUsers) RemoveToken(ctx context.Context, userID, token string) error {
	return f.err
}
func (f *faultyUsers) UpdatePassword(ctx context.Context, userID, hash string) error {
	return f.err
}

func TestStoreFaultIsNotUnauthorized(t *testing.T) {
	outage := errors.New("connection refused")
	m := NewManager(&faultyUsers{err: outage},
		NewHasher(InteractiveHashParams()), NewCodec([]byte("test-signing-secret")))
	ctx := context.Background()

	_, _, err := m.Login(ctx, "a@x.com", "secret1")
	require.ErrorIs(t, err, outage)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	token, err := m.codec.Issue("user-1", PurposeAuth)
	require.NoError(t, err)
	_, err = m.Resolve(ctx, token)
	require.ErrorIs(t, err, outage)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
