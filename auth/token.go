package auth

import (
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"
)

// PurposeAuth is the token class for login sessions. It is the only class
// issued today; the tag exists so other classes can be added without
// changing the wire format.
const PurposeAuth = "auth"

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID  string `json:"uid"`
	Purpose string `json:"purpose"`
}

// Codec creates and verifies signed bearer tokens binding a user identity
// and a purpose tag. Tokens are HS256 JWTs carrying only the uid and
// purpose claims — no timestamp or nonce — so issuance is pure: the same
// (userID, purpose) pair always yields the same token string. Revocation
// is therefore exact-string removal from the credential store, never an
// issuance epoch.
//
// The signing secret is held in a memguard enclave and opened only for the
// duration of each operation. Rotating the secret invalidates every
// previously issued token, forcing re-login.
type Codec struct {
	secret *memguard.Enclave
}

// NewCodec creates a Codec signing with the given secret. The secret is
// copied into an enclave; the caller's slice is not retained.
func NewCodec(secret []byte) *Codec {
	// NewEnclave wipes its input, so hand it a private copy.
	return &Codec{secret: memguard.NewEnclave(append([]byte(nil), secret...))}
}

// Issue produces a signed token encoding the user id and purpose.
func (c *Codec) Issue(userID, purpose string) (string, error) {
	key, err := c.secret.Open()
	if err != nil {
		return "", fmt.Errorf("opening signing secret: %w", err)
	}
	defer key.Destroy()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		UserID:  userID,
		Purpose: purpose,
	})
	signed, err := token.SignedString(key.Bytes())
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Decode verifies the token's signature and structure and returns the
// embedded user id and purpose. Any malformed, mistyped, or wrongly signed
// input yields ErrInvalidToken; no part of an unverified payload is ever
// returned.
func (c *Codec) Decode(token string) (userID, purpose string, err error) {
	key, err := c.secret.Open()
	if err != nil {
		return "", "", fmt.Errorf("opening signing secret: %w", err)
	}
	defer key.Destroy()

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return key.Bytes(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return "", "", ErrInvalidToken
	}
	if claims.UserID == "" || claims.Purpose == "" {
		return "", "", ErrInvalidToken
	}
	return claims.UserID, claims.Purpose, nil
}
