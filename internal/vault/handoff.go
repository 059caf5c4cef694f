package vault

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HandoffTTL is how long a webmail handoff token stays valid. The token
// carries the mailbox credential, so the window is deliberately tight.
const HandoffTTL = 30 * time.Second

// ErrHandoffInvalid is returned for expired, tampered or otherwise
// unverifiable handoff tokens.
var ErrHandoffInvalid = errors.New("invalid handoff token")

// HandoffClaims is the signed credential bundle used to auto-authenticate a
// user into the external webmail UI.
//
// The plaintext password travels inside the token. That is a known weakness
// of this handoff pattern; the 30-second expiry bounds the exposure.
type HandoffClaims struct {
	Email    string `json:"email"`
	Password string `json:"pw"`
	jwt.RegisteredClaims
}

// HandoffIssuer mints and verifies short-lived webmail handoff tokens.
type HandoffIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewHandoffIssuer(secret string) *HandoffIssuer {
	return &HandoffIssuer{secret: []byte(secret), now: time.Now}
}

// Issue signs a handoff token for the given mailbox credentials, expiring
// HandoffTTL from now.
func (i *HandoffIssuer) Issue(email, password string) (string, error) {
	now := i.now()
	claims := &HandoffClaims{
		Email:    email,
		Password: password,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(HandoffTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify parses and validates a handoff token, rejecting expired or tampered
// tokens.
func (i *HandoffIssuer) Verify(tokenString string) (*HandoffClaims, error) {
	claims := &HandoffClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, errors.Join(ErrHandoffInvalid, err)
	}
	if !token.Valid {
		return nil, ErrHandoffInvalid
	}
	return claims, nil
}
