package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// Signer is anything that can turn Claims into a compact JWT.
type Signer interface {
	Alg() string
	Sign(Claims) (string, error)
}

// HS256Signer signs with a shared secret. It exists for local and test
// identity providers; real providers sign with their own asymmetric keys.
type HS256Signer struct {
	key []byte
}

// NewSignerHS256 creates an HS256 signer. The key must not be empty.
func NewSignerHS256(key []byte) (*HS256Signer, error) {
	if len(key) == 0 {
		return nil, errors.New("jwtx: empty HS256 key")
	}
	return &HS256Signer{key: append([]byte(nil), key...)}, nil
}

func (s *HS256Signer) Alg() string { return jwt.SigningMethodHS256.Alg() }

// Sign takes your claims and turns them into a signed JWT string.
func (s *HS256Signer) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
}
