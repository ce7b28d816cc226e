package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidSig = errors.New("jwtx: invalid signature")

// HS256Verifier checks tokens minted by an HS256Signer with the same key.
type HS256Verifier struct {
	key    []byte
	issuer string
	aud    string
	now    func() time.Time
}

// NewVerifierHS256 creates a verifier. Empty issuer or audience are not
// checked; a nil now means time.Now.
func NewVerifierHS256(key []byte, issuer, audience string, now func() time.Time) *HS256Verifier {
	if now == nil {
		now = time.Now
	}
	return &HS256Verifier{key: append([]byte(nil), key...), issuer: issuer, aud: audience, now: now}
}

// Verify validates signature, issuer, audience and expiry and returns the
// claims.
func (v *HS256Verifier) Verify(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.aud != "" {
		opts = append(opts, jwt.WithAudience(v.aud))
	}

	claims := &Claims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	default:
		return nil, fmt.Errorf("jwtx: parse or verify: %w", err)
	}
}
