package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed = errors.New("jwtx: malformed token")
	ErrExpired   = errors.New("jwtx: token expired")
)

// Decode parses the claims of tokenStr WITHOUT verifying its signature.
//
// Signature checks belong to whoever accepts the token (the backend, the
// identity provider). Callers here only need the expiry and profile fields
// to decide when to refresh, so nothing read through Decode may be used for
// an authorization decision.
func Decode(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMalformed
	}

	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return claims, nil
}
