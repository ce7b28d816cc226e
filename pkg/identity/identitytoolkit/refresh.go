package identitytoolkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/classroom/pkg/identity"
	"github.com/aussiebroadwan/classroom/pkg/jwtx"
	"golang.org/x/oauth2"
)

// Refresh runs the OAuth2 refresh_token grant against securetoken. The
// endpoint answers with the new ID token in both access_token and id_token.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*identity.Token, error) {
	if refreshToken == "" {
		return nil, &Error{Code: CodeInvalidRefreshToken, Message: "INVALID_REFRESH_TOKEN : empty refresh token"}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			return nil, parseError(status, re.Body)
		}
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		idToken = tok.AccessToken
	}

	newRefresh := tok.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}

	expiresAt := tok.Expiry
	if claims, err := jwtx.Decode(idToken); err == nil {
		if exp := claims.Expiry(); !exp.IsZero() {
			expiresAt = exp
		}
	}
	if expiresAt.IsZero() {
		expiresAt = p.now().Add(jwtx.DefaultIDTokenTTL)
	}

	return &identity.Token{
		IDToken:      idToken,
		RefreshToken: newRefresh,
		ExpiresAt:    expiresAt,
	}, nil
}
