package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultIDTokenTTL matches the lifetime identity providers give ID tokens.
const DefaultIDTokenTTL = time.Hour

// Claims are the ID-token claims an identity provider issues for a signed-in
// principal. Only the fields this module reads are modelled.
type Claims struct {
	jwt.RegisteredClaims

	// Provider-scoped user id, mirrors sub.
	UserID string `json:"user_id,omitempty"`

	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`

	// AuthTime is when the user last actively authenticated (unix seconds).
	AuthTime int64 `json:"auth_time,omitempty"`

	Provider *ProviderInfo `json:"firebase,omitempty"`
}

// ProviderInfo records how the session was established.
type ProviderInfo struct {
	// SignInProvider is "password", "google.com", ...
	SignInProvider string `json:"sign_in_provider,omitempty"`
}

// IDClaimsParams groups the inputs to NewIDClaims.
type IDClaimsParams struct {
	Issuer        string
	Audience      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	SignIn        string
	TTL           time.Duration
	Now           time.Time
}

// NewIDClaims builds minimally-correct ID-token claims.
func NewIDClaims(p IDClaimsParams) Claims {
	if p.TTL <= 0 {
		p.TTL = DefaultIDTokenTTL
	}

	var audience jwt.ClaimStrings
	if p.Audience != "" {
		audience = jwt.ClaimStrings{p.Audience}
	}

	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.Issuer,
			Subject:   p.Subject,
			Audience:  audience,
			IssuedAt:  jwt.NewNumericDate(p.Now),
			ExpiresAt: jwt.NewNumericDate(p.Now.Add(p.TTL)),
		},
		UserID:        p.Subject,
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
		Name:          p.Name,
		AuthTime:      p.Now.Unix(),
	}
	if p.SignIn != "" {
		c.Provider = &ProviderInfo{SignInProvider: p.SignIn}
	}
	return c
}

// UID returns the subject, falling back to user_id.
func (c *Claims) UID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// Expiry returns exp, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// SignInProvider returns the sign-in method, or "" when unknown.
func (c *Claims) SignInProvider() string {
	if c.Provider == nil {
		return ""
	}
	return c.Provider.SignInProvider
}

// ValidateExpiry reports ErrExpired once now is past exp. Tokens without
// exp never expire here.
func (c *Claims) ValidateExpiry(now time.Time) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	return nil
}
