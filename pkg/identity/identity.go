package identity

import (
	"context"
	"time"
)

// Identity is a signed-in principal as reported by the identity provider.
// It holds facts only; the provider owns its lifecycle.
type Identity struct {
	UID           string `json:"uid"` // provider-scoped subject id
	Email         string `json:"email,omitempty"`
	DisplayName   string `json:"displayName,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
	ProviderID    string `json:"providerId"` // "password", "google.com", ...
}

// Token is the credential material backing a session.
type Token struct {
	// IDToken is the short-lived bearer credential sent to the backend.
	IDToken string

	// RefreshToken mints new ID tokens without user interaction.
	RefreshToken string

	// ExpiresAt is when the provider stops honouring IDToken.
	ExpiresAt time.Time
}

// Credential is what every successful sign-in capability returns.
type Credential struct {
	Identity Identity
	Token    Token
}

// FederatedCredential is a credential obtained outside this module, e.g. by
// a client-side social-login widget, and exchanged for a provider session.
type FederatedCredential struct {
	// ProviderID names the federated provider. Default: "google.com".
	ProviderID string

	// At least one of IDToken or AccessToken must be set.
	IDToken     string
	AccessToken string
}

// DefaultFederatedProvider is used when FederatedCredential.ProviderID is empty.
const DefaultFederatedProvider = "google.com"

// Provider is the capability surface of an identity provider. Any compliant
// implementation (the shipped one or a test double) can back an Oracle.
//
// Implementations are stateless with respect to the current session: the
// Oracle owns it and hands refresh tokens back in.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Credential, error)
	SignUp(ctx context.Context, email, password string) (*Credential, error)
	SignInWithIdP(ctx context.Context, cred FederatedCredential) (*Credential, error)
	SendPasswordReset(ctx context.Context, email string) error

	// Refresh performs a silent refresh. Errors meaning the session is gone
	// for good must match ErrSessionRevoked.
	Refresh(ctx context.Context, refreshToken string) (*Token, error)
}

// Revoker is implemented by providers that can invalidate a refresh token
// server-side. The Oracle calls it on sign-out when available.
type Revoker interface {
	Revoke(ctx context.Context, refreshToken string) error
}
