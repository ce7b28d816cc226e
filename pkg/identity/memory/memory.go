// Package memory is an in-process identity.Provider. It keeps accounts in a
// map and signs ID tokens with a local HS256 key, which makes it suitable
// for tests and offline development but nothing else.
package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/classroom/pkg/identity"
	"github.com/aussiebroadwan/classroom/pkg/jwtx"
)

const (
	DefaultProject           = "classroom-local"
	DefaultMinPasswordLength = 6

	providerPassword = "password"
	issuerPrefix     = "https://securetoken.google.com/"
)

// Config configures a Provider. The zero value is usable.
type Config struct {
	// Project names the issuer and audience of minted ID tokens.
	Project string

	// Key signs ID tokens. A random key is generated when empty.
	Key []byte

	// TTL is the ID token lifetime. Default: jwtx.DefaultIDTokenTTL.
	TTL time.Duration

	Now func() time.Time

	MinPasswordLength int
}

type account struct {
	identity.Identity

	passwordHash string // empty for federated-only accounts
	disabled     bool

	// federated links, "google.com:<sub>"
	links []string
}

// Provider implements identity.Provider and identity.Revoker in memory.
type Provider struct {
	project  string
	ttl      time.Duration
	now      func() time.Time
	minPass  int
	signer   jwtx.Signer
	verifier *jwtx.HS256Verifier

	mu      sync.Mutex
	uids    *uidSource
	byEmail map[string]*account
	byUID   map[string]*account
	byLink  map[string]*account
	refresh map[string]string // fingerprint -> uid
	resets  []string
}

var (
	_ identity.Provider = (*Provider)(nil)
	_ identity.Revoker  = (*Provider)(nil)
)

// New builds an empty Provider.
func New(cfg Config) (*Provider, error) {
	if cfg.Project == "" {
		cfg.Project = DefaultProject
	}
	if cfg.TTL <= 0 {
		cfg.TTL = jwtx.DefaultIDTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = DefaultMinPasswordLength
	}
	if len(cfg.Key) == 0 {
		cfg.Key = make([]byte, 32)
		if _, err := rand.Read(cfg.Key); err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
	}

	signer, err := jwtx.NewSignerHS256(cfg.Key)
	if err != nil {
		return nil, err
	}

	return &Provider{
		project:  cfg.Project,
		ttl:      cfg.TTL,
		now:      cfg.Now,
		minPass:  cfg.MinPasswordLength,
		signer:   signer,
		verifier: jwtx.NewVerifierHS256(cfg.Key, issuerPrefix+cfg.Project, cfg.Project, cfg.Now),
		uids:     newUIDSource(),
		byEmail:  make(map[string]*account),
		byUID:    make(map[string]*account),
		byLink:   make(map[string]*account),
		refresh:  make(map[string]string),
	}, nil
}

// SignUp creates an email/password account and signs it in.
func (p *Provider) SignUp(_ context.Context, email, password string) (*identity.Credential, error) {
	key, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < p.minPass {
		return nil, ErrWeakPassword
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byEmail[key]; ok {
		return nil, ErrEmailExists
	}

	acct, err := p.createLocked(identity.Identity{Email: strings.TrimSpace(email), ProviderID: providerPassword})
	if err != nil {
		return nil, err
	}
	acct.passwordHash = hash

	return p.issueLocked(acct, providerPassword)
}

// SignInWithPassword checks the password of an existing account.
func (p *Provider) SignInWithPassword(_ context.Context, email, password string) (*identity.Credential, error) {
	key, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	acct, ok := p.byEmail[key]
	var hash string
	if ok {
		hash = acct.passwordHash
	}
	p.mu.Unlock()

	// Federated-only accounts have no password to match.
	if !ok || hash == "" {
		return nil, ErrInvalidCredentials
	}

	match, err := checkPassword(password, hash)
	if err != nil {
		return nil, err
	}
	if !match {
		return nil, ErrInvalidCredentials
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if acct.disabled {
		return nil, ErrUserDisabled
	}
	return p.issueLocked(acct, providerPassword)
}

// SignInWithIdP trusts the claims of the supplied ID token without
// verifying its signature. Only ID tokens are understood.
func (p *Provider) SignInWithIdP(_ context.Context, fc identity.FederatedCredential) (*identity.Credential, error) {
	if fc.IDToken == "" {
		return nil, fmt.Errorf("%w: id token required", ErrInvalidIDPResponse)
	}

	claims, err := jwtx.Decode(fc.IDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDPResponse, err)
	}
	if err := claims.ValidateExpiry(p.now()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDPResponse, err)
	}
	if claims.UID() == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidIDPResponse)
	}

	providerID := fc.ProviderID
	if providerID == "" {
		providerID = identity.DefaultFederatedProvider
	}
	link := providerID + ":" + claims.UID()

	p.mu.Lock()
	defer p.mu.Unlock()

	acct := p.byLink[link]
	if acct == nil && claims.Email != "" {
		if key, err := normalizeEmail(claims.Email); err == nil {
			acct = p.byEmail[key]
		}
	}
	if acct == nil {
		acct, err = p.createLocked(identity.Identity{
			Email:         claims.Email,
			DisplayName:   claims.Name,
			EmailVerified: claims.EmailVerified,
			ProviderID:    providerID,
		})
		if err != nil {
			return nil, err
		}
	}
	if acct.disabled {
		return nil, ErrUserDisabled
	}

	if !slices.Contains(acct.links, link) {
		acct.links = append(acct.links, link)
		p.byLink[link] = acct
	}
	if acct.DisplayName == "" {
		acct.DisplayName = claims.Name
	}
	acct.EmailVerified = acct.EmailVerified || claims.EmailVerified

	return p.issueLocked(acct, providerID)
}

// SendPasswordReset records the request; nothing is emailed.
func (p *Provider) SendPasswordReset(_ context.Context, email string) error {
	key, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byEmail[key]; !ok {
		return ErrEmailNotFound
	}
	p.resets = append(p.resets, key)
	return nil
}

// Refresh mints a new ID token for a live refresh token. The refresh token
// itself stays valid.
func (p *Provider) Refresh(_ context.Context, refreshToken string) (*identity.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	uid, ok := p.refresh[fingerprint(refreshToken)]
	if !ok {
		return nil, ErrInvalidRefreshToken
	}
	acct := p.byUID[uid]
	if acct == nil || acct.disabled {
		return nil, ErrUserDisabled
	}

	idToken, exp, err := p.mintLocked(acct, acct.ProviderID)
	if err != nil {
		return nil, err
	}

	return &identity.Token{IDToken: idToken, RefreshToken: refreshToken, ExpiresAt: exp}, nil
}

// Revoke forgets refreshToken. Unknown tokens are ignored.
func (p *Provider) Revoke(_ context.Context, refreshToken string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.refresh, fingerprint(refreshToken))
	return nil
}

// DisableUser blocks sign-in for uid and revokes its refresh tokens.
func (p *Provider) DisableUser(uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acct, ok := p.byUID[uid]
	if !ok {
		return fmt.Errorf("memory: unknown uid %q", uid)
	}
	acct.disabled = true

	for fp, owner := range p.refresh {
		if owner == uid {
			delete(p.refresh, fp)
		}
	}
	return nil
}

// VerifyIDToken checks an ID token this provider minted. Fake backends in
// tests use it the way a real backend verifies provider tokens.
func (p *Provider) VerifyIDToken(idToken string) (*jwtx.Claims, error) {
	return p.verifier.Verify(idToken)
}

// PasswordResets lists the addresses reset emails were requested for.
func (p *Provider) PasswordResets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.resets)
}

func (p *Provider) createLocked(id identity.Identity) (*account, error) {
	uid, err := p.uids.next(p.now())
	if err != nil {
		return nil, err
	}
	id.UID = uid

	acct := &account{Identity: id}
	p.byUID[uid] = acct
	if key, err := normalizeEmail(id.Email); err == nil {
		p.byEmail[key] = acct
	}
	return acct, nil
}

// issueLocked mints a full credential for acct.
func (p *Provider) issueLocked(acct *account, signIn string) (*identity.Credential, error) {
	idToken, exp, err := p.mintLocked(acct, signIn)
	if err != nil {
		return nil, err
	}

	refreshToken, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	p.refresh[fingerprint(refreshToken)] = acct.UID

	id := acct.Identity
	id.ProviderID = signIn

	return &identity.Credential{
		Identity: id,
		Token: identity.Token{
			IDToken:      idToken,
			RefreshToken: refreshToken,
			ExpiresAt:    exp,
		},
	}, nil
}

func (p *Provider) mintLocked(acct *account, signIn string) (string, time.Time, error) {
	now := p.now()
	claims := jwtx.NewIDClaims(jwtx.IDClaimsParams{
		Issuer:        issuerPrefix + p.project,
		Audience:      p.project,
		Subject:       acct.UID,
		Email:         acct.Email,
		EmailVerified: acct.EmailVerified,
		Name:          acct.DisplayName,
		SignIn:        signIn,
		TTL:           p.ttl,
		Now:           now,
	})

	token, err := p.signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign id token: %w", err)
	}
	return token, claims.Expiry(), nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(email), nil
}
