package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/classroom/pkg/slogx"
)

// DefaultRefreshSkew is how long before expiry an ID token stops being
// handed out and a silent refresh happens instead.
const DefaultRefreshSkew = 5 * time.Minute

var errIncompleteCredential = errors.New("identity: provider returned an incomplete credential")

// Config tunes an Oracle. The zero value is usable.
type Config struct {
	// Logger overrides the context logger (slogx.FromContext).
	Logger *slog.Logger

	// RefreshSkew defaults to DefaultRefreshSkew. Each token gets at most
	// half of its remaining lifetime as skew.
	RefreshSkew time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Oracle owns one identity-provider session. It answers "who is signed in"
// and "what bearer token should this request carry", and pushes session
// transitions to subscribers.
//
// Independent Oracles never share state, so tests can run several sessions
// side by side.
type Oracle struct {
	provider Provider
	logger   *slog.Logger
	skew     time.Duration
	now      func() time.Time

	mu      sync.Mutex
	session *session // nil when signed out

	// refreshMu serializes silent refreshes. It is never held together with
	// a network-free reader, so CurrentIdentity does not wait on refreshes.
	refreshMu sync.Mutex

	// transMu is held across a session change and its notification, and
	// across Subscribe's immediate delivery. Lock order: refreshMu, transMu, mu.
	transMu sync.Mutex

	subs subscribers
}

// session is replaced wholesale on every sign-in. identity never changes
// after creation; token and skew are guarded by Oracle.mu.
type session struct {
	identity Identity
	token    Token
	skew     time.Duration
}

// NewOracle creates a signed-out Oracle backed by p.
func NewOracle(p Provider, cfg Config) *Oracle {
	if cfg.RefreshSkew <= 0 {
		cfg.RefreshSkew = DefaultRefreshSkew
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Oracle{
		provider: p,
		logger:   cfg.Logger,
		skew:     cfg.RefreshSkew,
		now:      cfg.Now,
	}
}

// SignInWithPassword signs in with email and password.
func (o *Oracle) SignInWithPassword(ctx context.Context, email, password string) (*Identity, error) {
	cred, err := o.provider.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		o.log(ctx).Info("password sign-in rejected", "error", err)
		return nil, authErr(OpSignInWithPassword, err)
	}
	return o.establish(ctx, OpSignInWithPassword, cred)
}

// CreateAccount registers a new email/password account and signs it in.
func (o *Oracle) CreateAccount(ctx context.Context, email, password string) (*Identity, error) {
	cred, err := o.provider.SignUp(ctx, strings.TrimSpace(email), password)
	if err != nil {
		o.log(ctx).Info("account creation rejected", "error", err)
		return nil, authErr(OpCreateAccount, err)
	}
	return o.establish(ctx, OpCreateAccount, cred)
}

// SignInWithFederatedCredential exchanges an externally obtained credential
// (e.g. a Google ID token from a sign-in widget) for a provider session.
func (o *Oracle) SignInWithFederatedCredential(ctx context.Context, fc FederatedCredential) (*Identity, error) {
	if fc.IDToken == "" && fc.AccessToken == "" {
		return nil, authErr(OpSignInWithFederated, ErrInvalidFederatedCredential)
	}
	if fc.ProviderID == "" {
		fc.ProviderID = DefaultFederatedProvider
	}

	cred, err := o.provider.SignInWithIdP(ctx, fc)
	if err != nil {
		o.log(ctx).Info("federated sign-in rejected", "provider", fc.ProviderID, "error", err)
		return nil, authErr(OpSignInWithFederated, err)
	}
	return o.establish(ctx, OpSignInWithFederated, cred)
}

// SendPasswordReset asks the provider to email a reset link. Whether the
// address exists is the provider's business.
func (o *Oracle) SendPasswordReset(ctx context.Context, email string) error {
	if err := o.provider.SendPasswordReset(ctx, strings.TrimSpace(email)); err != nil {
		return authErr(OpSendPasswordReset, err)
	}
	return nil
}

// SignOut ends the current session. Signing out while signed out is a no-op.
//
// The local session is always cleared first; when the provider supports
// revocation the refresh token is revoked afterwards and a failure there is
// reported as an AuthError.
func (o *Oracle) SignOut(ctx context.Context) error {
	o.transMu.Lock()
	o.mu.Lock()
	s := o.session
	o.session = nil
	o.mu.Unlock()

	if s == nil {
		o.transMu.Unlock()
		return nil
	}

	o.log(ctx).Info("signed out", "uid", s.identity.UID)
	o.subs.notify(nil)
	o.transMu.Unlock()

	r, ok := o.provider.(Revoker)
	if !ok || s.token.RefreshToken == "" {
		return nil
	}
	if err := r.Revoke(ctx, s.token.RefreshToken); err != nil {
		return authErr(OpSignOut, err)
	}
	return nil
}

// CurrentIdentity returns a copy of the signed-in identity, or nil.
func (o *Oracle) CurrentIdentity() *Identity {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentLocked()
}

func (o *Oracle) currentLocked() *Identity {
	if o.session == nil {
		return nil
	}
	id := o.session.identity
	return &id
}

// establish installs cred as the current session and notifies subscribers.
func (o *Oracle) establish(ctx context.Context, op string, cred *Credential) (*Identity, error) {
	if cred == nil || cred.Identity.UID == "" || cred.Token.IDToken == "" {
		return nil, authErr(op, errIncompleteCredential)
	}

	s := &session{identity: cred.Identity, token: cred.Token, skew: o.skewFor(cred.Token)}

	o.transMu.Lock()
	defer o.transMu.Unlock()

	o.mu.Lock()
	o.session = s
	o.mu.Unlock()

	o.log(ctx).Info("signed in", "uid", s.identity.UID, "provider", s.identity.ProviderID)

	id := s.identity
	o.subs.notify(&id)
	return &id, nil
}

// expire drops s if it is still the current session.
func (o *Oracle) expire(s *session) bool {
	o.transMu.Lock()
	defer o.transMu.Unlock()

	o.mu.Lock()
	if o.session != s {
		o.mu.Unlock()
		return false
	}
	o.session = nil
	o.mu.Unlock()

	o.subs.notify(nil)
	return true
}

func (o *Oracle) log(ctx context.Context) *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slogx.FromContext(ctx)
}
