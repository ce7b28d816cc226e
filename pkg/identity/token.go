package identity

import (
	"context"
	"errors"
	"time"
)

// FreshToken returns a bearer token the provider currently honours, or
// ("", false) when nobody is signed in or a silent refresh fails.
//
// It never returns an error: an unavailable token degrades the caller's
// request to anonymous and the backend decides whether that is allowed.
// Refresh failures are logged. A failure matching ErrSessionRevoked also
// ends the session and notifies subscribers.
func (o *Oracle) FreshToken(ctx context.Context) (string, bool) {
	s, tok, skew := o.snapshot()
	if s == nil {
		return "", false
	}
	if o.usable(tok, skew) {
		return tok.IDToken, true
	}

	o.refreshMu.Lock()
	defer o.refreshMu.Unlock()

	// Someone else may have refreshed, signed out or signed in while we waited.
	s, tok, skew = o.snapshot()
	if s == nil {
		return "", false
	}
	if o.usable(tok, skew) {
		return tok.IDToken, true
	}

	log := o.log(ctx).With("uid", s.identity.UID)

	if tok.RefreshToken == "" {
		log.Warn("token expired and no refresh token available")
		return "", false
	}

	fresh, err := o.provider.Refresh(ctx, tok.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrSessionRevoked) {
			log.Warn("session revoked by provider", "error", err)
			o.expire(s)
			return "", false
		}
		log.Warn("token refresh failed", "error", err)
		return "", false
	}
	if fresh == nil || fresh.IDToken == "" {
		log.Warn("token refresh returned no id token")
		return "", false
	}
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}

	o.mu.Lock()
	if o.session != s {
		o.mu.Unlock()
		log.Debug("discarding refresh for a session that is no longer current")

		s, tok, skew = o.snapshot()
		if s != nil && o.usable(tok, skew) {
			return tok.IDToken, true
		}
		return "", false
	}
	s.token = *fresh
	s.skew = o.skewFor(*fresh)
	o.mu.Unlock()

	log.Debug("token refreshed", "expires_at", fresh.ExpiresAt)
	return fresh.IDToken, true
}

// snapshot returns the current session with a copy of its token and skew.
func (o *Oracle) snapshot() (*session, Token, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.session == nil {
		return nil, Token{}, 0
	}
	return o.session, o.session.token, o.session.skew
}

// usable reports whether t can be sent without refreshing first.
func (o *Oracle) usable(t Token, skew time.Duration) bool {
	return t.IDToken != "" && o.now().Add(skew).Before(t.ExpiresAt)
}

// skewFor caps the configured skew at half of t's remaining lifetime.
func (o *Oracle) skewFor(t Token) time.Duration {
	if half := t.ExpiresAt.Sub(o.now()) / 2; half < o.skew {
		return max(half, 0)
	}
	return o.skew
}
