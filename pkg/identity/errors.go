package identity

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionRevoked is matched by provider errors that mean a refresh
	// token will never work again (revoked, expired, user disabled/deleted).
	ErrSessionRevoked = errors.New("identity: session revoked")

	// ErrInvalidFederatedCredential is returned before contacting the
	// provider when a FederatedCredential carries no token at all.
	ErrInvalidFederatedCredential = errors.New("identity: federated credential has no token")
)

// Operation names carried by AuthError.Op.
const (
	OpSignInWithPassword  = "sign_in_with_password"
	OpCreateAccount       = "create_account"
	OpSignInWithFederated = "sign_in_with_federated_credential"
	OpSendPasswordReset   = "send_password_reset"
	OpSignOut             = "sign_out"
)

// AuthError reports a failed identity-provider operation. Err is the
// provider's error exactly as returned; presenting it is up to the caller.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("identity: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func authErr(op string, err error) error {
	return &AuthError{Op: op, Err: err}
}
