package memory

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/classroom/pkg/identity"
)

var (
	ErrEmailExists        = errors.New("memory: email already in use")
	ErrInvalidEmail       = errors.New("memory: invalid email")
	ErrWeakPassword       = errors.New("memory: password too weak")
	ErrInvalidCredentials = errors.New("memory: invalid login credentials")
	ErrEmailNotFound      = errors.New("memory: email not found")
	ErrInvalidIDPResponse = errors.New("memory: invalid federated credential")

	// Both of these end the session when returned from Refresh.
	ErrInvalidRefreshToken = fmt.Errorf("memory: invalid refresh token: %w", identity.ErrSessionRevoked)
	ErrUserDisabled        = fmt.Errorf("memory: user disabled: %w", identity.ErrSessionRevoked)
)
