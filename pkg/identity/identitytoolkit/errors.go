package identitytoolkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/classroom/pkg/identity"
)

// Error codes the API reports in error.message.
const (
	CodeEmailExists             = "EMAIL_EXISTS"
	CodeEmailNotFound           = "EMAIL_NOT_FOUND"
	CodeInvalidPassword         = "INVALID_PASSWORD"
	CodeInvalidLoginCredentials = "INVALID_LOGIN_CREDENTIALS"
	CodeInvalidEmail            = "INVALID_EMAIL"
	CodeWeakPassword            = "WEAK_PASSWORD"
	CodeTooManyAttempts         = "TOO_MANY_ATTEMPTS_TRY_LATER"
	CodeUserDisabled            = "USER_DISABLED"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeTokenExpired            = "TOKEN_EXPIRED"
	CodeInvalidRefreshToken     = "INVALID_REFRESH_TOKEN"
	CodeInvalidIDPResponse      = "INVALID_IDP_RESPONSE"
	CodeInvalidGrant            = "invalid_grant"
)

// revokedCodes are the refresh failures after which the session is gone.
var revokedCodes = map[string]bool{
	CodeTokenExpired:        true,
	CodeUserDisabled:        true,
	CodeUserNotFound:        true,
	CodeInvalidRefreshToken: true,
	CodeInvalidGrant:        true,
}

// Error is an error reported by the Identity Toolkit or securetoken API.
type Error struct {
	// StatusCode is the HTTP status of the response
	StatusCode int

	// Code is the leading token of Message, e.g. "EMAIL_NOT_FOUND"
	Code string

	// Message is the provider's message verbatim, e.g.
	// "WEAK_PASSWORD : Password should be at least 6 characters"
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("identitytoolkit: %s (status %d)", e.Message, e.StatusCode)
}

// Is lets errors.Is(err, identity.ErrSessionRevoked) recognise refresh
// failures that cannot be recovered from.
func (e *Error) Is(target error) bool {
	return target == identity.ErrSessionRevoked && revokedCodes[e.Code]
}

// parseError turns an error body into *Error. Two shapes exist:
//
//	{"error":{"code":400,"message":"EMAIL_NOT_FOUND","status":"INVALID_ARGUMENT"}}
//	{"error":"invalid_grant","error_description":"..."}
func parseError(status int, body []byte) error {
	var envelope struct {
		Error            json.RawMessage `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Error) > 0 {
		var detailed struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &detailed); err == nil && detailed.Message != "" {
			return newError(status, detailed.Message)
		}

		var code string
		if err := json.Unmarshal(envelope.Error, &code); err == nil && code != "" {
			msg := code
			if envelope.ErrorDescription != "" {
				msg = code + " : " + envelope.ErrorDescription
			}
			return newError(status, msg)
		}
	}

	return &Error{
		StatusCode: status,
		Message:    fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status)),
	}
}

func newError(status int, message string) *Error {
	code, _, _ := strings.Cut(message, ":")
	code = strings.TrimSpace(code)
	if i := strings.IndexByte(code, ' '); i >= 0 {
		code = code[:i]
	}

	return &Error{StatusCode: status, Code: code, Message: message}
}
