package identitytoolkit_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/classroom/pkg/identity"
	"github.com/aussiebroadwan/classroom/pkg/identity/identitytoolkit"
	"github.com/aussiebroadwan/classroom/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-api-key"

// mintIDToken signs an ID token the way the real service shapes them.
func mintIDToken(t *testing.T, uid, email, signIn string, exp time.Time) string {
	t.Helper()

	signer, err := jwtx.NewSignerHS256([]byte("toolkit-test"))
	require.NoError(t, err)

	now := exp.Add(-time.Hour)
	token, err := signer.Sign(jwtx.NewIDClaims(jwtx.IDClaimsParams{
		Issuer:        "https://securetoken.google.com/demo",
		Audience:      "demo",
		Subject:       uid,
		Email:         email,
		EmailVerified: true,
		SignIn:        signIn,
		TTL:           time.Hour,
		Now:           now,
	}))
	require.NoError(t, err)
	return token
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"status":  "INVALID_ARGUMENT",
		},
	})
}

// newProvider starts a fake API whose handler switches on the request path.
func newProvider(t *testing.T, cfg identitytoolkit.Config, handler http.HandlerFunc) *identitytoolkit.Provider {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg.APIKey = testAPIKey
	cfg.BaseURL = srv.URL + "/v1"
	cfg.TokenURL = srv.URL + "/token"
	cfg.HTTPClient = srv.Client()

	p, err := identitytoolkit.New(cfg)
	require.NoError(t, err)
	return p
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := identitytoolkit.New(identitytoolkit.Config{})
	require.Error(t, err)
}

func TestSignInWithPassword(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	idToken := mintIDToken(t, "uid-ada", "ada@example.com", "password", exp)

	p := newProvider(t, identitytoolkit.Config{TenantID: "school-1"}, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/accounts:signInWithPassword", r.URL.Path)
		require.Equal(t, testAPIKey, r.URL.Query().Get("key"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body := decodeBody(t, r)
		require.Equal(t, "ada@example.com", body["email"])
		require.Equal(t, "correct horse", body["password"])
		require.Equal(t, true, body["returnSecureToken"])
		require.Equal(t, "school-1", body["tenantId"])

		writeJSON(w, http.StatusOK, map[string]any{
			"localId":      "uid-ada",
			"email":        "ada@example.com",
			"displayName":  "Ada",
			"idToken":      idToken,
			"refreshToken": "refresh-1",
			"expiresIn":    "3600",
			"registered":   true,
		})
	})

	cred, err := p.SignInWithPassword(context.Background(), "ada@example.com", "correct horse")
	require.NoError(t, err)

	require.Equal(t, identity.Identity{
		UID:           "uid-ada",
		Email:         "ada@example.com",
		DisplayName:   "Ada",
		EmailVerified: true,
		ProviderID:    "password",
	}, cred.Identity)
	require.Equal(t, idToken, cred.Token.IDToken)
	require.Equal(t, "refresh-1", cred.Token.RefreshToken)
	require.True(t, cred.Token.ExpiresAt.Equal(exp), "expiry comes from the token's exp claim")
}

func TestSignInWithPasswordErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		message string
		code    string
	}{
		{"bad credentials", "INVALID_LOGIN_CREDENTIALS", identitytoolkit.CodeInvalidLoginCredentials},
		{"message with detail", "TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account has been temporarily disabled", identitytoolkit.CodeTooManyAttempts},
		{"disabled user", "USER_DISABLED", identitytoolkit.CodeUserDisabled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newProvider(t, identitytoolkit.Config{}, func(w http.ResponseWriter, r *http.Request) {
				writeAPIError(w, http.StatusBadRequest, tc.message)
			})

			_, err := p.SignInWithPassword(context.Background(), "ada@example.com", "nope")
			var apiErr *identitytoolkit.Error
			require.ErrorAs(t, err, &apiErr)
			require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
			require.Equal(t, tc.code, apiErr.Code)
			require.Equal(t, tc.message, apiErr.Message)
		})
	}
}

func TestSignUp(t *testing.T) {
	t.Parallel()

	t.Run("creates account", func(t *testing.T) {
		idToken := mintIDToken(t, "uid-new", "new@example.com", "password", time.Now().Add(time.Hour))

		p := newProvider(t, identitytoolkit.Config{}, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/accounts:signUp", r.URL.Path)
			body := decodeBody(t, r)
			require.Equal(t, "new@example.com", body["email"])
			_, hasTenant := body["tenantId"]
			require.False(t, hasTenant)

			writeJSON(w, http.StatusOK, map[string]any{
				"localId":      "uid-new",
				"email":        "new@example.com",
				"idToken":      idToken,
				"refreshToken": "refresh-new",
				"expiresIn":    "3600",
			})
		})

		cred, err := p.SignUp(context.Background(), "new@example.com", "secret123")
		require.NoError(t, err)
		require.Equal(t, "uid-new", cred.Identity.UID)
		require.Equal(t, "password", cred.Identity.ProviderID)
	})

	t.Run("weak password", func(t *testing.T) {
		p := newProvider(t, identitytoolkit.Config{}, func(w http.ResponseWriter, r *http.Request) {
			writeAPIError(w, http.StatusBadRequest, "WEAK_PASSWORD : Password should be at least 6 characters")
		})

		_, err := p.SignUp(context.Background(), "new@example.com", "123")
		var apiErr *identitytoolkit.Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, identitytoolkit.CodeWeakPassword, apiErr.Code)
		require.NotErrorIs(t, err, identity.ErrSessionRevoked)
	})
}

func TestSignInWithIdP(t *testing.T) {
	t.Parallel()

	t.Run("exchanges id token", func(t *testing.T) {
		idToken := mintIDToken(t, "uid-g", "grace@example.com", "google.com", time.Now().Add(time.Hour))

		p := newProvider(t, identitytoolkit.Config{RequestURI: "https://classroom.example.com"}, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/accounts:signInWithIdp", r.URL.Path)

			body := decodeBody(t, r)
			require.Equal(t, "https://classroom.example.com", body["requestUri"])
			require.Equal(t, true, body["returnSecureToken"])
			require.Equal(t, true, body["returnIdpCredential"])

			postBody, err := url.ParseQuery(body["postBody"].(string))
			require.NoError(t, err)
			require.Equal(t, "google-widget-token", postBody.Get("id_token"))
			require.Equal(t, "google.com", postBody.Get("providerId"))
			require.Empty(t, postBody.Get("access_token"))

			writeJSON(w, http.StatusOK, map[string]any{
				"providerId":    "google.com",
				"localId":       "uid-g",
				"email":         "grace@example.com",
				"emailVerified": true,
				"displayName":   "Grace",
				"idToken":       idToken,
				"refreshToken":  "refresh-g",
				"expiresIn":     "3600",
			})
		})

		cred, err := p.SignInWithIdP(context.Background(), identity.FederatedCredential{
			ProviderID: "google.com",
			IDToken:    "google-widget-token",
		})
		require.NoError(t, err)
		require.Equal(t, "uid-g", cred.Identity.UID)
		require.Equal(t, "google.com", cred.Identity.ProviderID)
		require.True(t, cred.Identity.EmailVerified)
	})

	t.Run("error reported in a 200", func(t *testing.T) {
		p := newProvider(t, identitytoolkit.Config{}, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"errorMessage": "FEDERATED_USER_ID_ALREADY_LINKED",
			})
		})

		_, err := p.SignInWithIdP(context.Background(), identity.FederatedCredential{
			ProviderID:  "google.com",
			AccessToken: "ya29.token",
		})
		var apiErr *identitytoolkit.Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, "FEDERATED_USER_ID_ALREADY_LINKED", apiErr.Code)
	})

	t.Run("invalid widget token", func(t *testing.T) {
		p := newProvider(t, identitytoolkit.Config{}, func(w http.ResponseWriter, r *http.Request) {
			writeAPIError(w, http.StatusBadRequest, "INVALID_IDP_RESPONSE : Invalid Idp Response: id_token is expired")
		})

		_, err := p.SignInWithIdP(context.Background(), identity.FederatedCredential{
			ProviderID: "google.com",
			IDToken:    "expired",
		})
		var apiErr *identitytoolkit.Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, identitytoolkit.CodeInvalidIDPResponse, apiErr.Code)
	})
}

func TestSendPasswordReset(t *testing.T) {
	t.Parallel()

	t.Run("requests reset email", func(t *testing.T) {
		p := newProvider(t, identitytoolkit.Config{}, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/accounts:sendOobCode", r.URL.Path)
			body := decodeBody(t, r)
			require.Equal(t, "PASSWORD_RESET", body["requestType"])
			require.Equal(t, "ada@example.com", body["email"])
			writeJSON(w, http.StatusOK, map[string]any{"email": "ada@example.com"})
		})

		require.NoError(t, p.SendPasswordReset(context.Background(), "ada@example.com"))
	})

	t.Run("unknown address", func(t *testing.T) {
		p := newProvider(t, identitytoolkit.Config{}, func(w http.ResponseWriter, r *http.Request) {
			writeAPIError(w, http.StatusBadRequest, "EMAIL_NOT_FOUND")
		})

		err := p.SendPasswordReset(context.Background(), "nobody@example.com")
		var apiErr *identitytoolkit.Error
		require.ErrorAs(t, err, &apiErr)
		require.Equal(t, identitytoolkit.CodeEmailNotFound, apiErr.Code)
	})
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	t.Run("refresh grant", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		idToken := mintIDToken(t, "uid-ada", "ada@example.com", "password", exp)

		p := newProvider(t, identitytoolkit.Config{}, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/token", r.URL.Path)
			require.Equal(t, testAPIKey, r.URL.Query().Get("key"))

			raw, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			form, err := url.ParseQuery(string(raw))
			require.NoError(t, err)
			require.Equal(t, "refresh_token", form.Get("grant_type"))
			require.Equal(t, "refresh-1", form.Get("refresh_token"))

			writeJSON(w, http.StatusOK, map[string]any{
				"access_token":  idToken,
				"expires_in":    "3600",
				"token_type":    "Bearer",
				"refresh_token": "refresh-2",
				"id_token":      idToken,
				"user_id":       "uid-ada",
				"project_id":    "demo",
			})
		})

		tok, err := p.Refresh(context.Background(), "refresh-1")
		require.NoError(t, err)
		require.Equal(t, idToken, tok.IDToken)
		require.Equal(t, "refresh-2", tok.RefreshToken)
		require.True(t, tok.ExpiresAt.Equal(exp))
	})

	t.Run("revoked session", func(t *testing.T) {
		for _, code := range []string{"TOKEN_EXPIRED", "USER_DISABLED", "USER_NOT_FOUND", "INVALID_REFRESH_TOKEN"} {
			p := newProvider(t, identitytoolkit.Config{}, func(w http.ResponseWriter, r *http.Request) {
				writeAPIError(w, http.StatusBadRequest, code)
			})

			_, err := p.Refresh(context.Background(), "refresh-1")
			require.ErrorIs(t, err, identity.ErrSessionRevoked, code)
		}
	})

	t.Run("oauth style error", func(t *testing.T) {
		p := newProvider(t, identitytoolkit.Config{}, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":             "invalid_grant",
				"error_description": "bad refresh token",
			})
		})

		_, err := p.Refresh(context.Background(), "refresh-1")
		require.ErrorIs(t, err, identity.ErrSessionRevoked)
	})

	t.Run("outage is not a revocation", func(t *testing.T) {
		p := newProvider(t, identitytoolkit.Config{}, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, "<html>unavailable</html>")
		})

		_, err := p.Refresh(context.Background(), "refresh-1")
		require.Error(t, err)
		require.NotErrorIs(t, err, identity.ErrSessionRevoked)
	})

	t.Run("empty refresh token", func(t *testing.T) {
		p := newProvider(t, identitytoolkit.Config{}, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		})

		_, err := p.Refresh(context.Background(), "")
		require.ErrorIs(t, err, identity.ErrSessionRevoked)
	})
}

func TestEmulatorHost(t *testing.T) {
	t.Parallel()

	idToken := mintIDToken(t, "uid-emu", "emu@example.com", "password", time.Now().Add(time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/identitytoolkit.googleapis.com/v1/accounts:signUp", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"localId":      "uid-emu",
			"idToken":      idToken,
			"refreshToken": "r",
			"expiresIn":    "3600",
		})
	}))
	t.Cleanup(srv.Close)

	p, err := identitytoolkit.New(identitytoolkit.Config{
		APIKey:       "any",
		EmulatorHost: strings.TrimPrefix(srv.URL, "http://"),
		HTTPClient:   srv.Client(),
	})
	require.NoError(t, err)

	cred, err := p.SignUp(context.Background(), "emu@example.com", "secret123")
	require.NoError(t, err)
	require.Equal(t, "uid-emu", cred.Identity.UID)
	require.Equal(t, "emu@example.com", cred.Identity.Email, "filled from the token claims")
}

// The provider plugs straight into an Oracle.
func TestOracleWithToolkit(t *testing.T) {
	t.Parallel()

	idToken := mintIDToken(t, "uid-ada", "ada@example.com", "password", time.Now().Add(time.Hour))
	p := newProvider(t, identitytoolkit.Config{}, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/accounts:signInWithPassword":
			writeJSON(w, http.StatusOK, map[string]any{
				"localId":      "uid-ada",
				"idToken":      idToken,
				"refreshToken": "refresh-1",
				"expiresIn":    "3600",
			})
		default:
			http.NotFound(w, r)
		}
	})

	o := identity.NewOracle(p, identity.Config{})
	_, err := o.SignInWithPassword(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)

	tok, ok := o.FreshToken(context.Background())
	require.True(t, ok)
	require.Equal(t, idToken, tok)
}
