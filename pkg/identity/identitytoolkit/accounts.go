package identitytoolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aussiebroadwan/classroom/pkg/identity"
	"github.com/aussiebroadwan/classroom/pkg/jwtx"
)

const providerPassword = "password"

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
	TenantID          string `json:"tenantId,omitempty"`
}

type idpRequest struct {
	PostBody            string `json:"postBody"`
	RequestURI          string `json:"requestUri"`
	ReturnSecureToken   bool   `json:"returnSecureToken"`
	ReturnIdpCredential bool   `json:"returnIdpCredential"`
	TenantID            string `json:"tenantId,omitempty"`
}

type oobRequest struct {
	RequestType string `json:"requestType"`
	Email       string `json:"email"`
	TenantID    string `json:"tenantId,omitempty"`
}

// authResponse covers signInWithPassword, signUp and signInWithIdp.
type authResponse struct {
	LocalID       string `json:"localId"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName"`
	EmailVerified bool   `json:"emailVerified"`
	ProviderID    string `json:"providerId"`
	IDToken       string `json:"idToken"`
	RefreshToken  string `json:"refreshToken"`
	ExpiresIn     string `json:"expiresIn"` // seconds, as a string

	// signInWithIdp reports some failures with a 200 and these fields.
	NeedConfirmation bool   `json:"needConfirmation"`
	ErrorMessage     string `json:"errorMessage"`
}

// SignInWithPassword implements identity.Provider.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*identity.Credential, error) {
	var resp authResponse
	err := p.post(ctx, "signInWithPassword", passwordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
		TenantID:          p.tenantID,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return p.credential(resp, providerPassword), nil
}

// SignUp implements identity.Provider.
func (p *Provider) SignUp(ctx context.Context, email, password string) (*identity.Credential, error) {
	var resp authResponse
	err := p.post(ctx, "signUp", passwordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
		TenantID:          p.tenantID,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return p.credential(resp, providerPassword), nil
}

// SignInWithIdP exchanges an externally obtained ID or access token.
func (p *Provider) SignInWithIdP(ctx context.Context, fc identity.FederatedCredential) (*identity.Credential, error) {
	postBody := url.Values{}
	if fc.IDToken != "" {
		postBody.Set("id_token", fc.IDToken)
	}
	if fc.AccessToken != "" {
		postBody.Set("access_token", fc.AccessToken)
	}
	postBody.Set("providerId", fc.ProviderID)

	var resp authResponse
	err := p.post(ctx, "signInWithIdp", idpRequest{
		PostBody:            postBody.Encode(),
		RequestURI:          p.requestURI,
		ReturnSecureToken:   true,
		ReturnIdpCredential: true,
		TenantID:            p.tenantID,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.ErrorMessage != "" {
		return nil, newError(http.StatusOK, resp.ErrorMessage)
	}
	if resp.NeedConfirmation {
		return nil, newError(http.StatusOK, "NEED_CONFIRMATION : account exists with a different sign-in method")
	}

	return p.credential(resp, fc.ProviderID), nil
}

// SendPasswordReset implements identity.Provider.
func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	return p.post(ctx, "sendOobCode", oobRequest{
		RequestType: "PASSWORD_RESET",
		Email:       email,
		TenantID:    p.tenantID,
	}, nil)
}

// credential converts an auth response, preferring the ID token's own
// claims for expiry since expiresIn is relative to an unknown send time.
func (p *Provider) credential(resp authResponse, fallbackProvider string) *identity.Credential {
	id := identity.Identity{
		UID:           resp.LocalID,
		Email:         resp.Email,
		DisplayName:   resp.DisplayName,
		EmailVerified: resp.EmailVerified,
		ProviderID:    resp.ProviderID,
	}
	if id.ProviderID == "" {
		id.ProviderID = fallbackProvider
	}

	expiresAt := p.expiresAt(resp.ExpiresIn)

	if claims, err := jwtx.Decode(resp.IDToken); err == nil {
		if id.UID == "" {
			id.UID = claims.UID()
		}
		if id.Email == "" {
			id.Email = claims.Email
		}
		if id.DisplayName == "" {
			id.DisplayName = claims.Name
		}
		id.EmailVerified = id.EmailVerified || claims.EmailVerified
		if exp := claims.Expiry(); !exp.IsZero() {
			expiresAt = exp
		}
	}

	return &identity.Credential{
		Identity: id,
		Token: identity.Token{
			IDToken:      resp.IDToken,
			RefreshToken: resp.RefreshToken,
			ExpiresAt:    expiresAt,
		},
	}
}

func (p *Provider) expiresAt(expiresIn string) time.Time {
	secs, err := strconv.Atoi(expiresIn)
	if err != nil || secs <= 0 {
		return p.now().Add(jwtx.DefaultIDTokenTTL)
	}
	return p.now().Add(time.Duration(secs) * time.Second)
}

// post sends a JSON body to accounts:<method> and decodes a 200 into out.
func (p *Provider) post(ctx context.Context, method string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(method), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return parseError(resp.StatusCode, bodyBytes)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
