// Package identitytoolkit implements identity.Provider against the Identity
// Toolkit v1 REST API (email/password, federated sign-in, password reset)
// and the securetoken refresh endpoint.
//
// Every call is stateless: the identity.Oracle owns the session and passes
// refresh tokens back in.
package identitytoolkit

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/classroom/pkg/identity"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL    = "https://identitytoolkit.googleapis.com/v1"
	DefaultTokenURL   = "https://securetoken.googleapis.com/v1/token"
	DefaultRequestURI = "http://localhost"
)

// Config configures a Provider. Only APIKey is required.
type Config struct {
	APIKey string

	// TenantID scopes every call to a tenant. Optional.
	TenantID string

	// EmulatorHost ("localhost:9099") points both endpoints at a local
	// auth emulator. Ignored when BaseURL/TokenURL are set explicitly.
	EmulatorHost string

	// BaseURL and TokenURL override the production endpoints (tests).
	BaseURL  string
	TokenURL string

	// RequestURI is sent with federated sign-ins. Default: DefaultRequestURI.
	RequestURI string

	HTTPClient *http.Client
}

// Provider talks to the Identity Toolkit REST API.
type Provider struct {
	apiKey     string
	tenantID   string
	baseURL    string
	requestURI string
	httpClient *http.Client
	oauth      *oauth2.Config
	now        func() time.Time
}

var _ identity.Provider = (*Provider)(nil)

// New validates cfg and builds a Provider.
func New(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("identitytoolkit: api key is required")
	}

	baseURL, tokenURL := DefaultBaseURL, DefaultTokenURL
	if host := strings.TrimSpace(cfg.EmulatorHost); host != "" {
		baseURL = "http://" + host + "/identitytoolkit.googleapis.com/v1"
		tokenURL = "http://" + host + "/securetoken.googleapis.com/v1/token"
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	if cfg.TokenURL != "" {
		tokenURL = cfg.TokenURL
	}

	if cfg.RequestURI == "" {
		cfg.RequestURI = DefaultRequestURI
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Provider{
		apiKey:     cfg.APIKey,
		tenantID:   cfg.TenantID,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		requestURI: cfg.RequestURI,
		httpClient: cfg.HTTPClient,
		oauth: &oauth2.Config{
			Endpoint: oauth2.Endpoint{
				TokenURL:  withKey(tokenURL, cfg.APIKey),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		now: time.Now,
	}, nil
}

// endpoint builds the URL of an accounts:<method> call.
func (p *Provider) endpoint(method string) string {
	return withKey(p.baseURL+"/accounts:"+method, p.apiKey)
}

func withKey(rawURL, key string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "key=" + url.QueryEscape(key)
}
