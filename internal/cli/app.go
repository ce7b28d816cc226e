// Package cli is the classroom developer CLI: it signs in with the
// configured credentials and issues authenticated backend requests.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/classroom/pkg/apiclient"
	"github.com/aussiebroadwan/classroom/pkg/identity"
	"github.com/aussiebroadwan/classroom/pkg/identity/identitytoolkit"
	"github.com/aussiebroadwan/classroom/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// BuildVersion should be set at build time via ldflags.
var BuildVersion = "v0.1.0"

var errNoProvider = errors.New("CLASSROOM_API_KEY is required to sign in")

// Options carries the process surroundings. Provider and HTTPClient
// replace the configured identity provider and transport (tests).
type Options struct {
	Environ    map[string]string
	Stdout     io.Writer
	Stderr     io.Writer
	Provider   identity.Provider
	HTTPClient *http.Client
}

// App wires an Oracle and an apiclient.Client from Config.
type App struct {
	cfg    Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer

	registry *prometheus.Registry
	oracle   *identity.Oracle
	client   *apiclient.Client

	hasProvider bool
}

// New builds an App. The identity provider is only required once a command
// needs to sign in.
func New(cfg Config, opts Options) (*App, error) {
	app := &App{
		cfg:    cfg,
		stdout: opts.Stdout,
		stderr: opts.Stderr,
		logger: slogx.New(slogx.Config{
			Service: "classroom",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}, opts.Stderr),
		registry: prometheus.NewRegistry(),
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	provider := opts.Provider
	if provider == nil && cfg.APIKey != "" {
		p, err := identitytoolkit.New(identitytoolkit.Config{
			APIKey:       cfg.APIKey,
			TenantID:     cfg.TenantID,
			EmulatorHost: cfg.EmulatorHost,
			HTTPClient:   httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create identity provider: %w", err)
		}
		provider = p
	}
	app.hasProvider = provider != nil

	app.oracle = identity.NewOracle(provider, identity.Config{Logger: app.logger})
	app.oracle.Subscribe(func(id *identity.Identity) {
		if id == nil {
			app.logger.Debug("session state", "signed_in", false)
			return
		}
		app.logger.Debug("session state", "signed_in", true, "uid", id.UID)
	})

	app.client = apiclient.New(cfg.Origin, app.oracle)
	app.client.HTTPClient = httpClient
	app.client.Metrics = apiclient.NewCollector(app.registry)
	if cfg.RateLimit > 0 {
		app.client.Limiter = apiclient.NewLimiter(apiclient.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit,
			Window:            time.Second,
			Burst:             cfg.RateLimit,
		})
	}

	return app, nil
}

// Main is the whole CLI: parse config, run one command, report metrics.
func Main(ctx context.Context, args []string, opts Options) error {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}

	cfg, rest, err := LoadConfig(opts.Environ, args, opts.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	app, err := New(cfg, opts)
	if err != nil {
		return err
	}
	return app.Run(ctx, rest)
}

// Run signs in (unless the command creates the account) and dispatches.
func (app *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(app.stderr, usage)
		return errors.New("no command given")
	}

	ctx = slogx.WithContext(ctx, app.logger)
	if app.cfg.Metrics {
		defer app.writeMetrics()
	}

	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	if len(args)-1 < cmd.minArgs {
		return fmt.Errorf("usage: classroom %s", cmd.usage)
	}

	if cmd.signIn {
		if err := app.signIn(ctx); err != nil {
			return err
		}
		if id := app.oracle.CurrentIdentity(); id != nil {
			ctx = slogx.WithIdentity(ctx, id.UID)
		}
	}

	err := explain(cmd.run(ctx, app, args[1:]))

	if cmd.signIn {
		if signOutErr := app.oracle.SignOut(ctx); signOutErr != nil {
			app.logger.Warn("sign-out failed", "error", signOutErr)
		}
	}
	return err
}

// signIn establishes a session from the configured credentials, if any.
func (app *App) signIn(ctx context.Context) error {
	switch {
	case app.cfg.Email != "" && app.cfg.Password != "":
		if !app.hasProvider {
			return errNoProvider
		}
		_, err := app.oracle.SignInWithPassword(ctx, app.cfg.Email, app.cfg.Password)
		return err

	case app.cfg.IDToken != "":
		if !app.hasProvider {
			return errNoProvider
		}
		_, err := app.oracle.SignInWithFederatedCredential(ctx, identity.FederatedCredential{
			IDToken: app.cfg.IDToken,
		})
		return err
	}

	app.logger.Debug("no credentials configured, running anonymously")
	return nil
}

// explain adds a hint to backend rejections.
func explain(err error) error {
	var httpErr *apiclient.HTTPError
	if !errors.As(err, &httpErr) {
		return err
	}
	switch {
	case httpErr.IsUnauthorized():
		return fmt.Errorf("%w: set CLASSROOM_EMAIL and CLASSROOM_PASSWORD or CLASSROOM_ID_TOKEN for an account with access", err)
	case httpErr.IsNotFound():
		return fmt.Errorf("%w: no such resource", err)
	}
	return err
}

func (app *App) writeMetrics() {
	families, err := app.registry.Gather()
	if err != nil {
		app.logger.Warn("failed to gather metrics", "error", err)
		return
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(app.stderr, mf); err != nil {
			app.logger.Warn("failed to write metrics", "error", err)
			return
		}
	}
}
