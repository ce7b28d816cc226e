package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is read from the environment and then overridden by flags.
type Config struct {
	Origin string `env:"CLASSROOM_ORIGIN" envDefault:"http://localhost:8080"`

	APIKey       string `env:"CLASSROOM_API_KEY"`
	TenantID     string `env:"CLASSROOM_TENANT_ID"`
	EmulatorHost string `env:"FIREBASE_AUTH_EMULATOR_HOST"`

	// Credentials used to sign in before running a command. Both empty
	// means the command runs anonymously.
	Email    string `env:"CLASSROOM_EMAIL"`
	Password string `env:"CLASSROOM_PASSWORD"`
	IDToken  string `env:"CLASSROOM_ID_TOKEN"` // federated (google.com) ID token

	HTTPTimeout time.Duration `env:"CLASSROOM_HTTP_TIMEOUT" envDefault:"30s"`
	RateLimit   int           `env:"CLASSROOM_RATE_LIMIT"` // requests per second, 0 = unlimited

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// Metrics prints the request metrics to stderr on exit. Flag only.
	Metrics bool `env:"-"`
}

// LoadConfig parses environ (KEY=value map) and then args. It returns the
// positional arguments left after the flags.
func LoadConfig(environ map[string]string, args []string, stderr io.Writer) (Config, []string, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, nil, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("classroom", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	fs.StringVar(&cfg.Origin, "origin", cfg.Origin, "backend origin")
	fs.StringVar(&cfg.Email, "email", cfg.Email, "sign in with this email")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or text")
	fs.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout per request")
	fs.IntVar(&cfg.RateLimit, "rate", cfg.RateLimit, "max requests per second (0 = unlimited)")
	fs.BoolVar(&cfg.Metrics, "metrics", false, "print request metrics to stderr on exit")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, nil, err
	}

	if cfg.Origin == "" {
		return Config{}, nil, errors.New("origin is required")
	}
	if cfg.Password != "" && cfg.Email == "" {
		return Config{}, nil, errors.New("CLASSROOM_PASSWORD is set without CLASSROOM_EMAIL")
	}

	return cfg, fs.Args(), nil
}

const usage = `usage: classroom [flags] <command> [args]

commands:
  whoami                          show the signed-in identity
  get PATH                        GET /api/PATH
  post PATH JSON                  POST JSON to /api/PATH
  put PATH JSON                   PUT JSON to /api/PATH
  delete PATH                     DELETE /api/PATH
  upload PATH FILE [key=value]..  multipart upload of FILE
  signup                          create the CLASSROOM_EMAIL account
  reset EMAIL                     send a password reset email

flags:
`
