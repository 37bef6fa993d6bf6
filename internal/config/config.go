package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
)

const (
	defaultEnvFile           = ".env"
	defaultPort              = "8080"
	defaultBackendURL        = "http://localhost:8001"
	defaultBackendTimeout    = 8 * time.Second
	defaultReadHeaderTimeout = 10 * time.Second
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 15 * time.Second
	defaultIdleTimeout       = 60 * time.Second
	defaultRequestTimeout    = 30 * time.Second
	defaultTemplatesDir      = "templates"
	defaultPublicDir         = "public"
	defaultContentFile       = "content/site.yaml"
	defaultEnvironment       = "local"
	defaultSessionIdleTTL    = 2 * time.Hour
	defaultContactPerMinute  = 6
	defaultContactBurst      = 3
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Backend     BackendConfig
	Session     SessionConfig
	RateLimit   RateLimitConfig
}

// ServerConfig configures the HTTP server and the on-disk assets it serves.
type ServerConfig struct {
	Port              string
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	RequestTimeout    time.Duration
	TemplatesDir      string
	PublicDir         string
	ContentFile       string
	DevMode           bool
}

// BackendConfig points at the services API.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SessionConfig controls the signed visitor cookie and the lifetime of per-visitor form state.
type SessionConfig struct {
	SigningKey string
	Secure     bool
	IdleTTL    time.Duration
}

// RateLimitConfig throttles contact submissions per client address.
type RateLimitConfig struct {
	ContactPerMinute int
	ContactBurst     int
}

// Addr returns the listen address derived from the configured port.
func (s ServerConfig) Addr() string {
	return ":" + strings.TrimPrefix(s.Port, ":")
}

// IsProduction reports whether the environment name denotes a production deployment.
func (c Config) IsProduction() bool {
	switch strings.ToLower(c.Environment) {
	case "prod", "production":
		return true
	default:
		return false
	}
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.LookupEnv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables and explicit maps (in increasing precedence).
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	// Port resolution: prefer SIGMAR_WEB_PORT, then the platform-provided PORT.
	port := stringWithDefault(lookup, "SIGMAR_WEB_PORT", "")
	if port == "" {
		port = stringWithDefault(lookup, "PORT", defaultPort)
	}

	// REACT_APP_BACKEND_URL is honoured so existing deployment env files keep working.
	backendURL := stringWithDefault(lookup, "SIGMAR_BACKEND_URL", "")
	if backendURL == "" {
		backendURL = stringWithDefault(lookup, "REACT_APP_BACKEND_URL", defaultBackendURL)
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "SIGMAR_WEB_ENV", defaultEnvironment)),
		Server: ServerConfig{
			Port:              port,
			ReadHeaderTimeout: durationWithDefault(lookup, "SIGMAR_WEB_READ_HEADER_TIMEOUT", defaultReadHeaderTimeout),
			ReadTimeout:       durationWithDefault(lookup, "SIGMAR_WEB_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:      durationWithDefault(lookup, "SIGMAR_WEB_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:       durationWithDefault(lookup, "SIGMAR_WEB_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout:    durationWithDefault(lookup, "SIGMAR_WEB_REQUEST_TIMEOUT", defaultRequestTimeout),
			TemplatesDir:      stringWithDefault(lookup, "SIGMAR_WEB_TEMPLATES_DIR", defaultTemplatesDir),
			PublicDir:         stringWithDefault(lookup, "SIGMAR_WEB_PUBLIC_DIR", defaultPublicDir),
			ContentFile:       stringWithDefault(lookup, "SIGMAR_WEB_CONTENT_FILE", defaultContentFile),
			DevMode:           boolWithDefault(lookup, "SIGMAR_WEB_DEV", false) || boolWithDefault(lookup, "DEV", false),
		},
		Backend: BackendConfig{
			BaseURL: strings.TrimRight(strings.TrimSpace(backendURL), "/"),
			Timeout: durationWithDefault(lookup, "SIGMAR_BACKEND_TIMEOUT", defaultBackendTimeout),
		},
		Session: SessionConfig{
			SigningKey: stringWithDefault(lookup, "SIGMAR_WEB_SESSION_SIGNING_KEY", ""),
			IdleTTL:    durationWithDefault(lookup, "SIGMAR_WEB_SESSION_IDLE_TTL", defaultSessionIdleTTL),
		},
		RateLimit: RateLimitConfig{
			ContactPerMinute: intWithDefault(lookup, "SIGMAR_WEB_CONTACT_PER_MIN", defaultContactPerMinute),
			ContactBurst:     intWithDefault(lookup, "SIGMAR_WEB_CONTACT_BURST", defaultContactBurst),
		},
	}
	cfg.Session.Secure = cfg.IsProduction()

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	positive := []validation.Rule{validation.Required, validation.Min(time.Nanosecond)}
	errs := validation.Errors{
		"Server.Port":                validation.Validate(cfg.Server.Port, validation.Required, validation.By(validatePort)),
		"Server.ReadHeaderTimeout":   validation.Validate(cfg.Server.ReadHeaderTimeout, positive...),
		"Server.ReadTimeout":         validation.Validate(cfg.Server.ReadTimeout, positive...),
		"Server.WriteTimeout":        validation.Validate(cfg.Server.WriteTimeout, positive...),
		"Server.IdleTimeout":         validation.Validate(cfg.Server.IdleTimeout, positive...),
		"Server.RequestTimeout":      validation.Validate(cfg.Server.RequestTimeout, positive...),
		"Server.TemplatesDir":        validation.Validate(cfg.Server.TemplatesDir, validation.Required),
		"Backend.BaseURL":            validation.Validate(cfg.Backend.BaseURL, validation.Required, validation.By(validateBaseURL)),
		"Backend.Timeout":            validation.Validate(cfg.Backend.Timeout, positive...),
		"Session.IdleTTL":            validation.Validate(cfg.Session.IdleTTL, positive...),
		"RateLimit.ContactPerMinute": validation.Validate(cfg.RateLimit.ContactPerMinute, validation.Required, validation.Min(1)),
		"RateLimit.ContactBurst":     validation.Validate(cfg.RateLimit.ContactBurst, validation.Required, validation.Min(1)),
	}.Filter()
	if errs == nil {
		return nil
	}

	var verrs validation.Errors
	if !errors.As(errs, &verrs) {
		return errs
	}
	fields := make([]string, 0, len(verrs))
	for name := range verrs {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	return &ValidationError{fields: fields}
}

func validatePort(value any) error {
	port, _ := value.(string)
	n, err := strconv.Atoi(strings.TrimPrefix(port, ":"))
	if err != nil || n <= 0 || n > 65535 {
		return errors.New("must be a TCP port number")
	}
	return nil
}

func validateBaseURL(value any) error {
	raw, _ := value.(string)
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must be an http(s) URL")
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	values, err := godotenv.Read(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
