package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

const environmentKey = "MEMOCACHE_ENVIRONMENT"

type rawConfig struct {
	Port                    string   `env:"PORT" envDefault:"8123"`
	OriginURL               string   `env:"ORIGIN_URL"`
	OriginAPIKey            string   `env:"ORIGIN_API_KEY"`
	OriginRequestsPerSecond float64  `env:"ORIGIN_REQUESTS_PER_SECOND" envDefault:"10"`
	CacheCapacity           int      `env:"CACHE_CAPACITY" envDefault:"1024"`
	CloudSQLUnixSocketPath  string   `env:"CLOUDSQL_UNIX_SOCKET"`
	DBUsername              string   `env:"DB_USERNAME"`
	DBPassword              string   `env:"DB_PASSWORD"`
	SentryDSN               string   `env:"SENTRY_DSN"`
	GCPProjectID            string   `env:"GCP_PROJECT_ID"`
	CORSAllowedDomains      []string `env:"CORS_ALLOWED_DOMAINS" envSeparator:","`
}

type Config struct {
	raw rawConfig
	env environment
}

func (c *Config) Port() string {
	return c.raw.Port
}

func (c *Config) OriginURL() string {
	return c.raw.OriginURL
}

func (c *Config) OriginAPIKey() string {
	return c.raw.OriginAPIKey
}

func (c *Config) OriginRequestsPerSecond() float64 {
	return c.raw.OriginRequestsPerSecond
}

// Maximum number of entries kept in the cache. Non-positive values retain nothing.
func (c *Config) CacheCapacity() int {
	return c.raw.CacheCapacity
}

func (c *Config) CloudSQLUnixSocketPath() string {
	return c.raw.CloudSQLUnixSocketPath
}

func (c *Config) DBUsername() string {
	return c.raw.DBUsername
}

func (c *Config) DBPassword() string {
	return c.raw.DBPassword
}

func (c *Config) SentryDSN() string {
	return c.raw.SentryDSN
}

func (c *Config) GCPProjectID() string {
	return c.raw.GCPProjectID
}

// CORSAllowedDomains are domain suffixes browsers may call the API from
func (c *Config) CORSAllowedDomains() []string {
	return c.raw.CORSAllowedDomains
}

func (c *Config) Environment() string {
	return string(c.env)
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, port: %s, originURL: %s, cacheCapacity: %d, originRequestsPerSecond: %g, ...}",
		string(c.env), c.raw.Port, c.raw.OriginURL, c.raw.CacheCapacity, c.raw.OriginRequestsPerSecond,
	)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv(environmentKey)
	if !ok {
		return missingKey(environmentKey)
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, environmentKey, rawEnv)
	}

	raw, err := parseRawConfig()
	if err != nil {
		return Config{}, err
	}

	if env == production || env == staging {
		required := []struct {
			key   string
			value string
		}{
			{"ORIGIN_URL", raw.OriginURL},
			{"CLOUDSQL_UNIX_SOCKET", raw.CloudSQLUnixSocketPath},
			{"DB_USERNAME", raw.DBUsername},
			{"DB_PASSWORD", raw.DBPassword},
			{"SENTRY_DSN", raw.SentryDSN},
		}
		for _, r := range required {
			if r.value == "" {
				return missingKey(r.key)
			}
		}
	}

	if raw.OriginRequestsPerSecond <= 0 {
		return Config{}, fmt.Errorf("%w: ORIGIN_REQUESTS_PER_SECOND must be positive (%g)", ErrInvalidValue, raw.OriginRequestsPerSecond)
	}

	return Config{
		raw: raw,
		env: env,
	}, nil
}

func parseRawConfig() (rawConfig, error) {
	raw, err := env.ParseAs[rawConfig]()
	if err != nil {
		return rawConfig{}, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	return raw, nil
}
