package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

const (
	defaultPort                      = "8080"
	defaultModel                     = "gpt-5-mini"
	defaultMaxClients                = 8
	defaultCacheLimit                = 2048
	defaultMaxPollWait               = 30 * time.Second
	defaultUpstreamRequestsPerMinute = 60
	defaultAskTimeout                = 60 * time.Second
)

type Config struct {
	port                      string
	sentryDSN                 string
	openAIAPIKey              string
	openAIAPIKeyFile          string
	model                     string
	maxClients                int
	cacheLimit                int
	maxPollWait               time.Duration
	upstreamRequestsPerMinute int
	askTimeout                time.Duration
	redisAddr                 string
	redisPassword             string
	allowedOrigins            []string
	googleCloudProject        string
	otelEnabled               bool
	env                       environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) OpenAIAPIKey() string {
	return c.openAIAPIKey
}

func (c *Config) OpenAIAPIKeyFile() string {
	return c.openAIAPIKeyFile
}

func (c *Config) Model() string {
	return c.model
}

// Max number of concurrent upstream calls
func (c *Config) MaxClients() int {
	return c.maxClients
}

func (c *Config) CacheLimit() int {
	return c.cacheLimit
}

func (c *Config) MaxPollWait() time.Duration {
	return c.maxPollWait
}

func (c *Config) UpstreamRequestsPerMinute() int {
	return c.upstreamRequestsPerMinute
}

func (c *Config) AskTimeout() time.Duration {
	return c.askTimeout
}

func (c *Config) RedisAddr() string {
	return c.redisAddr
}

func (c *Config) RedisPassword() string {
	return c.redisPassword
}

// Domain suffixes allowed to make cross origin requests
func (c *Config) AllowedOrigins() []string {
	return c.allowedOrigins
}

func (c *Config) GoogleCloudProject() string {
	return c.googleCloudProject
}

func (c *Config) OTelEnabled() bool {
	return c.otelEnabled
}

func (c *Config) EnvironmentName() string {
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
		"Config{env: %s, port: %s, model: %s, maxClients: %d, cacheLimit: %d, maxPollWait: %s, upstreamRequestsPerMinute: %d, askTimeout: %s, redis: %t, otel: %t, ...}",
		string(c.env),
		c.port,
		c.model,
		c.maxClients,
		c.cacheLimit,
		c.maxPollWait,
		c.upstreamRequestsPerMinute,
		c.askTimeout,
		c.redisAddr != "",
		c.otelEnabled,
	)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("ASKBOX_ENVIRONMENT")
	if !ok {
		return missingKey("ASKBOX_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: ASKBOX_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	port := getOrDefault("PORT", defaultPort)
	sentryDSN := os.Getenv("SENTRY_DSN")
	openAIAPIKey := os.Getenv("OPENAI_API_KEY")
	openAIAPIKeyFile := os.Getenv("OPENAI_API_KEY_FILE")
	model := getOrDefault("ASKBOX_MODEL", defaultModel)
	redisAddr := os.Getenv("REDIS_ADDR")
	redisPassword := os.Getenv("REDIS_PASSWORD")
	googleCloudProject := os.Getenv("GOOGLE_CLOUD_PROJECT")

	maxClients, err := positiveIntFromEnv("ASKBOX_MAX_CLIENTS", defaultMaxClients)
	if err != nil {
		return Config{}, err
	}

	// Zero is allowed, but drops every result
	cacheLimit, err := intFromEnv("ASKBOX_CACHE_LIMIT", defaultCacheLimit)
	if err != nil {
		return Config{}, err
	}
	if cacheLimit < 0 {
		return Config{}, fmt.Errorf("%w: ASKBOX_CACHE_LIMIT (%d)", ErrInvalidValue, cacheLimit)
	}

	upstreamRequestsPerMinute, err := positiveIntFromEnv("ASKBOX_UPSTREAM_REQUESTS_PER_MINUTE", defaultUpstreamRequestsPerMinute)
	if err != nil {
		return Config{}, err
	}

	maxPollWait, err := positiveDurationFromEnv("ASKBOX_MAX_POLL_WAIT", defaultMaxPollWait)
	if err != nil {
		return Config{}, err
	}

	askTimeout, err := positiveDurationFromEnv("ASKBOX_ASK_TIMEOUT", defaultAskTimeout)
	if err != nil {
		return Config{}, err
	}

	otelEnabled := false
	if rawOTelEnabled, ok := os.LookupEnv("OTEL_ENABLED"); ok && rawOTelEnabled != "" {
		otelEnabled, err = strconv.ParseBool(rawOTelEnabled)
		if err != nil {
			return Config{}, fmt.Errorf("%w: OTEL_ENABLED (%s)", ErrInvalidValue, rawOTelEnabled)
		}
	}

	allowedOrigins := []string{}
	for _, origin := range strings.Split(os.Getenv("ASKBOX_ALLOWED_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins = append(allowedOrigins, origin)
		}
	}

	if env == production || env == staging {
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
		if openAIAPIKey == "" && openAIAPIKeyFile == "" {
			return missingKey("OPENAI_API_KEY")
		}
	}

	return Config{
		port:                      port,
		sentryDSN:                 sentryDSN,
		openAIAPIKey:              openAIAPIKey,
		openAIAPIKeyFile:          openAIAPIKeyFile,
		model:                     model,
		maxClients:                maxClients,
		cacheLimit:                cacheLimit,
		maxPollWait:               maxPollWait,
		upstreamRequestsPerMinute: upstreamRequestsPerMinute,
		askTimeout:                askTimeout,
		redisAddr:                 redisAddr,
		redisPassword:             redisPassword,
		allowedOrigins:            allowedOrigins,
		googleCloudProject:        googleCloudProject,
		otelEnabled:               otelEnabled,
		env:                       env,
	}, nil
}

func getOrDefault(key string, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, raw)
	}
	return value, nil
}

func positiveIntFromEnv(key string, fallback int) (int, error) {
	value, err := intFromEnv(key, fallback)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: %s (%d)", ErrInvalidValue, key, value)
	}
	return value, nil
}

func positiveDurationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, raw)
	}
	return value, nil
}
