// Package config loads the process-wide defaults from the environment.
//
// A Config is immutable once built. Components receive a *Config (or a
// *Holder when they must observe reloads) instead of reading globals.
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const defaultSystemText = "You are a bot in a slack chat room. You might receive messages from multiple people. " +
	"Format bold text *like this*, italic text _like this_ and strikethrough text ~like this~. " +
	"Slack user IDs match the regex `<@U.*?>`. Your Slack user ID is <@{bot_user_id}>. " +
	"Each message has the author's Slack user ID prepended, like the regex `^<@U.*?>: ` followed by the message text."

// Store backends accepted by CONFIG_STORE_BACKEND.
const (
	BackendS3       = "s3"
	BackendDynamoDB = "dynamodb"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config holds the static defaults and deployment settings.
type Config struct {
	SystemText    string
	SlackAppToken string
	SlackBotToken string

	OpenAIAPIKey         string
	OpenAITimeoutSeconds int
	OpenAIModel          string
	OpenAITemperature    float64
	OpenAIAPIType        string
	OpenAIAPIBase        string
	OpenAIAPIVersion     string
	OpenAIDeploymentID   string

	LogLevel         string
	UseSlackLanguage bool

	// Multi-tenant deployment settings
	SlackSigningSecret string
	SlackClientID      string
	SlackClientSecret  string
	SlackScopes        []string
	SlackAPIURL        string
	PublicBaseURL      string

	StoreBackend      string
	S3Bucket          string
	S3Endpoint        string
	DynamoTable       string
	InstallationTable string
	DynamoEndpoint    string
	RedisAddr         string

	Port       string
	AdminToken string
}

// Defaults returns the configuration used when no environment override exists.
func Defaults() *Config {
	return &Config{
		SystemText:           defaultSystemText,
		OpenAITimeoutSeconds: 30,
		OpenAIModel:          "gpt-3.5-turbo",
		OpenAITemperature:    1,
		OpenAIAPIBase:        "https://api.openai.com/v1",
		LogLevel:             "DEBUG",
		SlackScopes: []string{
			"app_mentions:read", "channels:history", "groups:history", "im:history",
			"mpim:history", "chat:write.public", "chat:write", "users:read",
		},
		SlackAPIURL:       "https://slack.com/api/",
		StoreBackend:      BackendS3,
		DynamoTable:       "tenant-config",
		InstallationTable: "slack-installations",
		RedisAddr:         "localhost:6379",
		Port:              "3000",
	}
}

// Load reads .env (if present) and the process environment on top of
// Defaults. A value that cannot be converted to its expected type is
// reported in the returned slice and the key keeps its default.
func Load() (*Config, []error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return Defaults(), []error{fmt.Errorf("load environment: %w", err)}
	}
	return fromKoanf(k)
}

// FromMap builds a Config from explicit key/value pairs. Used by tests and
// by callers that already hold the environment as a map.
func FromMap(values map[string]string) (*Config, []error) {
	k := koanf.New(".")
	for key, v := range values {
		_ = k.Set(key, v)
	}
	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Config, []error) {
	l := loader{k: k}
	c := Defaults()

	l.str("SYSTEM_TEXT", &c.SystemText)
	l.str("SLACK_APP_TOKEN", &c.SlackAppToken)
	l.str("SLACK_BOT_TOKEN", &c.SlackBotToken)
	l.str("OPENAI_API_KEY", &c.OpenAIAPIKey)
	l.integer("OPENAI_TIMEOUT_SECONDS", &c.OpenAITimeoutSeconds)
	l.str("OPENAI_MODEL", &c.OpenAIModel)
	l.float("OPENAI_TEMPERATURE", &c.OpenAITemperature)
	l.str("OPENAI_API_TYPE", &c.OpenAIAPIType)
	l.str("OPENAI_API_BASE", &c.OpenAIAPIBase)
	l.str("OPENAI_API_VERSION", &c.OpenAIAPIVersion)
	l.str("OPENAI_DEPLOYMENT_ID", &c.OpenAIDeploymentID)
	l.str("SLACK_APP_LOG_LEVEL", &c.LogLevel)
	l.boolean("USE_SLACK_LANGUAGE", &c.UseSlackLanguage)

	l.str("SLACK_SIGNING_SECRET", &c.SlackSigningSecret)
	l.str("SLACK_CLIENT_ID", &c.SlackClientID)
	l.str("SLACK_CLIENT_SECRET", &c.SlackClientSecret)
	l.list("SLACK_SCOPES", &c.SlackScopes)
	l.str("SLACK_API_URL", &c.SlackAPIURL)
	l.str("PUBLIC_BASE_URL", &c.PublicBaseURL)

	l.str("CONFIG_STORE_BACKEND", &c.StoreBackend)
	l.str("OPENAI_S3_BUCKET_NAME", &c.S3Bucket)
	l.str("S3_ENDPOINT", &c.S3Endpoint)
	l.str("DYNAMODB_TABLE", &c.DynamoTable)
	l.str("INSTALLATION_TABLE", &c.InstallationTable)
	l.str("DYNAMODB_ENDPOINT", &c.DynamoEndpoint)
	l.str("REDIS_ADDR", &c.RedisAddr)
	l.str("PORT", &c.Port)
	l.str("ADMIN_TOKEN", &c.AdminToken)

	c.StoreBackend = strings.ToLower(c.StoreBackend)
	return c, l.errs
}

// SlogLevel maps SLACK_APP_LOG_LEVEL onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR", "CRITICAL":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type loader struct {
	k    *koanf.Koanf
	errs []error
}

func (l *loader) raw(key string) (string, bool) {
	if !l.k.Exists(key) {
		return "", false
	}
	return l.k.String(key), true
}

func (l *loader) fail(key, raw string) {
	l.errs = append(l.errs, fmt.Errorf("invalid format for environment variable %s: %q", key, raw))
}

func (l *loader) str(key string, dst *string) {
	if v, ok := l.raw(key); ok {
		*dst = v
	}
}

func (l *loader) integer(key string, dst *int) {
	v, ok := l.raw(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		l.fail(key, v)
		return
	}
	*dst = n
}

func (l *loader) float(key string, dst *float64) {
	v, ok := l.raw(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		l.fail(key, v)
		return
	}
	*dst = f
}

// boolean follows the "only 'true' is true" rule of the environment.
func (l *loader) boolean(key string, dst *bool) {
	if v, ok := l.raw(key); ok {
		*dst = strings.ToLower(strings.TrimSpace(v)) == "true"
	}
}

func (l *loader) list(key string, dst *[]string) {
	v, ok := l.raw(key)
	if !ok {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}

// Holder shares the current Config between components. Reload builds a
// new value and swaps the pointer; a Config is never mutated in place.
type Holder struct {
	cur  atomic.Pointer[Config]
	load func() (*Config, []error)
}

// NewHolder wraps an initial Config. load is used by Reload; nil means Load.
func NewHolder(c *Config, load func() (*Config, []error)) *Holder {
	if load == nil {
		load = Load
	}
	h := &Holder{load: load}
	h.cur.Store(c)
	return h
}

// Current returns the active Config.
func (h *Holder) Current() *Config {
	return h.cur.Load()
}

// Reload rebuilds the Config and swaps it in. Conversion errors are
// logged and returned; the new value is installed regardless.
func (h *Holder) Reload() []error {
	c, errs := h.load()
	for _, err := range errs {
		slog.Warn("config reload", "err", err)
	}
	h.cur.Store(c)
	return errs
}
