package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/samvad-hq/samvad-integration-client/pkg/httpclient"
)

// Config holds the application configuration loaded from flags, environment variables and defaults.
type Config struct {
	AppName  string `mapstructure:"app_name" validate:"required"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	BaseURL          string        `mapstructure:"base_url" validate:"required,url"`
	AuthScheme       string        `mapstructure:"auth_scheme" validate:"oneof=bearer basic apikey none"`
	APIKeyHeader     string        `mapstructure:"api_key_header" validate:"required_if=AuthScheme apikey"`
	Token            string        `mapstructure:"token"`
	APIVersion       string        `mapstructure:"api_version"`
	LoginCredentials string        `mapstructure:"login_credentials"`
	TimeoutSeconds   int64         `mapstructure:"timeout_seconds" validate:"gte=0"`
	Timeout          time.Duration `mapstructure:"-"`

	CallsFile          string        `mapstructure:"calls_file" validate:"required"`
	PublishersFile     string        `mapstructure:"publishers_file"`
	RunIntervalSeconds int64         `mapstructure:"run_interval" validate:"gte=0"`
	RunInterval        time.Duration `mapstructure:"-"`

	SessionStore           string        `mapstructure:"session_store" validate:"oneof=bbolt none"`
	SessionPath            string        `mapstructure:"session_path" validate:"required_if=SessionStore bbolt"`
	SessionTTLSeconds      int64         `mapstructure:"session_ttl_seconds" validate:"gt=0"`
	SessionCleanupSeconds  int64         `mapstructure:"session_cleanup_interval_seconds" validate:"gt=0"`
	SessionTTL             time.Duration `mapstructure:"-"`
	SessionCleanupInterval time.Duration `mapstructure:"-"`

	MetricsAddr string `mapstructure:"metrics_addr"`
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"base-url":        "base_url",
	"auth-scheme":     "auth_scheme",
	"api-key-header":  "api_key_header",
	"api-version":     "api_version",
	"token":           "token",
	"calls-file":      "calls_file",
	"publishers-file": "publishers_file",
	"run-interval":    "run_interval",
	"session-store":   "session_store",
	"metrics-addr":    "metrics_addr",
	"log-level":       "log_level",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration from command-line args, environment variables and the optional env file.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("samvad", pflag.ContinueOnError)
	envFile := fs.String("env-file", "configs/.env", "dotenv file loaded before reading the environment")
	fs.String("base-url", "", "base URL of the remote API")
	fs.String("auth-scheme", "", "authentication scheme: bearer, basic, apikey or none")
	fs.String("api-key-header", "", "header carrying the token for the apikey scheme")
	fs.String("api-version", "", "API version prefix")
	fs.String("token", "", "session token")
	fs.String("calls-file", "", "path to the calls file")
	fs.String("publishers-file", "", "path to the publishers file")
	fs.Int64("run-interval", 0, "seconds between runs; 0 runs once")
	fs.String("session-store", "", "session store: bbolt or none")
	fs.String("metrics-addr", "", "listen address for /metrics and /healthz")
	fs.String("log-level", "", "log level")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	_ = godotenv.Load(*envFile)

	v := viper.New()

	v.SetDefault("app_name", "samvad-integration-client")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("base_url", "")
	v.SetDefault("auth_scheme", "bearer")
	v.SetDefault("api_key_header", "")
	v.SetDefault("token", "")
	v.SetDefault("api_version", "v1")
	v.SetDefault("login_credentials", "")
	v.SetDefault("timeout_seconds", 30)
	v.SetDefault("calls_file", "./configs/calls.yaml")
	v.SetDefault("publishers_file", "")
	v.SetDefault("run_interval", 0) // seconds
	v.SetDefault("session_store", "bbolt")
	v.SetDefault("session_path", "./data/sessions.db")
	v.SetDefault("session_ttl_seconds", int64((12*time.Hour)/time.Second))
	v.SetDefault("session_cleanup_interval_seconds", int64(time.Hour/time.Second))
	v.SetDefault("metrics_addr", "")

	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	cfg.RunInterval = time.Duration(cfg.RunIntervalSeconds) * time.Second
	cfg.SessionTTL = time.Duration(cfg.SessionTTLSeconds) * time.Second
	cfg.SessionCleanupInterval = time.Duration(cfg.SessionCleanupSeconds) * time.Second

	return &cfg, nil
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.AuthScheme = strings.ToLower(strings.TrimSpace(c.AuthScheme))
	if c.AuthScheme == "api_key" {
		c.AuthScheme = "apikey"
	}
	c.APIKeyHeader = strings.TrimSpace(c.APIKeyHeader)
	c.APIVersion = strings.Trim(strings.TrimSpace(c.APIVersion), "/")
	c.SessionStore = strings.ToLower(strings.TrimSpace(c.SessionStore))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

// Validate checks the struct tags and reports every failing field by config key.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", keyFor(fe.StructField()), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Scheme resolves auth_scheme and api_key_header into a transport scheme.
func (c *Config) Scheme() (httpclient.Scheme, error) {
	return httpclient.ParseScheme(c.AuthScheme, c.APIKeyHeader)
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.Token != "" {
		c.Token = "***"
	}
	if c.LoginCredentials != "" {
		c.LoginCredentials = "***"
	}
	return c
}

var structKeys = map[string]string{
	"AppName":               "app_name",
	"LogLevel":              "log_level",
	"BaseURL":               "base_url",
	"AuthScheme":            "auth_scheme",
	"APIKeyHeader":          "api_key_header",
	"TimeoutSeconds":        "timeout_seconds",
	"CallsFile":             "calls_file",
	"RunIntervalSeconds":    "run_interval",
	"SessionStore":          "session_store",
	"SessionPath":           "session_path",
	"SessionTTLSeconds":     "session_ttl_seconds",
	"SessionCleanupSeconds": "session_cleanup_interval_seconds",
}

func keyFor(field string) string {
	if k, ok := structKeys[field]; ok {
		return k
	}
	return field
}
