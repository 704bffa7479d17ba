// Package config loads runtime settings from an optional dotenv file, the
// environment and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration.
type Config struct {
	Addr         string
	WebDir       string
	DatabaseURL  string
	LogLevel     string
	BackupSecret string
	ResetSecret  string
	PublicURL    string
	SessionTTL   time.Duration
	ForwardAuth  bool

	ResendAPIKey string
	MailFrom     string

	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string
}

// OIDCEnabled reports whether single sign-on is configured.
func (c *Config) OIDCEnabled() bool {
	return c.OIDCIssuer != ""
}

type envBinding struct {
	key string
	env string
}

var envBindings = []envBinding{
	{"addr", "ADDR"},
	{"web_dir", "WEB_DIR"},
	{"database_url", "DATABASE_URL"},
	{"log_level", "LOG_LEVEL"},
	{"backup_secret", "BACKUP_SECRET"},
	{"reset_secret", "RESET_SECRET"},
	{"public_url", "PUBLIC_URL"},
	{"session_ttl", "SESSION_TTL"},
	{"forward_auth", "FORWARD_AUTH"},
	{"resend_api_key", "RESEND_API_KEY"},
	{"mail_from", "MAIL_FROM"},
	{"oidc_issuer", "OIDC_ISSUER"},
	{"oidc_client_id", "OIDC_CLIENT_ID"},
	{"oidc_client_secret", "OIDC_CLIENT_SECRET"},
	{"oidc_redirect_url", "OIDC_REDIRECT_URL"},
}

// flagBindings maps persistent flag names to config keys.
var flagBindings = map[string]string{
	"addr":         "addr",
	"web-dir":      "web_dir",
	"database-url": "database_url",
	"log-level":    "log_level",
}

// New returns a viper instance with defaults and environment bindings.
func New() (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("addr", ":8080")
	v.SetDefault("web_dir", "web")
	v.SetDefault("log_level", "info")
	v.SetDefault("session_ttl", "24h")
	v.SetDefault("forward_auth", false)
	v.SetDefault("mail_from", "noreply@example.com")

	for _, b := range envBindings {
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", b.env, err)
		}
	}
	return v, nil
}

// LoadDotenv loads variables from path into the process environment. A
// missing file is not an error; variables already set are kept.
func LoadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// RegisterFlags adds the shared persistent flags to cmd and binds them to v.
func RegisterFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.PersistentFlags()
	flags.String("addr", "", "HTTP listen address (ADDR)")
	flags.String("web-dir", "", "directory with the web frontend (WEB_DIR)")
	flags.String("database-url", "", "postgres://…, sqlite:PATH or memory: (DATABASE_URL)")
	flags.String("log-level", "", "debug, info, warn or error (LOG_LEVEL)")

	for name, key := range flagBindings {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load resolves and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{
		Addr:             v.GetString("addr"),
		WebDir:           v.GetString("web_dir"),
		DatabaseURL:      strings.TrimSpace(v.GetString("database_url")),
		LogLevel:         strings.ToLower(v.GetString("log_level")),
		BackupSecret:     v.GetString("backup_secret"),
		ResetSecret:      v.GetString("reset_secret"),
		PublicURL:        strings.TrimRight(v.GetString("public_url"), "/"),
		SessionTTL:       v.GetDuration("session_ttl"),
		ForwardAuth:      v.GetBool("forward_auth"),
		ResendAPIKey:     v.GetString("resend_api_key"),
		MailFrom:         v.GetString("mail_from"),
		OIDCIssuer:       v.GetString("oidc_issuer"),
		OIDCClientID:     v.GetString("oidc_client_id"),
		OIDCClientSecret: v.GetString("oidc_client_secret"),
		OIDCRedirectURL:  v.GetString("oidc_redirect_url"),
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	var problems []string
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "SESSION_TTL must be a positive duration")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}
	if c.OIDCEnabled() && (c.OIDCClientID == "" || c.OIDCRedirectURL == "") {
		problems = append(problems, "OIDC_ISSUER requires OIDC_CLIENT_ID and OIDC_REDIRECT_URL")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
