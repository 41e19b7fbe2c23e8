// Package config loads lombard settings from flags, the environment, a
// .env file and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. LOMBARD_ADDR.
const EnvPrefix = "LOMBARD"

// Config holds every runtime setting.
type Config struct {
	DB             string        `mapstructure:"db"`
	Addr           string        `mapstructure:"addr"`
	AdminEmail     string        `mapstructure:"admin_email"`
	Log            string        `mapstructure:"log"`
	API            bool          `mapstructure:"api"`
	BackendURL     string        `mapstructure:"backend_url"`
	BackendTimeout time.Duration `mapstructure:"backend_timeout"`
	PageSize       int           `mapstructure:"page_size"`
	SessionTTL     time.Duration `mapstructure:"session_ttl"`
	SecureCookies  bool          `mapstructure:"secure_cookies"`
	CookieSecret   string        `mapstructure:"cookie_secret"`
	Language       string        `mapstructure:"language"`
}

var defaults = map[string]any{
	"db":              "lombard.sqlite3",
	"addr":            ":8080",
	"admin_email":     "admin@lombard.local",
	"log":             "",
	"api":             true,
	"backend_url":     "",
	"backend_timeout": 15 * time.Second,
	"page_size":       10,
	"session_ttl":     12 * time.Hour,
	"secure_cookies":  false,
	"cookie_secret":   "",
	"language":        "en",
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"db":              "db",
	"addr":            "addr",
	"admin-email":     "admin_email",
	"log":             "log",
	"api":             "api",
	"backend-url":     "backend_url",
	"backend-timeout": "backend_timeout",
	"page-size":       "page_size",
	"session-ttl":     "session_ttl",
	"secure-cookies":  "secure_cookies",
	"cookie-secret":   "cookie_secret",
	"language":        "language",
}

// NewFlagSet returns the command line flags understood by Load.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("db", "d", defaults["db"].(string), "SQLite database path")
	fs.StringP("addr", "a", defaults["addr"].(string), "listen address")
	fs.StringP("admin-email", "u", defaults["admin_email"].(string), "admin e-mail on first run")
	fs.StringP("log", "l", "", "log file path (default: stdout/stderr only)")
	fs.Bool("api", defaults["api"].(bool), "serve the backend API in this process")
	fs.String("backend-url", "", "backend API base URL (default: this process)")
	fs.Duration("backend-timeout", defaults["backend_timeout"].(time.Duration), "timeout for backend calls")
	fs.Int("page-size", defaults["page_size"].(int), "items per page in the pawn list")
	fs.Duration("session-ttl", defaults["session_ttl"].(time.Duration), "console session lifetime")
	fs.Bool("secure-cookies", false, "mark session cookies Secure")
	fs.String("cookie-secret", "", "session cookie key (default: stored in the database)")
	fs.String("language", defaults["language"].(string), "collation language for name sorting")
	fs.StringP("config", "c", "", "config file (yaml, toml or json)")
	return fs
}

// Load parses args and merges the other sources. A .env file in the working
// directory is read first without overriding variables already set.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	flags := NewFlagSet("lombard")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, fmt.Errorf("binding flag %s: %w", name, err)
		}
	}

	if path, _ := flags.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks settings that have no usable fallback.
func (c *Config) Validate() error {
	switch {
	case c.DB == "" && c.API:
		return fmt.Errorf("db path required when serving the API")
	case c.Addr == "":
		return fmt.Errorf("listen address required")
	case !c.API && c.BackendURL == "":
		return fmt.Errorf("backend_url required when the API is not served in-process")
	case c.BackendTimeout <= 0:
		return fmt.Errorf("backend_timeout must be positive")
	case c.PageSize <= 0:
		return fmt.Errorf("page_size must be positive")
	case c.SessionTTL <= 0:
		return fmt.Errorf("session_ttl must be positive")
	}
	return nil
}

// Backend returns the API base URL the console talks to. Without an explicit
// backend_url it is this process on the loopback interface.
func (c *Config) Backend(prefix string) string {
	if c.BackendURL != "" {
		return strings.TrimSuffix(c.BackendURL, "/")
	}
	host := c.Addr
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	return "http://" + host + prefix
}
