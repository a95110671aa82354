// Package config assembles run configuration from the saved credentials
// file, environment variables, and CLI flags, in that order of precedence
// (flags win).
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/code1997/nextcloud-filename-sanitizer/internal/sanitize"
)

// Environment variable names understood by Load.
const (
	EnvServerURL = "NEXTCLOUD_URL"
	EnvUsername  = "NEXTCLOUD_USERNAME"
	EnvPassword  = "NEXTCLOUD_PASSWORD"
	EnvInsecure  = "NEXTCLOUD_INSECURE"
)

// Config holds one run's settings. It is assembled once before traversal
// starts and treated as read-only afterwards.
type Config struct {
	// Connection
	ServerURL string
	Username  string
	Password  string
	Insecure  bool

	// Behavior
	Replacement string
	DryRun      bool
	Overwrite   bool

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string
}

// Load reads the credentials file (lowest precedence) and environment
// variables. Flag overrides are applied by the CLI after Load; Validate
// runs once the merge is complete.
func Load() *Config {
	cfg := &Config{
		Replacement: string(sanitize.DefaultReplacement),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		LogFormat:   envOr("LOG_FORMAT", "console"),
		Insecure:    envBool(EnvInsecure, false),
	}

	if creds, err := LoadCredentials(); err == nil {
		cfg.ServerURL = creds.ServerURL
		cfg.Username = creds.Username
		cfg.Password = creds.Password
	}

	if v := os.Getenv(EnvServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv(EnvUsername); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		cfg.Password = v
	}

	return cfg
}

// Validate checks that the merged configuration can start a run. It is the
// only place configuration errors surface; the traversal core never sees an
// invalid Config.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server URL is not set (run the login command, set %s, or pass --server)", EnvServerURL)
	}
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL %q: %w", c.ServerURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server URL %q must use http or https", c.ServerURL)
	}
	if c.Username == "" {
		return fmt.Errorf("username is not set (run the login command, set %s, or pass --username)", EnvUsername)
	}
	if c.Password == "" {
		return fmt.Errorf("password is not set (run the login command or set %s)", EnvPassword)
	}
	if utf8.RuneCountInString(c.Replacement) != 1 {
		return fmt.Errorf("replacement must be a single character, got %q", c.Replacement)
	}
	if r := c.ReplacementRune(); !sanitize.Legal(r) {
		return fmt.Errorf("replacement character %q is itself illegal on Windows", string(r))
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("log format must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// ReplacementRune returns the replacement character. Call Validate first;
// it guarantees Replacement holds exactly one rune.
func (c *Config) ReplacementRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Replacement)
	return r
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
