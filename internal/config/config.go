// Package config resolves settings for the tutordesk CLI and portal.
// Precedence, lowest first: defaults, YAML file, .env, environment, flags.
// Flags are applied by the commands themselves.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvAPI         = "TUTORDESK_API"
	EnvSessionFile = "TUTORDESK_SESSION_FILE"
	EnvDB          = "TUTORDESK_DB"
	EnvAddr        = "TUTORDESK_ADDR"
	EnvEntryRoute  = "TUTORDESK_ENTRY_ROUTE"
	EnvLogLevel    = "TUTORDESK_LOG_LEVEL"
	EnvTimeout     = "TUTORDESK_TIMEOUT"
)

// ClientConfig holds configuration for the tutordesk CLI.
type ClientConfig struct {
	APIURL      string        `yaml:"api"`          // Base URL of the tutoring-center API
	SessionFile string        `yaml:"session_file"` // Session file (default ~/.tutordesk/session.json)
	EntryRoute  string        `yaml:"entry_route"`  // Where signed-out users are sent: /login or /register
	Timeout     time.Duration `yaml:"timeout"`      // Per-request HTTP timeout
	LogLevel    string        `yaml:"log_level"`    // debug, info, warn, error
	LogFormat   string        `yaml:"log_format"`   // text, json
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		APIURL:     "http://127.0.0.1:8000",
		EntryRoute: "/login",
		Timeout:    30 * time.Second,
		LogLevel:   "warn",
		LogFormat:  "text",
	}
}

// PortalConfig holds configuration for the web portal.
type PortalConfig struct {
	Addr          string        `yaml:"addr"`           // Listen address (default ":8090")
	APIURL        string        `yaml:"api"`            // Base URL of the tutoring-center API
	DBPath        string        `yaml:"db"`             // SQLite session database (":memory:" for testing)
	EntryRoute    string        `yaml:"entry_route"`    // /login or /register
	Timeout       time.Duration `yaml:"timeout"`        // Per-request HTTP timeout
	SessionIdle   time.Duration `yaml:"session_idle"`   // Sliding cookie lifetime; sessions unused longer than this are purged
	SecureCookies bool          `yaml:"secure_cookies"` // Set the Secure flag on the session cookie
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`
}

// DefaultPortalConfig returns sensible defaults.
func DefaultPortalConfig() PortalConfig {
	return PortalConfig{
		Addr:        ":8090",
		APIURL:      "http://127.0.0.1:8000",
		EntryRoute:  "/login",
		Timeout:     30 * time.Second,
		SessionIdle: 30 * 24 * time.Hour,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// File is the on-disk configuration: one section per program.
type File struct {
	Client ClientConfig `yaml:"client"`
	Portal PortalConfig `yaml:"portal"`
}

// DefaultPath returns ~/.tutordesk/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".tutordesk", "config.yaml"), nil
}

// LoadClient resolves the CLI configuration. An empty path reads the
// default config file if one exists; an explicit path must exist.
func LoadClient(path string) (ClientConfig, error) {
	f := File{Client: DefaultClientConfig()}
	if err := readFile(path, &f); err != nil {
		return ClientConfig{}, err
	}
	cfg := f.Client
	loadDotenv()

	cfg.APIURL = getEnv(EnvAPI, cfg.APIURL)
	cfg.SessionFile = getEnv(EnvSessionFile, cfg.SessionFile)
	cfg.EntryRoute = getEnv(EnvEntryRoute, cfg.EntryRoute)
	cfg.LogLevel = getEnv(EnvLogLevel, cfg.LogLevel)
	timeout, err := getEnvAsDuration(EnvTimeout, cfg.Timeout)
	if err != nil {
		return ClientConfig{}, err
	}
	cfg.Timeout = timeout

	return cfg, cfg.Validate()
}

// LoadPortal resolves the portal configuration the same way LoadClient does.
func LoadPortal(path string) (PortalConfig, error) {
	f := File{Portal: DefaultPortalConfig()}
	if err := readFile(path, &f); err != nil {
		return PortalConfig{}, err
	}
	cfg := f.Portal
	loadDotenv()

	cfg.Addr = getEnv(EnvAddr, cfg.Addr)
	cfg.APIURL = getEnv(EnvAPI, cfg.APIURL)
	cfg.DBPath = getEnv(EnvDB, cfg.DBPath)
	cfg.EntryRoute = getEnv(EnvEntryRoute, cfg.EntryRoute)
	cfg.LogLevel = getEnv(EnvLogLevel, cfg.LogLevel)
	timeout, err := getEnvAsDuration(EnvTimeout, cfg.Timeout)
	if err != nil {
		return PortalConfig{}, err
	}
	cfg.Timeout = timeout

	return cfg, cfg.Validate()
}

// Validate checks the settings flags and files can get wrong.
func (c ClientConfig) Validate() error {
	return errors.Join(validateAPI(c.APIURL), validateEntry(c.EntryRoute))
}

// Validate checks the settings flags and files can get wrong.
func (c PortalConfig) Validate() error {
	var errs []error
	errs = append(errs, validateAPI(c.APIURL), validateEntry(c.EntryRoute))
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.SessionIdle < 0 {
		errs = append(errs, errors.New("session_idle must not be negative"))
	}
	return errors.Join(errs...)
}

func validateAPI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api %q: must be an http(s) URL", raw)
	}
	return nil
}

func validateEntry(route string) error {
	if route != "/login" && route != "/register" {
		return fmt.Errorf("entry_route %q: must be /login or /register", route)
	}
	return nil
}

func readFile(path string, f *File) error {
	explicit := path != ""
	if !explicit {
		def, err := DefaultPath()
		if err != nil {
			return nil
		}
		path = def
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// loadDotenv reads .env from the working directory. A missing file is fine
// and variables already in the environment win.
func loadDotenv() {
	_ = godotenv.Load()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, val)
	}
	return time.Duration(secs) * time.Second, nil
}
