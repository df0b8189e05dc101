package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file. They are kept out of the
// YAML so the API token never has to be written to disk.
const (
	EnvAPIToken   = "POSTCAL_API_TOKEN"
	EnvAPIBaseURL = "POSTCAL_API_BASE_URL"
)

const (
	defaultListen     = "127.0.0.1:8080"
	defaultTimezone   = "UTC"
	defaultWeekStart  = "monday"
	defaultRefresh    = "*/5 * * * *"
	defaultLocale     = "en"
	defaultLogLevel   = "info"
	defaultPostsPath  = "/api/posts"
	defaultTimeoutSec = 15
	defaultRateLimit  = 5
)

// APIConfig describes the campaign backend the posts are read from.
type APIConfig struct {
	// BaseURL is the backend root, e.g. "https://api.example.com".
	BaseURL string `yaml:"base_url" json:"base_url"`
	// PostsPath is appended to BaseURL to list the account's scheduled posts.
	PostsPath string `yaml:"posts_path" json:"posts_path"`
	// Token is sent as a bearer token. Usually supplied via POSTCAL_API_TOKEN.
	Token string `yaml:"token,omitempty" json:"-"`
	// TimeoutSeconds bounds a single HTTP request.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
	// RequestsPerSecond caps outbound request rate. 0 disables limiting.
	RequestsPerSecond int `yaml:"requests_per_second" json:"requests_per_second"`
	// CacheDir holds the conditional-request cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// AgendaConfig controls agenda rendering.
type AgendaConfig struct {
	// SortWithinDay orders each day's posts by time instead of backend order.
	SortWithinDay bool `yaml:"sort_within_day" json:"sort_within_day"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for day keys and labels.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is the cron schedule for refreshing posts from the backend.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Locale selects the language of date labels ("en", "ko").
	Locale string `yaml:"locale" json:"locale"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	API    APIConfig    `yaml:"api" json:"api"`
	Agenda AgendaConfig `yaml:"agenda" json:"agenda"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		WeekStart:   defaultWeekStart,
		RefreshCron: defaultRefresh,
		Locale:      defaultLocale,
		LogLevel:    defaultLogLevel,
		API: APIConfig{
			PostsPath:         defaultPostsPath,
			TimeoutSeconds:    defaultTimeoutSec,
			RequestsPerSecond: defaultRateLimit,
			CacheDir:          "./var/api-cache",
		},
	}
}

// Normalize fills in missing or invalid values with defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday", "sunday":
		c.WeekStart = strings.ToLower(c.WeekStart)
	default:
		c.WeekStart = defaultWeekStart
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		c.RefreshCron = defaultRefresh
	}
	if c.Locale == "" {
		c.Locale = defaultLocale
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.API.PostsPath == "" {
		c.API.PostsPath = defaultPostsPath
	}
	if !strings.HasPrefix(c.API.PostsPath, "/") {
		c.API.PostsPath = "/" + c.API.PostsPath
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = defaultTimeoutSec
	}
	if c.API.RequestsPerSecond < 0 {
		c.API.RequestsPerSecond = 0
	}
	if c.API.CacheDir == "" {
		c.API.CacheDir = "./var/api-cache"
	}
}

// ApplyEnv overrides API settings from the process environment, loading the
// given dotenv files first when they exist. Variables already set in the
// environment win over dotenv values.
func (c *Config) ApplyEnv(dotenvFiles ...string) error {
	existing := make([]string, 0, len(dotenvFiles))
	for _, f := range dotenvFiles {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return err
		}
	}

	if v := os.Getenv(EnvAPIToken); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		c.API.BaseURL = strings.TrimRight(v, "/")
	}
	return nil
}

// Validate reports settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required (or set " + EnvAPIBaseURL + ")")
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return errors.New("api.base_url must be an http(s) URL")
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local when the name is
// empty or unknown.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// PostsURL is the full URL of the posts listing endpoint.
func (c *Config) PostsURL() string {
	return c.API.BaseURL + c.API.PostsPath
}

// Load loads configuration from the given YAML path.
//
// If the file does not exist, a default config is written there with 0600
// permissions and returned. Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed. The API
// token is never persisted.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	onDisk := *cfg
	onDisk.API.Token = ""
	data, err := yaml.Marshal(&onDisk)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".postcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
