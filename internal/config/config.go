// Package config loads prompthive settings from defaults, an optional YAML
// file and PROMPTHIVE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/dpshade/prompthive/internal/errors"
	"github.com/dpshade/prompthive/internal/logger"
)

// Defaults
const (
	DefaultDirName     = ".prompthive"
	DefaultRegistryURL = "https://registry.prompthive.sh"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxEntries  = 100
	DefaultCacheTTL    = 5 * time.Minute
	DefaultListTTL     = 30 * time.Second

	EnvPrefix = "PROMPTHIVE"
)

// Config is the resolved configuration. It is passed to constructors; no
// other package reads the environment or config files.
type Config struct {
	BaseDir     string        `mapstructure:"base_dir" yaml:"base_dir"`
	RegistryURL string        `mapstructure:"registry_url" yaml:"registry_url"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Cache       CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Log         LogConfig     `mapstructure:"log" yaml:"log"`
}

// CacheConfig sizes the record and listing caches.
type CacheConfig struct {
	MaxEntries int           `mapstructure:"max_entries" yaml:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl" yaml:"ttl"`
	ListTTL    time.Duration `mapstructure:"list_ttl" yaml:"list_ttl"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty"`
	File   string `mapstructure:"file" yaml:"file"`
}

// Logger converts LogConfig to logger.Config.
func (l LogConfig) Logger() logger.Config {
	return logger.Config{Level: l.Level, Pretty: l.Pretty, File: l.File}
}

// DefaultBaseDir returns ~/.prompthive, or .prompthive when the home
// directory is unknown.
func DefaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseDir:     DefaultBaseDir(),
		RegistryURL: DefaultRegistryURL,
		Timeout:     DefaultTimeout,
		Cache: CacheConfig{
			MaxEntries: DefaultMaxEntries,
			TTL:        DefaultCacheTTL,
			ListTTL:    DefaultListTTL,
		},
		Log: LogConfig{Level: "warn", Pretty: true},
	}
}

// Load resolves configuration. Precedence, highest first: baseDir when
// non-empty, environment, the file at path (or config.yaml in the base
// directory), defaults. A missing default config file is not an error; a
// missing explicit one is.
func Load(path, baseDir string) (*Config, error) {
	def := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("base_dir", def.BaseDir)
	v.SetDefault("registry_url", def.RegistryURL)
	v.SetDefault("api_key", "")
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("cache.max_entries", def.Cache.MaxEntries)
	v.SetDefault("cache.ttl", def.Cache.TTL)
	v.SetDefault("cache.list_ttl", def.Cache.ListTTL)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.pretty", def.Log.Pretty)
	v.SetDefault("log.file", "")
	if baseDir != "" {
		v.Set("base_dir", baseDir)
	}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(expandHome(v.GetString("base_dir")), "config.yaml")
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, fmt.Sprintf("failed to read config %s", path))
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "failed to decode config")
	}
	cfg.BaseDir = expandHome(cfg.BaseDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return apperrors.InvalidInputError("config: base_dir is required")
	}
	if c.RegistryURL != "" && !strings.HasPrefix(c.RegistryURL, "http://") && !strings.HasPrefix(c.RegistryURL, "https://") {
		return apperrors.InvalidInputError(fmt.Sprintf("config: registry_url %q must be an http(s) URL", c.RegistryURL))
	}
	if c.Timeout <= 0 {
		return apperrors.InvalidInputError("config: timeout must be positive")
	}
	if c.Cache.MaxEntries < 1 {
		return apperrors.InvalidInputError("config: cache.max_entries must be at least 1")
	}
	if c.Cache.TTL <= 0 || c.Cache.ListTTL <= 0 {
		return apperrors.InvalidInputError("config: cache ttl values must be positive")
	}
	return nil
}

// RequireAPIKey fails when no API key is configured. Sync commands call it
// before contacting the registry.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return apperrors.NewAppError(apperrors.ErrCodeUnauthorized, "no API key configured").
			WithDetails("set PROMPTHIVE_API_KEY or api_key in config.yaml")
	}
	if c.RegistryURL == "" {
		return apperrors.InvalidInputError("config: registry_url is required for sync")
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
