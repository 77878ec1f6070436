package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/artpar/devstack/internal/core/domain"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Docker    DockerConfig    `mapstructure:"docker"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Project   ProjectConfig   `mapstructure:"project"`
	Readiness ReadinessConfig `mapstructure:"readiness"`
	Composer  ComposerConfig  `mapstructure:"composer"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Overrides OverridesConfig `mapstructure:"overrides"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// DockerConfig holds container engine client configuration.
type DockerConfig struct {
	Host string `mapstructure:"host"` // "" for the environment default
}

// CacheConfig locates downloaded binaries and the project registry.
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// RegistryConfig holds the project registry and version profile locations.
type RegistryConfig struct {
	DSN        string `mapstructure:"dsn"`         // {cache.dir}/registry.db when empty
	ProfileDir string `mapstructure:"profile_dir"` // extra YAML profiles
}

// ProjectConfig selects the application the commands act on.
type ProjectConfig struct {
	Path        string `mapstructure:"path"`
	Version     string `mapstructure:"version"`
	TemplateDir string `mapstructure:"template_dir"`
}

// ReadinessConfig bounds container readiness waits and reconciliation.
type ReadinessConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Attempts    uint64        `mapstructure:"attempts"`
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
	Concurrency int           `mapstructure:"concurrency"`
	MaxPasses   int           `mapstructure:"max_passes"`
}

// ComposerConfig holds package-manager acquisition settings.
type ComposerConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	PHPBinary string `mapstructure:"php_binary"`
}

// DatabaseConfig bounds the wait for the application database.
type DatabaseConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Attempts uint64        `mapstructure:"attempts"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// OverridesConfig holds environment-level settings layered over the
// version profile. File is a YAML document of service overrides; the
// scalar keys win over it.
type OverridesConfig struct {
	File  string       `mapstructure:"file"`
	Host  string       `mapstructure:"host"`
	SSL   string       `mapstructure:"ssl"` // "", "true" or "false"
	Ports domain.Ports `mapstructure:"ports"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment. A .env file in
// projectDir is loaded into the environment first; variables already set
// win over it.
func LoadConfig(configPath, projectDir string) (*Config, error) {
	if projectDir != "" {
		if err := godotenv.Load(filepath.Join(projectDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	v := viper.New()

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("docker.host", "")
	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("registry.dsn", "")
	v.SetDefault("registry.profile_dir", "")
	v.SetDefault("project.path", "")
	v.SetDefault("project.version", "")
	v.SetDefault("project.template_dir", "")
	v.SetDefault("readiness.interval", "2s")
	v.SetDefault("readiness.attempts", 90)
	v.SetDefault("readiness.stop_timeout", "10s")
	v.SetDefault("readiness.concurrency", 4)
	v.SetDefault("readiness.max_passes", 4)
	v.SetDefault("composer.base_url", "")
	v.SetDefault("composer.php_binary", "php")
	v.SetDefault("database.interval", "2s")
	v.SetDefault("database.attempts", 30)
	v.SetDefault("database.timeout", "5s")
	v.SetDefault("overrides.file", "")
	v.SetDefault("overrides.host", "")
	v.SetDefault("overrides.ssl", "")
	for _, key := range []string{"app", "fpm", "mariadb", "redis", "elasticsearch", "maildev_smtp", "maildev_web", "ssl_terminator"} {
		v.SetDefault("overrides.ports."+key, 0)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only a file that exists but does not parse is an error
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("DEVSTACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "devstack")
	}
	return filepath.Join(os.TempDir(), "devstack")
}

// BuildOverrides reads the overrides file and layers the scalar override
// keys over it.
func (c OverridesConfig) BuildOverrides() (domain.Overrides, error) {
	var o domain.Overrides
	if c.File != "" {
		data, err := os.ReadFile(c.File)
		if err != nil {
			return o, fmt.Errorf("read overrides file: %w", err)
		}
		if err := yaml.Unmarshal(data, &o); err != nil {
			return o, fmt.Errorf("parse overrides file %s: %w", c.File, err)
		}
	}

	if c.Host != "" {
		host := c.Host
		o.Host = &host
	}
	if c.SSL != "" {
		ssl, err := strconv.ParseBool(c.SSL)
		if err != nil {
			return o, fmt.Errorf("invalid overrides.ssl %q: %w", c.SSL, err)
		}
		o.SSL = &ssl
	}
	o.Ports = o.Ports.Merge(c.Ports)
	return o, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format. Text
// output goes through the charmbracelet console handler.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if strings.ToLower(cfg.Log.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}

	handler := log.NewWithOptions(w, log.Options{
		Level:           log.Level(level),
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	})
	return slog.New(handler)
}
