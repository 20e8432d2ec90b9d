package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"protectbox/internal/mission"
	"protectbox/internal/storage"

	"github.com/spf13/viper"
)

// Config holds the complete configuration for the protectbox API
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Attachments AttachmentsConfig `mapstructure:"attachments"`
	Missions    MissionsConfig    `mapstructure:"missions"`
	AI          AIConfig          `mapstructure:"ai"`
	Lookup      LookupConfig      `mapstructure:"lookup"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig contains Postgres configuration. An empty URL selects the in-memory store.
type DatabaseConfig struct {
	URL           string `mapstructure:"url"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// RedisConfig contains Redis configuration. An empty Addr disables the bus and jobs.
type RedisConfig struct {
	Addr string `mapstructure:"addr"`
}

// AuthConfig contains token verification configuration
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	// DevHeaders accepts X-Actor-* headers when no bearer token is sent
	DevHeaders bool `mapstructure:"dev_headers"`
}

// AttachmentsConfig is the upload policy plus where admitted files land
type AttachmentsConfig struct {
	storage.AttachmentPolicy `mapstructure:",squash"`
	BaseDir                  string `mapstructure:"base_dir"`
	BaseURL                  string `mapstructure:"base_url"`
}

// Policy returns the normalized attachment policy
func (a AttachmentsConfig) Policy() storage.AttachmentPolicy {
	p := storage.NewAttachmentPolicy(a.MaxFileSizeMB, a.AllowedExtensions)
	p.MimeTypes = a.MimeTypes
	return p
}

// MissionsConfig exposes the mission timing constants
type MissionsConfig struct {
	ExtensionDays       int `mapstructure:"extension_days"`
	ExtensionWindowDays int `mapstructure:"extension_window_days"`
}

// AIConfig contains risk summary configuration
type AIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	Model              string `mapstructure:"model"`
	MinNarrativeLength int    `mapstructure:"min_narrative_length"`
}

// LookupConfig sizes the registry and criminal-case lookup caches
type LookupConfig struct {
	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// Load reads configuration from path, or from protectbox.yaml in the usual
// places when path is empty, then applies PROTECTBOX_* environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("protectbox")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/protectbox")
	}

	v.SetEnvPrefix("PROTECTBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", "60s")

	v.SetDefault("database.url", "")
	v.SetDefault("database.migrations_dir", "migrations")

	v.SetDefault("redis.addr", "")

	v.SetDefault("auth.jwt_secret", "default-secret-key-change-in-production")
	v.SetDefault("auth.dev_headers", true)

	v.SetDefault("attachments.max_file_size_mb", 10)
	v.SetDefault("attachments.allowed_extensions", []string{"pdf", "jpg", "jpeg", "png", "doc", "docx"})
	v.SetDefault("attachments.mime_types", []string{})
	v.SetDefault("attachments.base_dir", "./storage")
	v.SetDefault("attachments.base_url", "http://localhost:8080")

	v.SetDefault("missions.extension_days", mission.ExtensionDays)
	v.SetDefault("missions.extension_window_days", mission.ExtensionWindowDays)

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "claude-3-5-haiku-latest")
	v.SetDefault("ai.min_narrative_length", 20)

	v.SetDefault("lookup.cache_size", 256)
	v.SetDefault("lookup.cache_ttl", "10m")
}

// Validate rejects settings the service cannot honour
func (c Config) Validate() error {
	if c.Missions.ExtensionDays != mission.ExtensionDays {
		return fmt.Errorf("missions.extension_days is fixed at %d", mission.ExtensionDays)
	}
	if c.Missions.ExtensionWindowDays != mission.ExtensionWindowDays {
		return fmt.Errorf("missions.extension_window_days is fixed at %d", mission.ExtensionWindowDays)
	}
	if c.Attachments.MaxFileSizeMB <= 0 {
		return errors.New("attachments.max_file_size_mb must be positive")
	}
	if len(c.Attachments.AllowedExtensions) == 0 {
		return errors.New("attachments.allowed_extensions must not be empty")
	}
	if c.Lookup.CacheSize <= 0 {
		return errors.New("lookup.cache_size must be positive")
	}
	return nil
}
