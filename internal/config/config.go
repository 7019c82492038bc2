package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Server   ServerConfig
	Renderer RendererConfig
	Database DatabaseConfig
	Upload   UploadConfig
	UI       UIConfig
}

// ServerConfig points at the drafting backend.
type ServerConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RendererConfig points at the diagram rendering service.
type RendererConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DatabaseConfig holds local cache settings.
type DatabaseConfig struct {
	Path           string
	MigrationsPath string `mapstructure:"migrations_path"`
}

// UploadConfig bounds the document pipeline.
type UploadConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	ArtistMode bool   `mapstructure:"artist_mode"`
	LogPath    string `mapstructure:"log_path"`
}

// Load reads configuration from file and env. Env var overrides use prefix INKDRAFT_.
func Load() (Config, error) {
	v := viper.New()

	// default values
	v.SetDefault("server.base_url", "http://localhost:8000/api/v1")
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("renderer.base_url", "http://localhost:8100")
	v.SetDefault("renderer.timeout_seconds", 30)
	v.SetDefault("database.path", filepath.Join(os.Getenv("HOME"), ".local", "share", "inkdraft", "inkdraft.db"))
	v.SetDefault("database.migrations_path", "internal/database/migrations")
	v.SetDefault("upload.max_concurrent", 4)
	v.SetDefault("ui.artist_mode", false)
	v.SetDefault("ui.log_path", filepath.Join(os.Getenv("HOME"), ".local", "share", "inkdraft", "inkdraft.log"))

	v.SetConfigType("toml")

	cfgPath := os.Getenv("INKDRAFT_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "inkdraft"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("INKDRAFT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if
// needed. Used by the TUI settings view for non-sensitive preferences.
func Save(cfg Config) error {
	path := os.Getenv("INKDRAFT_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "inkdraft", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("server.base_url", cfg.Server.BaseURL)
	v.Set("server.timeout_seconds", cfg.Server.TimeoutSeconds)
	v.Set("renderer.base_url", cfg.Renderer.BaseURL)
	v.Set("renderer.timeout_seconds", cfg.Renderer.TimeoutSeconds)
	v.Set("database.path", cfg.Database.Path)
	v.Set("database.migrations_path", cfg.Database.MigrationsPath)
	v.Set("upload.max_concurrent", cfg.Upload.MaxConcurrent)
	v.Set("ui.artist_mode", cfg.UI.ArtistMode)
	v.Set("ui.log_path", cfg.UI.LogPath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
