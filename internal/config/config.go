// Package config loads settings from YAML, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Store    StoreConfig    `yaml:"store"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Feeds    FeedsConfig    `yaml:"feeds"`
	Auth     AuthConfig     `yaml:"auth"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

type ServerConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// StoreConfig points at the GitHub repository holding the archive.
type StoreConfig struct {
	Token       string `yaml:"token"`
	Repo        string `yaml:"repo"` // owner/name
	Branch      string `yaml:"branch"`
	SaveRetries int    `yaml:"save_retries"`
}

type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	// ImagenAPIKey is the secondary credential for image generation.
	ImagenAPIKey   string   `yaml:"imagen_api_key"`
	Model          string   `yaml:"model"`
	FallbackModels []string `yaml:"fallback_models"`
	ImageModels    []string `yaml:"image_models"`
	VertexProject  string   `yaml:"vertex_project"`
	VertexLocation string   `yaml:"vertex_location"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

type FeedsConfig struct {
	MaxPerFeed     int    `yaml:"max_per_feed"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
}

type AuthConfig struct {
	// Passphrase may be plain text or a bcrypt hash.
	Passphrase     string `yaml:"passphrase"`
	SessionDays    int    `yaml:"session_days"`
	LoginPerMinute int    `yaml:"login_per_minute"`
}

type ScheduleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hour     int    `yaml:"hour"`
	Timezone string `yaml:"timezone"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8080,
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 30,
		},
		Database: DatabaseConfig{
			Path: "./newsroom.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Branch:      "main",
			SaveRetries: 2,
		},
		Gemini: GeminiConfig{
			Model:          "gemini-2.0-flash",
			VertexLocation: "us-central1",
			TimeoutSeconds: 120,
		},
		Feeds: FeedsConfig{
			MaxPerFeed:     10,
			TimeoutSeconds: 20,
		},
		Auth: AuthConfig{
			SessionDays:    7,
			LoginPerMinute: 5,
		},
		Schedule: ScheduleConfig{
			Enabled:  true,
			Hour:     7,
			Timezone: "Asia/Seoul",
		},
	}
}

// envOverrides maps environment variables onto the secrets they replace.
func envOverrides(cfg *Config) map[string]*string {
	return map[string]*string{
		"NEWSROOM_GITHUB_TOKEN":    &cfg.Store.Token,
		"NEWSROOM_GITHUB_REPO":     &cfg.Store.Repo,
		"NEWSROOM_GEMINI_API_KEY":  &cfg.Gemini.APIKey,
		"NEWSROOM_IMAGEN_API_KEY":  &cfg.Gemini.ImagenAPIKey,
		"NEWSROOM_PASSPHRASE":      &cfg.Auth.Passphrase,
		"NEWSROOM_VERTEX_PROJECT":  &cfg.Gemini.VertexProject,
		"NEWSROOM_VERTEX_LOCATION": &cfg.Gemini.VertexLocation,
	}
}

// Load reads a YAML config file and merges it over defaults, then applies
// the .env file at envPath (if any) and environment overrides.
// If the config file does not exist, defaults are used without error.
func Load(path, envPath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		slog.Info("No config file found, using defaults", "path", path)
	default:
		return cfg, err
	}

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("load %s: %w", envPath, err)
			}
		} else {
			slog.Debug("Loaded environment file", "path", envPath)
		}
	}

	for name, field := range envOverrides(&cfg) {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*field = v
		}
	}
	return cfg, nil
}

// Validate reports every missing or invalid value at once. The passphrase
// is only needed when the management surface is served.
func (c Config) Validate(requirePassphrase bool) error {
	var errs []error
	if c.Store.Token == "" {
		errs = append(errs, errors.New("store token is required (NEWSROOM_GITHUB_TOKEN)"))
	}
	if owner, name, ok := strings.Cut(c.Store.Repo, "/"); !ok || owner == "" || name == "" {
		errs = append(errs, fmt.Errorf("store repo %q must be owner/name (NEWSROOM_GITHUB_REPO)", c.Store.Repo))
	}
	if c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("gemini api key is required (NEWSROOM_GEMINI_API_KEY)"))
	}
	if requirePassphrase && c.Auth.Passphrase == "" {
		errs = append(errs, errors.New("management passphrase is required (NEWSROOM_PASSPHRASE)"))
	}
	if c.Schedule.Hour < 0 || c.Schedule.Hour > 23 {
		errs = append(errs, fmt.Errorf("schedule hour %d out of range 0-23", c.Schedule.Hour))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Format != "" && c.Logging.Format != "text" && c.Logging.Format != "json" {
		errs = append(errs, fmt.Errorf("logging format %q must be text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Location is the time zone run dates and the schedule are computed in.
func (c Config) Location() (*time.Location, error) {
	if c.Schedule.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule timezone: %w", err)
	}
	return loc, nil
}

// LogLevel maps logging.level to a slog level, defaulting to info.
func (c Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
