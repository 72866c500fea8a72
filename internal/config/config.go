// Package config loads the bot's settings: built-in defaults, then an
// optional YAML file, then a .env file, then the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Database DatabaseConfig `yaml:"database"`
	Access   AccessConfig   `yaml:"access"`
	Log      LogConfig      `yaml:"log"`
	Ops      OpsConfig      `yaml:"ops"`
	Archive  ArchiveConfig  `yaml:"archive"`

	Timezone string `yaml:"timezone"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
}

type OpenAIConfig struct {
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	TranscribeModel string        `yaml:"transcribe_model"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
}

type DatabaseConfig struct {
	// URL is a SQLite path or a postgres:// URL.
	URL string `yaml:"url"`
}

type AccessConfig struct {
	AllowedUsers []string `yaml:"allowed_users"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // json or text
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// OpsConfig configures the read-only operations API. An empty Addr
// disables it.
type OpsConfig struct {
	Addr           string   `yaml:"addr"`
	JWTSecret      string   `yaml:"jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ArchiveConfig configures photo archiving. An empty Bucket disables it.
type ArchiveConfig struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	Prefix string `yaml:"prefix"`
}

func defaults() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			Model:           "gpt-4-vision-preview",
			TranscribeModel: "whisper-1",
			Timeout:         90 * time.Second,
			MaxRetries:      2,
		},
		Database: DatabaseConfig{URL: "nutritioner.db"},
		Log:      LogConfig{Level: "info", Format: "json", Console: true, MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 30},
		Archive:  ArchiveConfig{Region: "eu-central-1", Prefix: "meals"},
		Timezone: "Europe/Moscow",
	}
}

// Load builds the configuration. configFile may be empty; a missing file is
// not an error, a malformed one is.
func Load(configFile string) (*Config, error) {
	c := defaults()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, c); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", configFile, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	// Values already in the environment win over .env.
	_ = godotenv.Load()

	envOverride(&c.Telegram.Token, "TELEGRAM_TOKEN")
	envOverride(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	envOverride(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	envOverride(&c.OpenAI.Model, "GPT_MODEL")
	envOverride(&c.OpenAI.TranscribeModel, "TRANSCRIBE_MODEL")
	envOverrideDuration(&c.OpenAI.Timeout, "GATEWAY_TIMEOUT")
	envOverride(&c.Database.URL, "DATABASE_URL")
	envOverrideList(&c.Access.AllowedUsers, "ALLOWED_USERS")
	envOverride(&c.Timezone, "TIMEZONE")
	envOverride(&c.Log.Level, "LOG_LEVEL")
	envOverride(&c.Log.Format, "LOG_FORMAT")
	envOverride(&c.Log.File, "LOG_FILE")
	envOverride(&c.Ops.Addr, "OPS_ADDR")
	envOverride(&c.Ops.JWTSecret, "OPS_JWT_SECRET")
	envOverrideList(&c.Ops.AllowedOrigins, "OPS_ALLOWED_ORIGINS")
	envOverride(&c.Archive.Bucket, "S3_BUCKET")
	envOverride(&c.Archive.Region, "S3_REGION")
	envOverride(&c.Archive.Prefix, "S3_PREFIX")

	return c, nil
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Telegram.Token == "" {
		errs = append(errs, errors.New("TELEGRAM_TOKEN is required"))
	}
	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if c.Ops.Addr != "" && c.Ops.JWTSecret == "" {
		errs = append(errs, errors.New("OPS_JWT_SECRET is required when OPS_ADDR is set"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err))
	}
	if c.OpenAI.Timeout <= 0 {
		errs = append(errs, errors.New("GATEWAY_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// Location returns the configured time zone. Call Validate first.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func envOverride(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envOverrideDuration(dst *time.Duration, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	// Bare numbers are seconds.
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
	}
}

// envOverrideList splits a comma-separated variable, dropping blanks.
func envOverrideList(dst *[]string, key string) {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
