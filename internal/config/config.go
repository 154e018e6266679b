// Package config loads the server configuration from the environment and an
// optional env file in the user's config directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	AppName     = "petition-web"
	EnvFileName = "config.env"
)

type Config struct {
	Env     string `env:"ENV" env-default:"development"`
	Addr    string `env:"HTTP_ADDR" env-default:":3000"`
	LogFile string `env:"LOG_FILE" env-default:"petition-web.log"`

	APIBaseURL string        `env:"API_BASE_URL" env-required:"true"`
	APITimeout time.Duration `env:"API_TIMEOUT" env-default:"15s"`

	// SessionKey is the passphrase the cookie and database encryption key is
	// derived from.
	SessionKey     string `env:"SESSION_KEY" env-required:"true"`
	SessionBackend string `env:"SESSION_BACKEND" env-default:"cookie"`
	DBPath         string `env:"DB_PATH" env-default:"petition-web.db"`

	ServiceTokenSecret string        `env:"SERVICE_TOKEN_SECRET" env-required:"true"`
	ServiceTokenTTL    time.Duration `env:"SERVICE_TOKEN_TTL" env-default:"1m"`

	GoogleClientID string `env:"GOOGLE_CLIENT_ID"`

	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" env-default:"30s"`
	KeepaliveInterval time.Duration `env:"KEEPALIVE_INTERVAL" env-default:"5m"`
}

// Production reports whether cookies should be marked Secure.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	switch cfg.SessionBackend {
	case "cookie", "sqlite":
	default:
		return nil, fmt.Errorf("SESSION_BACKEND must be cookie or sqlite, got %q", cfg.SessionBackend)
	}
	return &cfg, nil
}

// RequiredEnvVars must be set for the server to start.
var RequiredEnvVars = []string{"API_BASE_URL", "SESSION_KEY", "SERVICE_TOKEN_SECRET"}

// MissingRequired returns the names of required variables that are not set.
func MissingRequired() []string {
	var missing []string
	for _, v := range RequiredEnvVars {
		if os.Getenv(v) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

// Dir returns the application's config directory, creating it if needed.
func Dir() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	dir := filepath.Join(configBase, AppName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

func FilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, EnvFileName), nil
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Variables already set in the environment win. Errors are
// ignored since the file may not exist.
func LoadEnvFile() {
	path, err := FilePath()
	if err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// WriteEnvFile writes values to the config file with owner-only permissions
// and returns its path.
func WriteEnvFile(values map[string]string) (string, error) {
	path, err := FilePath()
	if err != nil {
		return "", err
	}

	existing, err := godotenv.Read(path)
	if err != nil {
		existing = map[string]string{}
	}
	for k, v := range values {
		existing[k] = v
	}

	content, err := godotenv.Marshal(existing)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, []byte(content+"\n"), 0600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}
