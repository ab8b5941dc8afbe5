package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	DB     DBConfig
	Server ServerConfig
	Auth   AuthConfig
	Upload UploadConfig
}

// DBConfig holds database configuration
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	Database string `envconfig:"DB_NAME" default:"cityclips"`
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"10"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int `envconfig:"SERVER_PORT" default:"8080"`
}

// AuthConfig holds bearer-token configuration
type AuthConfig struct {
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"168h"`
}

// UploadConfig holds video upload configuration. MaxBytes and MaxDuration are
// the intake ceilings (50 MiB, 10 seconds); PublicPrefix is the static path
// under which stored blobs are served.
type UploadConfig struct {
	Dir          string        `envconfig:"UPLOAD_DIR" default:"uploads/videos"`
	MaxBytes     int64         `envconfig:"UPLOAD_MAX_BYTES" default:"52428800"`
	MaxDuration  float64       `envconfig:"UPLOAD_MAX_DURATION_SECONDS" default:"10"`
	PublicPrefix string        `envconfig:"UPLOAD_PUBLIC_PREFIX" default:"/uploads/videos"`
	ReadTimeout  time.Duration `envconfig:"UPLOAD_READ_TIMEOUT" default:"60s"`
}

// DSN returns the MySQL data source name
func (c *DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg.DB); err != nil {
		return nil, fmt.Errorf("failed to load db config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Auth); err != nil {
		return nil, fmt.Errorf("failed to load auth config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Upload); err != nil {
		return nil, fmt.Errorf("failed to load upload config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.DB.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if c.Upload.Dir == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	if c.Upload.MaxDuration <= 0 {
		return fmt.Errorf("UPLOAD_MAX_DURATION_SECONDS must be positive")
	}
	return nil
}
