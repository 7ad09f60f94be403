// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig `envconfig:"DB"`
	JWT      JWTConfig
	Mail     MailConfig
	Log      LogConfig
	Broker   BrokerConfig
	App      AppConfig
	Admin    AdminConfig
	// CORSOrigins is a comma separated allow-list; "*" allows any origin.
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:8000"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `envconfig:"PORT" default:"8000"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds connection settings for PostgreSQL or SQLite.
type DatabaseConfig struct {
	Driver     string `envconfig:"DRIVER" default:"sqlite"`
	Host       string `envconfig:"HOST" default:"localhost"`
	Port       int    `envconfig:"PORT" default:"5432"`
	User       string `envconfig:"USER" default:"crm"`
	Password   string `envconfig:"PASSWORD" default:"crm"`
	DBName     string `envconfig:"NAME" default:"crm"`
	SSLMode    string `envconfig:"SSLMODE" default:"disable"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"crm.db"`
}

// JWTConfig holds bearer token settings.
type JWTConfig struct {
	Secret    string        `envconfig:"SECRET" default:"your-super-secret-key-change-this-in-production"`
	Algorithm string        `envconfig:"ALGORITHM" default:"HS256"`
	TTL       time.Duration `envconfig:"TTL" default:"168h"`
}

// MailConfig holds SMTP settings used to deliver verification codes.
type MailConfig struct {
	Server   string `envconfig:"SERVER" default:"smtp.gmail.com"`
	Port     int    `envconfig:"PORT" default:"587"`
	Username string `envconfig:"USERNAME"`
	Password string `envconfig:"PASSWORD"`
	From     string `envconfig:"FROM" default:"noreply@crm.com"`
	FromName string `envconfig:"FROM_NAME" default:"CRM App"`
}

// Simulated reports whether no real SMTP credentials are configured.
func (m MailConfig) Simulated() bool {
	return m.Username == "" || m.Username == "replace_me"
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"text"`
	// Output is one of stdout, file, both.
	Output     string `envconfig:"OUTPUT" default:"stdout"`
	File       string `envconfig:"FILE" default:"logs/app.log"`
	MaxSize    int    `envconfig:"MAX_SIZE" default:"100"` // MB
	MaxBackups int    `envconfig:"MAX_BACKUPS" default:"7"`
	MaxAge     int    `envconfig:"MAX_AGE" default:"7"` // days
	Compress   bool   `envconfig:"COMPRESS" default:"true"`
}

// BrokerConfig holds the RabbitMQ settings for domain events.
// An empty URL disables publishing.
type BrokerConfig struct {
	URL      string `envconfig:"URL"`
	Exchange string `envconfig:"EXCHANGE" default:"crm.events"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool `envconfig:"DEV" default:"true"`
	Migrations bool `envconfig:"MIGRATIONS" default:"true"`
}

// AdminConfig holds the default administrator seeded on first boot.
type AdminConfig struct {
	Email    string `envconfig:"EMAIL" default:"admin@crm.com"`
	Password string `envconfig:"PASSWORD" default:"admin123"`
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("load config: unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	switch cfg.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return nil, fmt.Errorf("load config: unsupported JWT_ALGORITHM %q", cfg.JWT.Algorithm)
	}
	return &cfg, nil
}
