package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Minio    MinioConfig    `yaml:"minio"`
	Signing  SigningConfig  `yaml:"signing"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Events   EventsConfig   `yaml:"events"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"` // public URL used in signing links
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN builds the postgres connection string. An empty Host means the
// service runs on the in-memory store (dev only).
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.Username, d.Password, d.Name, d.Port, d.SSLMode)
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type SigningConfig struct {
	TokenSecret       string `yaml:"token_secret"`        // HMAC key for bearer-token hashing
	TokenExpireDays   int    `yaml:"token_expire_days"`   // lifetime of reissued signer tokens
	MaxUses           int    `yaml:"max_uses"`            // submissions allowed per token
	DownloadSecret    string `yaml:"download_secret"`     // JWT key for executed-file links
	DownloadExpireMin int    `yaml:"download_expire_min"` // lifetime of download tokens
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type EventsConfig struct {
	SinkURL string `yaml:"sink_url"` // CloudEvents HTTP sink; empty = log only
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Signing.TokenExpireDays == 0 {
		cfg.Signing.TokenExpireDays = 30
	}
	if cfg.Signing.MaxUses == 0 {
		cfg.Signing.MaxUses = 1
	}
	if cfg.Signing.DownloadSecret == "" {
		cfg.Signing.DownloadSecret = cfg.Signing.TokenSecret
	}
	if cfg.Signing.DownloadExpireMin == 0 {
		cfg.Signing.DownloadExpireMin = 60
	}
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}

	return &cfg, nil
}

// Validate rejects configurations the signing workflow must not run under.
// A missing token secret or artifact bucket cannot be recovered from at
// request time, so it fails here, before any route is mounted.
func (c *Config) Validate() error {
	if c.Signing.TokenSecret == "" {
		return errors.New("signing.token_secret is required: refusing to hash tokens with an empty key")
	}
	if c.Minio.Endpoint == "" || c.Minio.Bucket == "" {
		return errors.New("minio.endpoint and minio.bucket are required: executed documents need durable object storage")
	}
	return nil
}
