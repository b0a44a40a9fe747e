package config

import (
	"os"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  base_url: "https://sign.example.com"
database:
  host: "localhost"
  port: "5432"
  username: "inkwell"
  password: "secret"
  name: "inkwell"
minio:
  endpoint: "localhost:9000"
  access_key: "minioadmin"
  secret_key: "minioadmin"
  bucket: "documents"
signing:
  token_secret: "test-hmac-secret"
  token_expire_days: 14
  max_uses: 3
smtp:
  host: "smtp.example.com"
  from: "no-reply@example.com"
log:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.BaseURL != "https://sign.example.com" {
		t.Errorf("Unexpected base URL: %s", cfg.Server.BaseURL)
	}
	if cfg.Minio.Bucket != "documents" {
		t.Errorf("Expected bucket documents, got %s", cfg.Minio.Bucket)
	}
	if cfg.Signing.TokenExpireDays != 14 {
		t.Errorf("Expected token_expire_days 14, got %d", cfg.Signing.TokenExpireDays)
	}
	if cfg.Signing.MaxUses != 3 {
		t.Errorf("Expected max_uses 3, got %d", cfg.Signing.MaxUses)
	}
	if cfg.Database.SSLMode != "disable" {
		t.Errorf("Expected default ssl_mode disable, got %s", cfg.Database.SSLMode)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
minio:
  endpoint: "localhost:9000"
  bucket: "documents"
signing:
  token_secret: "k"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Signing.TokenExpireDays != 30 {
		t.Errorf("Expected default token_expire_days 30, got %d", cfg.Signing.TokenExpireDays)
	}
	if cfg.Signing.MaxUses != 1 {
		t.Errorf("Expected default max_uses 1, got %d", cfg.Signing.MaxUses)
	}
	if cfg.Signing.DownloadSecret != "k" {
		t.Errorf("Expected download secret to fall back to token secret")
	}
	if cfg.SMTP.Port != 587 {
		t.Errorf("Expected default smtp port 587, got %d", cfg.SMTP.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidateMissingSecret(t *testing.T) {
	cfg := &Config{
		Minio: MinioConfig{Endpoint: "localhost:9000", Bucket: "documents"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for missing token secret")
	}
}

func TestValidateMissingStorage(t *testing.T) {
	cfg := &Config{
		Signing: SigningConfig{TokenSecret: "k"},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for missing storage config")
	}
}

func TestValidateOK(t *testing.T) {
	cfg := &Config{
		Signing: SigningConfig{TokenSecret: "k"},
		Minio:   MinioConfig{Endpoint: "localhost:9000", Bucket: "documents"},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}
