package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfig writes a temporary config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
api:
  host: "127.0.0.1"
  port: 8080
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
  session:
    refresh_lead: 90
    idle_timeout: 600
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if got := cfg.GetRefreshLead(); got != 90*time.Second {
		t.Errorf("GetRefreshLead() = %v, want 90s", got)
	}
	if got := cfg.GetSessionIdleTimeout(); got != 600*time.Second {
		t.Errorf("GetSessionIdleTimeout() = %v, want 600s", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	content := `
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Security.JWT.AccessTokenTTL != 15 {
		t.Errorf("AccessTokenTTL = %d, want default 15", cfg.Security.JWT.AccessTokenTTL)
	}
	if cfg.Security.Session.Profile != "default" {
		t.Errorf("Session.Profile = %q, want %q", cfg.Security.Session.Profile, "default")
	}
	if !cfg.Database.WALMode {
		t.Error("Database.WALMode should default to true")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected error for missing JWT secret, got nil")
	}
}

func TestLoad_ShortJWTSecret(t *testing.T) {
	content := `
security:
  jwt:
    secret: "too-short"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected error for short JWT secret, got nil")
	}
}

func TestLoad_RefreshLeadExceedsTTL(t *testing.T) {
	content := `
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
    access_token_ttl: 5
  session:
    refresh_lead: 600
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected error when refresh lead >= access TTL, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
security:
  jwt:
    secret: "file-secret-key-at-least-32-chars!"
`
	t.Setenv("LINDEN_JWT_SECRET", "env-secret-key-that-is-long-enough!!")
	t.Setenv("LINDEN_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("LINDEN_SESSION_IDLE_TIMEOUT", "300")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Security.JWT.Secret != "env-secret-key-that-is-long-enough!!" {
		t.Error("env var should override file JWT secret")
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Security.Session.IdleTimeout != 300 {
		t.Errorf("IdleTimeout = %d, want 300", cfg.Security.Session.IdleTimeout)
	}
}

func TestValidate_PortRange(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.JWT.Secret = "test-secret-key-at-least-32-chars!"
	cfg.API.Port = 70000

	if err := cfg.Validate(); err == nil {
		t.Error("Validate() expected error for out-of-range port, got nil")
	}
}
