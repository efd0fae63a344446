package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every variable applyEnvOverrides looks at.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"STONK_API_URL", "STONK_RATE_LIMIT_PER_MIN", "STONK_ID_TOKEN", "STONK_USER_ID",
		"STONK_USER_EMAIL", "DATABASE_URL", "SQLITE_PATH", "DATA_DIR", "REDIS_ADDR",
		"ALPACA_API_KEY", "ALPACA_API_SECRET", "ALPACA_DATA_URL", "LOG_LEVEL",
		"APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stonklytics.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
backend:
  base_url: "https://api.example.com/api"
  timeout: 5s
  chat_timeout: 90s
  rate_limit_per_min: 120
client:
  search_debounce: 400ms
  search_min_chars: 3
  banner_ttl: 2s
  price_concurrency: 4
server:
  host: "0.0.0.0"
  port: 8080
  grpc_port: 9191
storage:
  driver: "sqlite"
  sqlite_path: "/tmp/stonk/stonk.db"
  data_dir: "/tmp/stonk/data"
  fixtures_path: "config/fixtures.yaml"
cache:
  redis_addr: "localhost:6379"
  snapshot_ttl: 10m
auth:
  tokens:
    dev-token: "user-1"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Backend --
	if cfg.Backend.BaseURL != "https://api.example.com/api" {
		t.Errorf("Backend.BaseURL = %q, want %q", cfg.Backend.BaseURL, "https://api.example.com/api")
	}
	if cfg.Backend.Timeout != 5*time.Second {
		t.Errorf("Backend.Timeout = %v, want %v", cfg.Backend.Timeout, 5*time.Second)
	}
	if cfg.Backend.ChatTimeout != 90*time.Second {
		t.Errorf("Backend.ChatTimeout = %v, want %v", cfg.Backend.ChatTimeout, 90*time.Second)
	}
	if cfg.Backend.RateLimitPerMin != 120 {
		t.Errorf("Backend.RateLimitPerMin = %d, want %d", cfg.Backend.RateLimitPerMin, 120)
	}

	// -- Client --
	if cfg.Client.SearchDebounce != 400*time.Millisecond {
		t.Errorf("Client.SearchDebounce = %v, want %v", cfg.Client.SearchDebounce, 400*time.Millisecond)
	}
	if cfg.Client.SearchMinChars != 3 {
		t.Errorf("Client.SearchMinChars = %d, want %d", cfg.Client.SearchMinChars, 3)
	}
	if cfg.Client.BannerTTL != 2*time.Second {
		t.Errorf("Client.BannerTTL = %v, want %v", cfg.Client.BannerTTL, 2*time.Second)
	}

	// -- Server --
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Server.GRPCPort != 9191 {
		t.Errorf("Server.GRPCPort = %d, want %d", cfg.Server.GRPCPort, 9191)
	}

	// -- Storage / Cache / Auth --
	if cfg.Storage.SQLitePath != "/tmp/stonk/stonk.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/stonk/stonk.db")
	}
	if cfg.Cache.SnapshotTTL != 10*time.Minute {
		t.Errorf("Cache.SnapshotTTL = %v, want %v", cfg.Cache.SnapshotTTL, 10*time.Minute)
	}
	if cfg.Cache.SummaryTTL != 30*time.Minute {
		t.Errorf("Cache.SummaryTTL = %v, want default %v", cfg.Cache.SummaryTTL, 30*time.Minute)
	}
	if got := cfg.Auth.Tokens["dev-token"]; got != "user-1" {
		t.Errorf("Auth.Tokens[dev-token] = %q, want %q", got, "user-1")
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg := Default()

	if cfg.Backend.BaseURL != "http://localhost:8000/api" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 10*time.Second {
		t.Errorf("Backend.Timeout = %v, want 10s", cfg.Backend.Timeout)
	}
	if cfg.Backend.ChatTimeout != 60*time.Second {
		t.Errorf("Backend.ChatTimeout = %v, want 60s", cfg.Backend.ChatTimeout)
	}
	if cfg.Client.SearchDebounce < 400*time.Millisecond || cfg.Client.SearchDebounce > 500*time.Millisecond {
		t.Errorf("Client.SearchDebounce = %v, want within [400ms, 500ms]", cfg.Client.SearchDebounce)
	}
	if cfg.Client.SearchMinChars != 2 {
		t.Errorf("Client.SearchMinChars = %d, want 2", cfg.Client.SearchMinChars)
	}
	if cfg.Client.BannerTTL != 3*time.Second {
		t.Errorf("Client.BannerTTL = %v, want 3s", cfg.Client.BannerTTL)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault() returned error: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
backend:
  base_url: "http://yaml/api"
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
`)

	t.Setenv("STONK_API_URL", "http://env/api")
	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("DATABASE_URL", "postgres://localhost/stonk")
	t.Setenv("STONK_ID_TOKEN", "tok")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Backend.BaseURL != "http://env/api" {
		t.Errorf("Backend.BaseURL = %q, want %q (env override)", cfg.Backend.BaseURL, "http://env/api")
	}
	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Storage.Driver != "postgres" {
		t.Errorf("Storage.Driver = %q, want postgres when DATABASE_URL is set", cfg.Storage.Driver)
	}
	if cfg.Identity.IDToken != "tok" {
		t.Errorf("Identity.IDToken = %q, want %q", cfg.Identity.IDToken, "tok")
	}
}
