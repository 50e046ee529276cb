package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Sessions.DirPrefix != "wa_" {
		t.Errorf("DirPrefix = %q, want wa_", cfg.Sessions.DirPrefix)
	}
	if cfg.Sessions.MaxReconnectAttempts != 3 {
		t.Errorf("MaxReconnectAttempts = %d, want 3", cfg.Sessions.MaxReconnectAttempts)
	}
	if cfg.Sessions.ReconnectDelay != 5*time.Second {
		t.Errorf("ReconnectDelay = %v, want 5s", cfg.Sessions.ReconnectDelay)
	}
	if cfg.Sessions.OpenSettleDelay != 5*time.Second {
		t.Errorf("OpenSettleDelay = %v, want 5s", cfg.Sessions.OpenSettleDelay)
	}
	if cfg.Sessions.RestoreDelay != 2*time.Second {
		t.Errorf("RestoreDelay = %v, want 2s", cfg.Sessions.RestoreDelay)
	}
	if cfg.Approval.Delay != time.Second {
		t.Errorf("Approval.Delay = %v, want 1s", cfg.Approval.Delay)
	}
	if cfg.Rename.Delay != 5*time.Second {
		t.Errorf("Rename.Delay = %v, want 5s", cfg.Rename.Delay)
	}
	if cfg.Rename.RateLimitDelay != 10*time.Second {
		t.Errorf("Rename.RateLimitDelay = %v, want 10s", cfg.Rename.RateLimitDelay)
	}
	if !filepath.IsAbs(cfg.Sessions.Path) || !strings.HasSuffix(cfg.Sessions.Path, filepath.Join(".grouppilot", "sessions")) {
		t.Errorf("Sessions.Path = %q, want ~/.grouppilot/sessions", cfg.Sessions.Path)
	}
	if !strings.HasSuffix(cfg.Journal.Path, "journal.db") {
		t.Errorf("Journal.Path = %q, want journal.db", cfg.Journal.Path)
	}
	if cfg.Server.Enabled {
		t.Error("Server.Enabled should default to false")
	}
	if cfg.ConfigFile() != path {
		t.Errorf("ConfigFile() = %q, want %q", cfg.ConfigFile(), path)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
telegram:
  token: "123:abc"
  owners: ["42", "7"]
gateway:
  url: "wss://gateway.example:9000/rpc"
  call_timeout: 45s
sessions:
  path: "`+dir+`"
  dir_prefix: "sess_"
  max_reconnect_attempts: 5
  reconnect_delay: 1500ms
rename:
  delay: 2s
logging:
  level: DEBUG
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("Token = %q", cfg.Telegram.Token)
	}
	if len(cfg.Telegram.Owners) != 2 || cfg.Telegram.Owners[0] != "42" {
		t.Errorf("Owners = %v, want [42 7]", cfg.Telegram.Owners)
	}
	if cfg.Gateway.URL != "wss://gateway.example:9000/rpc" {
		t.Errorf("Gateway.URL = %q", cfg.Gateway.URL)
	}
	if cfg.Gateway.CallTimeout != 45*time.Second {
		t.Errorf("CallTimeout = %v, want 45s", cfg.Gateway.CallTimeout)
	}
	if cfg.Sessions.Path != dir {
		t.Errorf("Sessions.Path = %q, want %q", cfg.Sessions.Path, dir)
	}
	if cfg.Sessions.DirPrefix != "sess_" {
		t.Errorf("DirPrefix = %q", cfg.Sessions.DirPrefix)
	}
	if cfg.Sessions.MaxReconnectAttempts != 5 {
		t.Errorf("MaxReconnectAttempts = %d, want 5", cfg.Sessions.MaxReconnectAttempts)
	}
	if cfg.Sessions.ReconnectDelay != 1500*time.Millisecond {
		t.Errorf("ReconnectDelay = %v, want 1.5s", cfg.Sessions.ReconnectDelay)
	}
	if cfg.Rename.Delay != 2*time.Second {
		t.Errorf("Rename.Delay = %v, want 2s", cfg.Rename.Delay)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: from-file\n")
	t.Setenv("GROUPPILOT_TELEGRAM_TOKEN", "from-env")
	t.Setenv("GROUPPILOT_SESSIONS_MAX_RECONNECT_ATTEMPTS", "4")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Telegram.Token != "from-env" {
		t.Errorf("Token = %q, want from-env", cfg.Telegram.Token)
	}
	if cfg.Sessions.MaxReconnectAttempts != 4 {
		t.Errorf("MaxReconnectAttempts = %d, want 4", cfg.Sessions.MaxReconnectAttempts)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeConfig(t, "telegram: [unclosed\n")

	if _, err := Load(path); err == nil {
		t.Fatal("Load() should fail on malformed YAML")
	}
}

func TestNormalizeOwners(t *testing.T) {
	got := normalizeOwners([]string{" 42 ", "7,8", "42", ""})
	want := []string{"42", "7", "8"}

	if len(got) != len(want) {
		t.Fatalf("normalizeOwners() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("normalizeOwners()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConfig_IsOwner(t *testing.T) {
	open := &Config{}
	if !open.IsOwner("1") {
		t.Error("empty owner list should allow everyone")
	}

	restricted := &Config{Telegram: TelegramConfig{Owners: []string{"42"}}}
	if !restricted.IsOwner("42") {
		t.Error("IsOwner(42) = false, want true")
	}
	if restricted.IsOwner("43") {
		t.Error("IsOwner(43) = true, want false")
	}
}

func TestConfig_WatchReloadsOwners(t *testing.T) {
	path := writeConfig(t, "telegram:\n  owners: [\"1\"]\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	reloaded := make(chan *Config, 4)
	cfg.Watch(func(next *Config, err error) {
		if err == nil {
			reloaded <- next
		}
	})

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("telegram:\n  owners: [\"2\"]\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case next := <-reloaded:
			if next.IsOwner("2") && !next.IsOwner("1") {
				return
			}
		case <-deadline:
			t.Fatal("config change was not picked up")
		}
	}
}
