package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		EnvPort, EnvLogLevel, EnvDataDir, EnvConfigFile, EnvWatchDir,
		EnvFFProbe, EnvHeadless, EnvRemoteBaseURL, EnvRemoteToken, EnvRemoteOrg,
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.LogLevel() != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel(), DefaultLogLevel)
	}
	if cfg.WatchDir() != "" {
		t.Errorf("WatchDir = %q, want empty", cfg.WatchDir())
	}
	if cfg.RemoteEnabled() {
		t.Error("RemoteEnabled = true with no remote settings")
	}
	if filepath.Base(cfg.DBPath()) != DBFilename {
		t.Errorf("DBPath = %q", cfg.DBPath())
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPort, "9100")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvWatchDir, "/media/uploads")
	t.Setenv(EnvHeadless, "true")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9100 {
		t.Errorf("Port = %d, want 9100", cfg.Port())
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel())
	}
	if cfg.WatchDir() != "/media/uploads" {
		t.Errorf("WatchDir = %q", cfg.WatchDir())
	}
	if !cfg.Headless() {
		t.Error("Headless = false, want true")
	}
}

func TestInvalidPort(t *testing.T) {
	clearEnv(t)

	t.Setenv(EnvPort, "not-a-number")
	if _, err := New(); err == nil {
		t.Error("expected error for non-numeric port")
	}

	t.Setenv(EnvPort, "70000")
	if _, err := New(); err == nil {
		t.Error("expected error for out-of-range port")
	}
}

func TestConfigFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: 9200
log_level: warn
watch_dir: /media/games
remote:
  base_url: https://tigersfc.app.filmroom.co
  token: remote-token
  org_slug: tigersfc
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(EnvConfigFile, path)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9200 {
		t.Errorf("Port = %d, want 9200", cfg.Port())
	}
	if cfg.LogLevel() != "warn" {
		t.Errorf("LogLevel = %q", cfg.LogLevel())
	}
	if !cfg.RemoteEnabled() {
		t.Error("RemoteEnabled = false with base_url and token set")
	}
	if cfg.RemoteOrgSlug() != "tigersfc" {
		t.Errorf("RemoteOrgSlug = %q", cfg.RemoteOrgSlug())
	}
}

func TestEnvBeatsFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: 9200\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvPort, "9300")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9300 {
		t.Errorf("Port = %d, want env value 9300", cfg.Port())
	}
}

func TestMalformedFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: [not valid\n"), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(EnvConfigFile, path)

	if _, err := New(); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
