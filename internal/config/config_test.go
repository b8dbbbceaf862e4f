package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{
		"telegram": {"token": "t", "channel_id": "-100123"},
		"logging": {"level": "DEBUG", "console": true, "file": {"enabled": false, "path": ""}},
		"storage": {"path": "./zuppa.db", "busy_timeout": "5s"},
		"scheduler": {"scan": "30s"},
		"delivery": {"send_timeout": "10s", "rate_per_sec": 3},
		"web": {"enabled": true, "addr": "127.0.0.1:8080"}
	}`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Telegram.ChannelID != "-100123" {
		t.Fatalf("ChannelID = %q", cfg.Telegram.ChannelID)
	}
	if cfg.Scheduler.Scan != "30s" {
		t.Fatalf("Scan = %q", cfg.Scheduler.Scan)
	}
	if !cfg.Web.Enabled {
		t.Fatal("Web.Enabled = false")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.yaml", `
telegram:
  token: t
  channel_id: "-100123"
logging:
  level: INFO
  console: true
  file:
    enabled: false
    path: ""
storage:
  path: ./zuppa.db
scheduler:
  scan: "@every 30s"
delivery:
  rate_per_sec: 5
web:
  enabled: false
`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Scheduler.Scan != "@every 30s" {
		t.Fatalf("Scan = %q", cfg.Scheduler.Scan)
	}
	if cfg.Delivery.RatePerSec != 5 {
		t.Fatalf("RatePerSec = %d", cfg.Delivery.RatePerSec)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"telegram": {"token": "t", "chat": "typo"}}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("unknown key accepted")
	}
}

func TestLoadRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "config.json", `{"telegram": {"token": "t"}}{"extra": 1}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("trailing data accepted")
	}
}

func TestParseDurationFields(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationOrDefault("delivery.send_timeout", "", 10*time.Second)
	if err != nil || d != 10*time.Second {
		t.Fatalf("default = %v, %v", d, err)
	}
	d, err = ParseDurationOrDefault("delivery.send_timeout", "2s", 10*time.Second)
	if err != nil || d != 2*time.Second {
		t.Fatalf("explicit = %v, %v", d, err)
	}
	if _, err := ParseDurationField("x", "banana"); err == nil {
		t.Fatal("invalid duration accepted")
	}
	if _, err := ParseDurationField("x", "-3s"); err == nil {
		t.Fatal("negative duration accepted")
	}
}
