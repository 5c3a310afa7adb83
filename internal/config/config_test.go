package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	p := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  poll_timeout: "15s"
logging:
  level: debug
storage:
  path: ./data/bot.sqlite3
sender:
  interval: "30s"
  max_concurrent_users: 10
  message_delay: "2s"
analytics:
  enabled: true
  schedule: "0 21 * * *"
`)

	m := NewManager(p)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Sender.MaxConcurrentUsers != 10 {
		t.Errorf("max_concurrent_users = %d", cfg.Sender.MaxConcurrentUsers)
	}
	if cfg.Analytics == nil || !cfg.Analytics.Enabled {
		t.Errorf("analytics = %+v", cfg.Analytics)
	}
	if got := m.Get(); got != cfg {
		t.Error("Get did not return the committed config")
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	p := writeConfig(t, "config.json", `{
  "telegram": {"token": "123:abc"},
  "storage": {"path": "./bot.sqlite3"}
}`)

	cfg, err := NewManager(p).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Path != "./bot.sqlite3" {
		t.Errorf("storage path = %q", cfg.Storage.Path)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	p := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
  tokne_typo: "oops"
storage:
  path: ./bot.sqlite3
`)

	_, err := NewManager(p).Parse()
	if err == nil {
		t.Fatal("expected unknown-field error")
	}
	if !strings.Contains(err.Error(), "tokne_typo") {
		t.Errorf("error does not name the field: %v", err)
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	p := writeConfig(t, "config.json", `{"storage": {"path": "a"}}{"storage": {"path": "b"}}`)

	if _, err := NewManager(p).Parse(); err == nil {
		t.Fatal("expected trailing-data error")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"  ", 0, false},
		{"500ms", 500 * time.Millisecond, false},
		{"1m30s", 90 * time.Second, false},
		{"-1s", 0, true},
		{"ten seconds", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDurationField("sender.interval", tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDurationField(%q) err = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDurationField(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationOrDefault("x", "", 10*time.Second); err != nil || d != 10*time.Second {
		t.Errorf("empty = %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x", "2s", 10*time.Second); err != nil || d != 2*time.Second {
		t.Errorf("explicit = %v, %v", d, err)
	}
	if _, err := ParseDurationOrDefault("x", "nope", 10*time.Second); err == nil {
		t.Error("expected parse error")
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)

	first := &Config{}
	second := &Config{Logging: LoggingConfig{Level: "debug"}}
	m.publish(first)
	// Buffer full: publishing again drops the stale config so the
	// newest is what the subscriber eventually reads.
	m.publish(second)

	select {
	case got := <-ch:
		if got != second {
			t.Error("expected newest config after overflow")
		}
	default:
		t.Fatal("no config queued")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("channel not closed after Unsubscribe")
	}
}
