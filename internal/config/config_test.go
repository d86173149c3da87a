package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"port", cfg.Server.Port, 8080},
		{"area capacity", cfg.Zoo.AreaCapacity, 5},
		{"event log", cfg.Zoo.EventLogSize, 50},
		{"tick", cfg.Scheduler.TickInterval.Std(), time.Minute},
		{"event chance", cfg.Scheduler.EventChance, 0.35},
		{"cooldown", cfg.Feeding.Cooldown.Std(), 30 * time.Minute},
		{"hunger", cfg.Feeding.HungerThreshold.Std(), 12 * time.Hour},
		{"weather cache", cfg.Weather.CacheTTL.Std(), 30 * time.Minute},
		{"upstream timeout", cfg.Zoo.UpstreamTimeout.Std(), 300 * time.Millisecond},
		{"flush", cfg.Persistence.FlushInterval.Std(), 5 * time.Second},
		{"backend", cfg.Persistence.Backend, "file"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestParseDurationsAndEnv(t *testing.T) {
	t.Setenv("BIRDZOO_TEST_TOKEN", "xoxb-123")
	raw := `{
		"scheduler": {"tick_interval": "90s", "event_chance": 0.5},
		"feeding": {"cooldown": 600000000000},
		"gateway": {"discord": {"enabled": true, "bot_token": "${BIRDZOO_TEST_TOKEN}"}},
		"database": {"redis": {"url": "${BIRDZOO_TEST_REDIS:redis://localhost:6379/0}"}}
	}`
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Scheduler.TickInterval.Std() != 90*time.Second {
		t.Errorf("tick = %s", cfg.Scheduler.TickInterval.Std())
	}
	if cfg.Feeding.Cooldown.Std() != 10*time.Minute {
		t.Errorf("cooldown = %s", cfg.Feeding.Cooldown.Std())
	}
	if cfg.Gateway.Discord.BotToken != "xoxb-123" {
		t.Errorf("token = %q", cfg.Gateway.Discord.BotToken)
	}
	if cfg.Database.Redis.URL != "redis://localhost:6379/0" {
		t.Errorf("redis url = %q", cfg.Database.Redis.URL)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad backend":        `{"persistence": {"backend": "tape"}}`,
		"postgres no dsn":    `{"persistence": {"backend": "postgres"}}`,
		"chance too high":    `{"scheduler": {"event_chance": 1.5}}`,
		"slack no guild":     `{"gateway": {"slack": {"enabled": true}}}`,
		"malformed duration": `{"feeding": {"cooldown": "soon"}}`,
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadFromFileWithDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("BIRDZOO_TEST_LEVEL=debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("BIRDZOO_TEST_LEVEL") })
	LoadEnv(envPath)

	cfgPath := filepath.Join(dir, "birdzoo.json")
	if err := os.WriteFile(cfgPath, []byte(`{"server": {"log_level": "${BIRDZOO_TEST_LEVEL:info}"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.Server.LogLevel)
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil || !strings.Contains(err.Error(), "missing.json") {
		t.Errorf("missing file error = %v", err)
	}
}
