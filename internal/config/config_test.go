package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func noEnv(string) (string, bool) { return "", false }

func mapEnv(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/tornado.db")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.Path != "/tmp/tornado.db" {
		t.Fatalf("unexpected database config %#v", cfg.Database)
	}
	if cfg.Tasks.DefaultCadenceDays != 3 {
		t.Fatalf("expected default cadence 3, got %d", cfg.Tasks.DefaultCadenceDays)
	}
	if cfg.Issues.CriticalOverdueDays != 7 || cfg.Issues.CloseRequestWarningDays != 2 || cfg.Issues.InactiveDays != 30 {
		t.Fatalf("unexpected issue thresholds %#v", cfg.Issues)
	}
	if cfg.DigestInterval() != 24*time.Hour || cfg.ImpersonationTTL() != time.Hour || cfg.ScreenshotURLTTL() != 15*time.Minute {
		t.Fatal("unexpected default durations")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/tornado.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "config.toml", `
[database]
path = "/custom/tornado.db"

[identity]
user_id = "u-ana"

[tasks]
default_cadence_days = 5

[[companies]]
id = "G3"
name = "G3 Holdings"

[[companies]]
id = "acme"
name = "Acme"

[notify]
enabled = true
digest_interval = "6h"
`)
	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Database.Path != "/custom/tornado.db" || cfg.Identity.UserID != "u-ana" || cfg.Tasks.DefaultCadenceDays != 5 {
		t.Fatalf("unexpected config %#v", cfg)
	}
	if got := strings.Join(cfg.CompanyIDs(), ","); got != "g3,acme" {
		t.Fatalf("unexpected company ids %q", got)
	}
	if !cfg.Notify.Enabled || cfg.DigestInterval() != 6*time.Hour {
		t.Fatalf("unexpected notify config %#v", cfg.Notify)
	}
	if cfg.Issues.InactiveDays != 30 {
		t.Fatal("expected untouched sections to keep defaults")
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", "[database\npath=")
	if _, err := Load(path, Default("/tmp/default.db")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }},
		{name: "sqlite without path", mutate: func(c *Config) { c.Database.Path = " " }},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Database.Driver = DriverPostgres }},
		{name: "zero cadence", mutate: func(c *Config) { c.Tasks.DefaultCadenceDays = 0 }},
		{name: "zero inactive threshold", mutate: func(c *Config) { c.Issues.InactiveDays = 0 }},
		{name: "duplicate company", mutate: func(c *Config) {
			c.Companies = []CompanyConfig{{ID: "g3"}, {ID: "G3"}}
		}},
		{name: "empty company", mutate: func(c *Config) { c.Companies = []CompanyConfig{{Name: "nameless"}} }},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "loud" }},
		{name: "relative endpoint", mutate: func(c *Config) { c.Server.MCPEndpoint = "mcp" }},
		{name: "bad duration", mutate: func(c *Config) { c.Notify.DigestInterval = "daily" }},
		{name: "storage without endpoint", mutate: func(c *Config) { c.Storage.Enabled = true }},
		{name: "notify without url", mutate: func(c *Config) {
			c.Notify.Enabled = true
			c.Notify.NATSURL = ""
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default("/tmp/tornado.db")
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg, err := ApplyEnv(Default("/tmp/tornado.db"), mapEnv(map[string]string{
		"TORNADO_DB_DRIVER":       "postgres",
		"TORNADO_DATABASE_DSN":    "postgres://tornado@db/tornado",
		"TORNADO_JWT_SECRET":      " s3cret ",
		"TORNADO_LOG_LEVEL":       "debug",
		"TORNADO_NOTIFY_ENABLED":  "true",
		"TORNADO_DIGEST_INTERVAL": "1h",
		"UNRELATED":               "ignored",
	}))
	if err != nil {
		t.Fatalf("ApplyEnv() error = %v", err)
	}
	if cfg.Database.Driver != DriverPostgres || cfg.Database.DSN != "postgres://tornado@db/tornado" {
		t.Fatalf("unexpected database config %#v", cfg.Database)
	}
	if cfg.Auth.JWTSecret != "s3cret" || cfg.Logging.Level != "debug" || !cfg.Notify.Enabled || cfg.DigestInterval() != time.Hour {
		t.Fatalf("unexpected overrides %#v", cfg)
	}

	if _, err := ApplyEnv(Default("/tmp/tornado.db"), mapEnv(map[string]string{"TORNADO_NOTIFY_ENABLED": "maybe"})); err == nil {
		t.Fatal("expected bad bool to fail")
	}
	if _, err := ApplyEnv(Default("/tmp/tornado.db"), mapEnv(map[string]string{"TORNADO_DEFAULT_CADENCE_DAYS": "x"})); err == nil {
		t.Fatal("expected bad int to fail")
	}
	if _, err := ApplyEnv(Default("/tmp/tornado.db"), noEnv); err != nil {
		t.Fatalf("ApplyEnv(noEnv) error = %v", err)
	}
}

func TestResolveReadsDotEnv(t *testing.T) {
	dotenv := writeFile(t, ".env", "TORNADO_USER_ID=u-from-dotenv\nTORNADO_DEFAULT_CADENCE_DAYS=4\n")
	configPath := writeFile(t, "config.toml", "[identity]\nuser_id = \"u-from-file\"\n")
	t.Setenv("TORNADO_DEFAULT_CADENCE_DAYS", "9")

	cfg, err := Resolve(configPath, dotenv, Default("/tmp/tornado.db"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if cfg.Identity.UserID != "u-from-dotenv" {
		t.Fatalf("expected .env to override file, got %q", cfg.Identity.UserID)
	}
	if cfg.Tasks.DefaultCadenceDays != 9 {
		t.Fatalf("expected process env to win over .env, got %d", cfg.Tasks.DefaultCadenceDays)
	}

	if _, err := Resolve(configPath, filepath.Join(t.TempDir(), "none.env"), Default("/tmp/tornado.db")); err != nil {
		t.Fatalf("Resolve() with missing .env error = %v", err)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}
