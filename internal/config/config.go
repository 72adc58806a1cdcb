package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Identity  IdentityConfig  `toml:"identity"`
	Tasks     TasksConfig     `toml:"tasks"`
	Issues    IssuesConfig    `toml:"issues"`
	Companies []CompanyConfig `toml:"companies"`
	Logging   LoggingConfig   `toml:"logging"`
	Server    ServerConfig    `toml:"server"`
	Auth      AuthConfig      `toml:"auth"`
	Storage   StorageConfig   `toml:"storage"`
	Notify    NotifyConfig    `toml:"notify"`
}

type DatabaseConfig struct {
	Driver string `toml:"driver"` // sqlite | postgres
	Path   string `toml:"path"`
	DSN    string `toml:"dsn"`
}

// IdentityConfig names the user the CLI acts as.
type IdentityConfig struct {
	UserID string `toml:"user_id"`
}

type TasksConfig struct {
	DefaultCadenceDays int `toml:"default_cadence_days"`
}

type IssuesConfig struct {
	CriticalOverdueDays     int `toml:"critical_overdue_days"`
	CloseRequestWarningDays int `toml:"close_request_warning_days"`
	InactiveDays            int `toml:"inactive_days"`
}

// CompanyConfig declares one known affiliation key.
type CompanyConfig struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

type LoggingConfig struct {
	Level string            `toml:"level"`
	File  LoggingFileConfig `toml:"file"`
}

// LoggingFileConfig controls the rotating logfmt sink.
type LoggingFileConfig struct {
	Enabled    bool   `toml:"enabled"`
	Path       string `toml:"path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type AuthConfig struct {
	JWTSecret        string `toml:"jwt_secret"`
	Issuer           string `toml:"issuer"`
	TokenTTL         string `toml:"token_ttl"`
	ImpersonationTTL string `toml:"impersonation_ttl"`
}

type StorageConfig struct {
	Enabled            bool   `toml:"enabled"`
	Endpoint           string `toml:"endpoint"`
	AccessKey          string `toml:"access_key"`
	SecretKey          string `toml:"secret_key"`
	Bucket             string `toml:"bucket"`
	Region             string `toml:"region"`
	UseSSL             bool   `toml:"use_ssl"`
	URLTTL             string `toml:"url_ttl"`
	MaxScreenshotBytes int    `toml:"max_screenshot_bytes"`
}

type NotifyConfig struct {
	Enabled        bool   `toml:"enabled"`
	NATSURL        string `toml:"nats_url"`
	Subject        string `toml:"subject"`
	DigestInterval string `toml:"digest_interval"`
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   dbPath,
		},
		Tasks: TasksConfig{
			DefaultCadenceDays: 3,
		},
		Issues: IssuesConfig{
			CriticalOverdueDays:     7,
			CloseRequestWarningDays: 2,
			InactiveDays:            30,
		},
		Logging: LoggingConfig{
			Level: "info",
			File: LoggingFileConfig{
				MaxSizeMB:  10,
				MaxBackups: 5,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:5437",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Auth: AuthConfig{
			Issuer:           "tornado",
			TokenTTL:         "24h",
			ImpersonationTTL: "1h",
		},
		Storage: StorageConfig{
			Bucket:             "tornado-screenshots",
			Region:             "us-east-1",
			URLTTL:             "15m",
			MaxScreenshotBytes: 5 << 20,
		},
		Notify: NotifyConfig{
			NATSURL:        "nats://127.0.0.1:4222",
			Subject:        "tornado.digests",
			DigestInterval: "24h",
		},
	}
}

// Load reads the TOML file at path over defaults. A missing or empty file
// yields the defaults. Load does not validate because secrets such as the
// Postgres DSN usually arrive later through ApplyEnv.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}
	return cfg, nil
}

// Resolve loads path over defaults, overlays .env and process environment
// values, and validates the result.
func Resolve(path, dotenvPath string, defaults Config) (Config, error) {
	cfg, err := Load(path, defaults)
	if err != nil {
		return Config{}, err
	}
	dotenv, err := ReadDotEnv(dotenvPath)
	if err != nil {
		return Config{}, err
	}
	return ApplyEnv(cfg, LookupChain(dotenv))
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TORNADO_"

// ReadDotEnv reads KEY=VALUE pairs from a .env file. A missing file is empty.
func ReadDotEnv(path string) (map[string]string, error) {
	if strings.TrimSpace(path) == "" {
		return map[string]string{}, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}

// LookupChain returns a lookup that prefers the process environment and
// falls back to dotenv values.
func LookupChain(dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

// ApplyEnv overlays TORNADO_* values from lookup onto cfg and validates.
func ApplyEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok && strings.TrimSpace(v) != "" {
			parsed, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = parsed
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok && strings.TrimSpace(v) != "" {
			parsed, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = parsed
		}
	}

	str("DB_DRIVER", &cfg.Database.Driver)
	str("DB_PATH", &cfg.Database.Path)
	str("DATABASE_DSN", &cfg.Database.DSN)
	str("USER_ID", &cfg.Identity.UserID)
	integer("DEFAULT_CADENCE_DAYS", &cfg.Tasks.DefaultCadenceDays)
	str("LOG_LEVEL", &cfg.Logging.Level)
	boolean("LOG_FILE_ENABLED", &cfg.Logging.File.Enabled)
	str("HTTP_BIND", &cfg.Server.HTTPBind)
	str("JWT_SECRET", &cfg.Auth.JWTSecret)
	str("JWT_ISSUER", &cfg.Auth.Issuer)
	boolean("STORAGE_ENABLED", &cfg.Storage.Enabled)
	str("STORAGE_ENDPOINT", &cfg.Storage.Endpoint)
	str("STORAGE_ACCESS_KEY", &cfg.Storage.AccessKey)
	str("STORAGE_SECRET_KEY", &cfg.Storage.SecretKey)
	str("STORAGE_BUCKET", &cfg.Storage.Bucket)
	boolean("NOTIFY_ENABLED", &cfg.Notify.Enabled)
	str("NATS_URL", &cfg.Notify.NATSURL)
	str("DIGEST_INTERVAL", &cfg.Notify.DigestInterval)

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "", DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database path is required")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database dsn is required for postgres")
		}
	default:
		return fmt.Errorf("invalid database.driver: %q", c.Database.Driver)
	}

	if c.Tasks.DefaultCadenceDays <= 0 {
		return fmt.Errorf("tasks.default_cadence_days must be > 0, got %d", c.Tasks.DefaultCadenceDays)
	}
	if c.Issues.CriticalOverdueDays <= 0 || c.Issues.CloseRequestWarningDays <= 0 || c.Issues.InactiveDays <= 0 {
		return errors.New("issues thresholds must all be > 0")
	}

	seen := map[string]struct{}{}
	for i, company := range c.Companies {
		id := strings.ToLower(strings.TrimSpace(company.ID))
		if id == "" {
			return fmt.Errorf("companies[%d].id is required", i)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("companies[%d].id is duplicated: %s", i, id)
		}
		seen[id] = struct{}{}
	}

	if _, err := charmLog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level %q: %w", c.Logging.Level, err)
	}
	if c.Logging.File.MaxSizeMB < 0 || c.Logging.File.MaxBackups < 0 || c.Logging.File.MaxAgeDays < 0 {
		return errors.New("logging.file rotation values must be >= 0")
	}

	for _, ep := range []struct{ name, value string }{
		{"server.api_endpoint", c.Server.APIEndpoint},
		{"server.mcp_endpoint", c.Server.MCPEndpoint},
	} {
		if v := strings.TrimSpace(ep.value); v != "" && !strings.HasPrefix(v, "/") {
			return fmt.Errorf("%s must start with /: %q", ep.name, ep.value)
		}
	}

	for _, d := range []struct{ name, value string }{
		{"auth.token_ttl", c.Auth.TokenTTL},
		{"auth.impersonation_ttl", c.Auth.ImpersonationTTL},
		{"storage.url_ttl", c.Storage.URLTTL},
		{"notify.digest_interval", c.Notify.DigestInterval},
	} {
		if _, err := parseDuration(d.value); err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
	}

	if c.Storage.Enabled {
		if strings.TrimSpace(c.Storage.Endpoint) == "" || strings.TrimSpace(c.Storage.Bucket) == "" {
			return errors.New("storage.endpoint and storage.bucket are required when storage is enabled")
		}
	}
	if c.Notify.Enabled && strings.TrimSpace(c.Notify.NATSURL) == "" {
		return errors.New("notify.nats_url is required when notify is enabled")
	}
	return nil
}

// CompanyIDs returns the configured affiliation keys in file order.
func (c Config) CompanyIDs() []string {
	out := make([]string, 0, len(c.Companies))
	for _, company := range c.Companies {
		if id := strings.ToLower(strings.TrimSpace(company.ID)); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// TokenTTL returns the parsed auth.token_ttl.
func (c Config) TokenTTL() time.Duration {
	d, _ := parseDuration(c.Auth.TokenTTL)
	return d
}

// ImpersonationTTL returns the parsed auth.impersonation_ttl.
func (c Config) ImpersonationTTL() time.Duration {
	d, _ := parseDuration(c.Auth.ImpersonationTTL)
	return d
}

// ScreenshotURLTTL returns the parsed storage.url_ttl.
func (c Config) ScreenshotURLTTL() time.Duration {
	d, _ := parseDuration(c.Storage.URLTTL)
	return d
}

// DigestInterval returns the parsed notify.digest_interval.
func (c Config) DigestInterval() time.Duration {
	d, _ := parseDuration(c.Notify.DigestInterval)
	return d
}

// parseDuration accepts an empty string as zero.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0, got %s", raw)
	}
	return d, nil
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
