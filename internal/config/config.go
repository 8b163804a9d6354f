// Package config loads application configuration from TOML with
// environment overrides.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultHTTPAddr           = ":8080"
	DefaultLogLevel           = "info"
	DefaultDatabaseDriver     = "sqlite3"
	DefaultDatabaseURL        = "./outreach.db"
	DefaultAuditSink          = "log"
	DefaultAuditRedisKey      = "outreach:audit"
	DefaultMergeConcurrency   = 1
	DefaultMergeBatchSize     = 500
	DefaultExportPageSize     = 1000
	DefaultReadTimeout        = 15 * time.Second
	DefaultWriteTimeout       = 30 * time.Second
	DefaultExportWriteTimeout = 5 * time.Minute
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Audit    AuditConfig    `toml:"audit"`
	Merge    MergeConfig    `toml:"merge"`
	Export   ExportConfig   `toml:"export"`
}

// LogConfig holds the log level and an optional JSON log file.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// ServerConfig holds the HTTP listen address and timeouts.
type ServerConfig struct {
	Addr         string   `toml:"addr"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
}

// DatabaseConfig selects the SQL driver ("sqlite3" or "postgres") and DSN.
type DatabaseConfig struct {
	Driver string `toml:"driver"`
	URL    string `toml:"url"`
}

// AuthConfig holds the HS256 secret used to verify bearer tokens.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

// AuditConfig selects where audit events go: "log" or "redis".
type AuditConfig struct {
	Sink     string `toml:"sink"`
	RedisURL string `toml:"redis_url"`
	RedisKey string `toml:"redis_key"`
}

// MergeConfig bounds the bulk conversation merge.
type MergeConfig struct {
	Concurrency int `toml:"concurrency"`
	BatchSize   int `toml:"batch_size"`
}

// ExportConfig tunes the contact export path.
type ExportConfig struct {
	PageSize     int      `toml:"page_size"`
	WriteTimeout Duration `toml:"write_timeout"`
}

// Duration decodes TOML strings like "30s" into a time.Duration.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns a configuration with every field set to its default.
func Default() Config {
	return Config{
		Log:      LogConfig{Level: DefaultLogLevel},
		Server:   ServerConfig{Addr: DefaultHTTPAddr, ReadTimeout: Duration{DefaultReadTimeout}, WriteTimeout: Duration{DefaultWriteTimeout}},
		Database: DatabaseConfig{Driver: DefaultDatabaseDriver, URL: DefaultDatabaseURL},
		Audit:    AuditConfig{Sink: DefaultAuditSink, RedisKey: DefaultAuditRedisKey},
		Merge:    MergeConfig{Concurrency: DefaultMergeConcurrency, BatchSize: DefaultMergeBatchSize},
		Export:   ExportConfig{PageSize: DefaultExportPageSize, WriteTimeout: Duration{DefaultExportWriteTimeout}},
	}
}

// Load reads the TOML file at path over the defaults and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	fillDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Audit.RedisURL = v
	}
	if v := os.Getenv("MERGE_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Merge.Concurrency = n
		}
	}
}

// fillDefaults restores defaults for fields a TOML file explicitly zeroed.
func fillDefaults(cfg *Config) {
	d := Default()
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if cfg.Server.ReadTimeout.Duration <= 0 {
		cfg.Server.ReadTimeout = d.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout.Duration <= 0 {
		cfg.Server.WriteTimeout = d.Server.WriteTimeout
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = d.Database.Driver
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = d.Database.URL
	}
	if cfg.Audit.Sink == "" {
		cfg.Audit.Sink = d.Audit.Sink
	}
	if cfg.Audit.RedisKey == "" {
		cfg.Audit.RedisKey = d.Audit.RedisKey
	}
	if cfg.Merge.Concurrency <= 0 {
		cfg.Merge.Concurrency = d.Merge.Concurrency
	}
	if cfg.Merge.BatchSize <= 0 {
		cfg.Merge.BatchSize = d.Merge.BatchSize
	}
	if cfg.Export.PageSize <= 0 {
		cfg.Export.PageSize = d.Export.PageSize
	}
	if cfg.Export.WriteTimeout.Duration <= 0 {
		cfg.Export.WriteTimeout = d.Export.WriteTimeout
	}
}
