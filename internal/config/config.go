// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Audit store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Trail modes select how the list query returns tracking events.
const (
	TrailModeRows   = "rows"
	TrailModePacked = "packed"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	AuditStore    AuditStoreConfig    `yaml:"audit_store"`
	History       HistoryConfig       `yaml:"history"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	BasePath        string        `yaml:"base_path"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// AuditStoreConfig describes the connection to the Bitrix24 audit tables.
type AuditStoreConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	DSNEnv          string        `yaml:"dsn_env"`
	TrailMode       string        `yaml:"trail_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ResolveDSN returns the DSN from the environment variable named by DSNEnv,
// falling back to the inline DSN.
func (c AuditStoreConfig) ResolveDSN() string {
	if c.DSNEnv != "" {
		if v := os.Getenv(c.DSNEnv); v != "" {
			return v
		}
	}
	return c.DSN
}

// HistoryConfig describes the history endpoint behaviour.
type HistoryConfig struct {
	DefaultLimit    int      `yaml:"default_limit"`
	TrackingPreview int      `yaml:"tracking_preview"`
	UntitledName    string   `yaml:"untitled_name"`
	ErrorMessage    string   `yaml:"error_message"`
	DebugTables     []string `yaml:"debug_tables"`
	DebugParallel   int      `yaml:"debug_parallel"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			BasePath:        "/api",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-Correlation-Id"},
				MaxAge:         86400,
			},
		},
		AuditStore: AuditStoreConfig{
			Driver:          DriverPostgres,
			DSNEnv:          "BITRIX24_DB_DSN",
			TrailMode:       TrailModeRows,
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		History: HistoryConfig{
			DefaultLimit:    50,
			TrackingPreview: 10,
			UntitledName:    "Без названия",
			ErrorMessage:    "Ошибка получения данных из БД",
			DebugTables: []string{
				"b_bp_workflow_instance",
				"b_bp_workflow_template",
				"b_bp_tracking",
				"b_bp_task",
			},
			DebugParallel: 4,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		errs = append(errs, "server.base_path must start with /")
	}

	switch c.AuditStore.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Sprintf("audit_store.driver %q is not supported (postgres, sqlite)", c.AuditStore.Driver))
	}
	switch c.AuditStore.TrailMode {
	case TrailModeRows, TrailModePacked:
	default:
		errs = append(errs, fmt.Sprintf("audit_store.trail_mode %q is not supported (rows, packed)", c.AuditStore.TrailMode))
	}

	if c.History.DefaultLimit < 0 {
		errs = append(errs, "history.default_limit must not be negative")
	}
	if c.History.TrackingPreview < 0 {
		errs = append(errs, "history.tracking_preview must not be negative")
	}
	for _, table := range c.History.DebugTables {
		if !tableNamePattern.MatchString(table) {
			errs = append(errs, fmt.Sprintf("history.debug_tables: %q is not a valid table name", table))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads BPMON_* environment variables and overrides config
// values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BPMON_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BPMON_AUDIT_STORE_DRIVER"); v != "" {
		cfg.AuditStore.Driver = v
	}
	if v := os.Getenv("BPMON_AUDIT_STORE_DSN"); v != "" {
		cfg.AuditStore.DSN = v
	}
	if v := os.Getenv("BPMON_AUDIT_STORE_TRAIL_MODE"); v != "" {
		cfg.AuditStore.TrailMode = v
	}
	if v := os.Getenv("BPMON_HISTORY_DEBUG_TABLES"); v != "" {
		cfg.History.DebugTables = splitList(v)
	}
	if v := os.Getenv("BPMON_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
