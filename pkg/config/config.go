package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// Sink names accepted in sinks.enabled.
const (
	SinkLog      = "log"
	SinkPostgres = "postgres"
	SinkKafka    = "kafka"
	SinkRedis    = "redis"
	SinkFile     = "file"
	SinkSQLite   = "sqlite"
	SinkMemory   = "memory"
)

var knownSinks = []string{SinkLog, SinkPostgres, SinkKafka, SinkRedis, SinkFile, SinkSQLite, SinkMemory}

// Config holds all configuration for ekaya-audit.
// Values come from a YAML file and environment variables; environment
// variables win. Secrets (passwords) are read from the environment only.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"`

	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	File     FileConfig     `yaml:"file"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`

	Sinks SinksConfig `yaml:"sinks"`
	Audit AuditConfig `yaml:"audit"`
}

// ServerConfig holds the HTTP listener used by the serve command.
type ServerConfig struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	// ActorHeader names the request header that carries the acting user.
	ActorHeader string `yaml:"actor_header" env:"AUDIT_ACTOR_HEADER" env-default:"X-Ekaya-Actor"`
}

// DatabaseConfig holds PostgreSQL configuration for the audit_records table.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_audit"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// RedisConfig holds the Redis stream sink configuration.
type RedisConfig struct {
	Host         string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port         int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password     string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB           int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	StreamPrefix string `yaml:"stream_prefix" env:"REDIS_STREAM_PREFIX" env-default:"audit"`
	MaxLen       int64  `yaml:"max_len" env:"REDIS_STREAM_MAX_LEN" env-default:"100000"`
}

// KafkaConfig holds the Kafka sink configuration.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic    string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"audit-records"`
	ClientID string   `yaml:"client_id" env:"KAFKA_CLIENT_ID" env-default:"ekaya-audit"`
}

// FileConfig holds the JSON-lines file sink configuration.
type FileConfig struct {
	Path string `yaml:"path" env:"AUDIT_FILE_PATH" env-default:"audit.jsonl"`
}

// SQLiteConfig holds the SQLite sink configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" env:"AUDIT_SQLITE_PATH" env-default:"audit.db"`
}

// SinksConfig selects sinks and the decorators wrapped around them.
type SinksConfig struct {
	Enabled []string `yaml:"enabled" env:"AUDIT_SINKS" env-separator:"," env-default:"log"`

	Async        bool          `yaml:"async" env:"AUDIT_ASYNC" env-default:"false"`
	AsyncBuffer  int           `yaml:"async_buffer" env:"AUDIT_ASYNC_BUFFER" env-default:"1024"`
	AsyncWorkers int           `yaml:"async_workers" env:"AUDIT_ASYNC_WORKERS" env-default:"1"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"AUDIT_WRITE_TIMEOUT" env-default:"5s"`

	RetryMaxAttempts  int           `yaml:"retry_max_attempts" env:"AUDIT_RETRY_MAX_ATTEMPTS" env-default:"3"`
	RetryInitialDelay time.Duration `yaml:"retry_initial_delay" env:"AUDIT_RETRY_INITIAL_DELAY" env-default:"100ms"`

	BreakerMaxFailures uint32        `yaml:"breaker_max_failures" env:"AUDIT_BREAKER_MAX_FAILURES" env-default:"5"`
	BreakerTimeout     time.Duration `yaml:"breaker_timeout" env:"AUDIT_BREAKER_TIMEOUT" env-default:"30s"`
}

// AuditConfig holds the redaction policies.
type AuditConfig struct {
	// DefaultRedact applies to every entity type.
	DefaultRedact []string `yaml:"default_redact" env:"AUDIT_DEFAULT_REDACT" env-separator:"," env-default:"password,token,secret,ssn"`
	// DefaultSkip names bookkeeping fields ignored by change detection.
	DefaultSkip []string `yaml:"default_skip" env:"AUDIT_DEFAULT_SKIP" env-separator:"," env-default:"updatedAt"`
	// Entities adds per-entity-type names on top of the defaults.
	Entities map[string]EntityPolicyConfig `yaml:"entities"`
}

// EntityPolicyConfig lists the names for one entity type.
type EntityPolicyConfig struct {
	Redact []string `yaml:"redact"`
	Skip   []string `yaml:"skip"`
}

// Load reads configuration from the YAML file at path, if it exists, with
// environment variable overrides. An empty path means DefaultPath.
func Load(path, version string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := &Config{Version: version}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	cfg.Sinks.Enabled = normalizeNames(cfg.Sinks.Enabled)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for _, name := range c.Sinks.Enabled {
		if !isKnownSink(name) {
			return fmt.Errorf("unknown sink %q (known: %s)", name, strings.Join(knownSinks, ", "))
		}
	}
	if c.SinkEnabled(SinkKafka) && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka sink enabled but no brokers configured")
	}
	if c.SinkEnabled(SinkRedis) && c.Redis.Host == "" {
		return errors.New("redis sink enabled but redis.host is empty")
	}
	return nil
}

// SinkEnabled reports whether name is listed in sinks.enabled.
func (c *Config) SinkEnabled(name string) bool {
	for _, n := range c.Sinks.Enabled {
		if n == name {
			return true
		}
	}
	return false
}

// IsProduction reports whether Env names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func normalizeNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func isKnownSink(name string) bool {
	for _, k := range knownSinks {
		if k == name {
			return true
		}
	}
	return false
}
