package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/claude/healthexport/internal/storage"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	// Path is the database file when Driver is sqlite.
	Path string `yaml:"path"`
}

// IngestConfig controls upload handling and chunking. Sizes are
// human-readable ("15MB", "1GiB") and resolved into the *Bytes fields by Load.
type IngestConfig struct {
	ChunkSize       int    `yaml:"chunk_size"`
	MaxDocumentSize string `yaml:"max_document_size"`
	MaxUploadSize   string `yaml:"max_upload_size"`
	TempDir         string `yaml:"temp_dir"`

	MaxDocumentBytes int   `yaml:"-"`
	MaxUploadBytes   int64 `yaml:"-"`
}

// RedisConfig enables the dataset cache when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// KafkaConfig enables ingest events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix HEALTHEXPORT_ and underscore-separated paths:
//
//	HEALTHEXPORT_SERVER_HOST, HEALTHEXPORT_SERVER_PORT,
//	HEALTHEXPORT_DB_DRIVER, HEALTHEXPORT_DB_HOST, HEALTHEXPORT_DB_PORT,
//	HEALTHEXPORT_DB_NAME, HEALTHEXPORT_DB_USER, HEALTHEXPORT_DB_PASSWORD,
//	HEALTHEXPORT_DB_SSLMODE, HEALTHEXPORT_DB_PATH,
//	HEALTHEXPORT_INGEST_MAX_UPLOAD_SIZE, HEALTHEXPORT_INGEST_TEMP_DIR,
//	HEALTHEXPORT_REDIS_ADDR, HEALTHEXPORT_REDIS_PASSWORD,
//	HEALTHEXPORT_KAFKA_BROKERS (comma-separated), HEALTHEXPORT_KAFKA_TOPIC,
//	HEALTHEXPORT_TAILSCALE_ENABLED
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv("HEALTHEXPORT_" + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv("HEALTHEXPORT_" + name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str("SERVER_HOST", &cfg.Server.Host)
	num("SERVER_PORT", &cfg.Server.Port)
	str("DB_DRIVER", &cfg.Database.Driver)
	str("DB_HOST", &cfg.Database.Host)
	num("DB_PORT", &cfg.Database.Port)
	str("DB_NAME", &cfg.Database.Name)
	str("DB_USER", &cfg.Database.User)
	str("DB_PASSWORD", &cfg.Database.Password)
	str("DB_SSLMODE", &cfg.Database.SSLMode)
	str("DB_PATH", &cfg.Database.Path)
	str("INGEST_MAX_UPLOAD_SIZE", &cfg.Ingest.MaxUploadSize)
	str("INGEST_TEMP_DIR", &cfg.Ingest.TempDir)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("KAFKA_TOPIC", &cfg.Kafka.Topic)
	if v := os.Getenv("HEALTHEXPORT_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	if v := os.Getenv("HEALTHEXPORT_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Ingest.ChunkSize == 0 {
		c.Ingest.ChunkSize = 5000
	}
	if c.Ingest.MaxDocumentSize == "" {
		c.Ingest.MaxDocumentSize = "15MB"
	}
	if c.Ingest.MaxUploadSize == "" {
		c.Ingest.MaxUploadSize = "1GB"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 10 * time.Minute
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "healthexport.datasets"
	}
	if c.Tailscale.Hostname == "" {
		c.Tailscale.Hostname = "healthexport"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}

	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}

	if c.Ingest.ChunkSize < 0 {
		return fmt.Errorf("ingest.chunk_size must be positive")
	}
	docSize, err := humanize.ParseBytes(c.Ingest.MaxDocumentSize)
	if err != nil {
		return fmt.Errorf("ingest.max_document_size: %w", err)
	}
	if docSize == 0 || docSize >= storage.MaxDocumentSize {
		return fmt.Errorf("ingest.max_document_size must be between 1 and %s", humanize.IBytes(storage.MaxDocumentSize))
	}
	c.Ingest.MaxDocumentBytes = int(docSize)

	uploadSize, err := humanize.ParseBytes(c.Ingest.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("ingest.max_upload_size: %w", err)
	}
	if uploadSize == 0 {
		return fmt.Errorf("ingest.max_upload_size must be positive")
	}
	c.Ingest.MaxUploadBytes = int64(uploadSize)

	if c.Redis.TTL < 0 {
		return fmt.Errorf("redis.ttl must not be negative")
	}
	return nil
}
