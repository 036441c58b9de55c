// Package config resolves the service configuration: defaults first, then
// the optional YAML file named by CONFIG_FILE, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ObjectStoreS3       = "s3"
	ObjectStorePostgres = "postgres"
	ObjectStoreMemory   = "memory"

	IndexStoreDynamo = "dynamodb"
	IndexStoreMemory = "memory"
)

type Config struct {
	PostgresURL string
	RedisAddr   string
	HTTPAddr    string

	ObjectStore   string
	ArchiveBucket string
	IndexStore    string
	IndexTable    string

	AWSRegion      string
	AWSEndpointURL string

	BatchSize       int
	Concurrency     int
	Interval        time.Duration
	StoreTimeout    time.Duration
	PoisonThreshold int

	LeaseEnabled bool
	LeaseKey     string
	LeaseTTL     time.Duration

	NotificationsEnabled bool

	OTLPEndpoint string
}

type configFile struct {
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisAddr   string `yaml:"redis_addr"`
	} `yaml:"dependencies"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Archive struct {
		Store  string `yaml:"store"`
		Bucket string `yaml:"bucket"`
	} `yaml:"archive"`
	Index struct {
		Store string `yaml:"store"`
		Table string `yaml:"table"`
	} `yaml:"index"`
	AWS struct {
		Region      string `yaml:"region"`
		EndpointURL string `yaml:"endpoint_url"`
	} `yaml:"aws"`
	Publication struct {
		BatchSize       int           `yaml:"batch_size"`
		Concurrency     int           `yaml:"concurrency"`
		Interval        time.Duration `yaml:"interval"`
		StoreTimeout    time.Duration `yaml:"store_timeout"`
		PoisonThreshold int           `yaml:"poison_threshold"`
	} `yaml:"publication"`
	Lease struct {
		Enabled *bool         `yaml:"enabled"`
		Key     string        `yaml:"key"`
		TTL     time.Duration `yaml:"ttl"`
	} `yaml:"lease"`
	Notifications struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"notifications"`
	Telemetry struct {
		OTLPEndpoint string `yaml:"otlp_endpoint"`
	} `yaml:"telemetry"`
}

func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		ObjectStore:     ObjectStoreS3,
		IndexStore:      IndexStoreDynamo,
		IndexTable:      "domain-events",
		AWSRegion:       "eu-west-2",
		BatchSize:       100,
		Concurrency:     10,
		Interval:        10 * time.Second,
		StoreTimeout:    10 * time.Second,
		PoisonThreshold: 5,
		LeaseKey:        "domain-event-publication",
		LeaseTTL:        5 * time.Minute,
	}
}

// Load resolves and validates the configuration of the process.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := cfg.applyFile(raw); err != nil {
			return Config{}, err
		}
	}

	env := envReader{}
	cfg.PostgresURL = env.String("POSTGRES_URL", cfg.PostgresURL)
	cfg.RedisAddr = env.String("REDIS_ADDR", cfg.RedisAddr)
	cfg.HTTPAddr = env.String("HTTP_ADDR", cfg.HTTPAddr)
	cfg.ObjectStore = strings.ToLower(env.String("OBJECT_STORE", cfg.ObjectStore))
	cfg.ArchiveBucket = env.String("ARCHIVE_BUCKET", cfg.ArchiveBucket)
	cfg.IndexStore = strings.ToLower(env.String("INDEX_STORE", cfg.IndexStore))
	cfg.IndexTable = env.String("INDEX_TABLE", cfg.IndexTable)
	cfg.AWSRegion = env.String("AWS_REGION", cfg.AWSRegion)
	cfg.AWSEndpointURL = env.String("AWS_ENDPOINT_URL", cfg.AWSEndpointURL)
	cfg.BatchSize = env.Int("PUBLICATION_BATCH_SIZE", cfg.BatchSize)
	cfg.Concurrency = env.Int("PUBLICATION_CONCURRENCY", cfg.Concurrency)
	cfg.Interval = env.Duration("PUBLICATION_INTERVAL", cfg.Interval)
	cfg.StoreTimeout = env.Duration("STORE_TIMEOUT", cfg.StoreTimeout)
	cfg.PoisonThreshold = env.Int("POISON_THRESHOLD", cfg.PoisonThreshold)
	cfg.LeaseEnabled = env.Bool("LEASE_ENABLED", cfg.LeaseEnabled)
	cfg.LeaseKey = env.String("LEASE_KEY", cfg.LeaseKey)
	cfg.LeaseTTL = env.Duration("LEASE_TTL", cfg.LeaseTTL)
	cfg.NotificationsEnabled = env.Bool("NOTIFICATIONS_ENABLED", cfg.NotificationsEnabled)
	cfg.OTLPEndpoint = env.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)

	if err := errors.Join(append(env.errs, cfg.Validate())...); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyFile(raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setString(&c.PostgresURL, f.Dependencies.PostgresURL)
	setString(&c.RedisAddr, f.Dependencies.RedisAddr)
	setString(&c.HTTPAddr, f.HTTP.Addr)
	setString(&c.ObjectStore, strings.ToLower(f.Archive.Store))
	setString(&c.ArchiveBucket, f.Archive.Bucket)
	setString(&c.IndexStore, strings.ToLower(f.Index.Store))
	setString(&c.IndexTable, f.Index.Table)
	setString(&c.AWSRegion, f.AWS.Region)
	setString(&c.AWSEndpointURL, f.AWS.EndpointURL)
	setString(&c.LeaseKey, f.Lease.Key)
	setString(&c.OTLPEndpoint, f.Telemetry.OTLPEndpoint)

	if f.Publication.BatchSize > 0 {
		c.BatchSize = f.Publication.BatchSize
	}
	if f.Publication.Concurrency > 0 {
		c.Concurrency = f.Publication.Concurrency
	}
	if f.Publication.Interval > 0 {
		c.Interval = f.Publication.Interval
	}
	if f.Publication.StoreTimeout > 0 {
		c.StoreTimeout = f.Publication.StoreTimeout
	}
	if f.Publication.PoisonThreshold > 0 {
		c.PoisonThreshold = f.Publication.PoisonThreshold
	}
	if f.Lease.Enabled != nil {
		c.LeaseEnabled = *f.Lease.Enabled
	}
	if f.Lease.TTL > 0 {
		c.LeaseTTL = f.Lease.TTL
	}
	if f.Notifications.Enabled != nil {
		c.NotificationsEnabled = *f.Notifications.Enabled
	}

	return nil
}

func (c Config) Validate() error {
	var errs []error

	if c.PostgresURL == "" {
		errs = append(errs, errors.New("missing POSTGRES_URL"))
	}
	if (c.LeaseEnabled || c.NotificationsEnabled) && c.RedisAddr == "" {
		errs = append(errs, errors.New("missing REDIS_ADDR, required by the lease and notifications"))
	}

	switch c.ObjectStore {
	case ObjectStoreS3, ObjectStorePostgres, ObjectStoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown OBJECT_STORE %q", c.ObjectStore))
	}
	if c.ArchiveBucket == "" {
		errs = append(errs, errors.New("missing ARCHIVE_BUCKET"))
	}

	switch c.IndexStore {
	case IndexStoreDynamo:
		if c.IndexTable == "" {
			errs = append(errs, errors.New("missing INDEX_TABLE"))
		}
	case IndexStoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown INDEX_STORE %q", c.IndexStore))
	}

	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("PUBLICATION_BATCH_SIZE must be positive, got %d", c.BatchSize))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("PUBLICATION_CONCURRENCY must be positive, got %d", c.Concurrency))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("PUBLICATION_INTERVAL must be positive, got %s", c.Interval))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, fmt.Errorf("STORE_TIMEOUT must be positive, got %s", c.StoreTimeout))
	}
	if c.PoisonThreshold < 0 {
		errs = append(errs, fmt.Errorf("POISON_THRESHOLD must not be negative, got %d", c.PoisonThreshold))
	}
	if c.LeaseEnabled && c.LeaseTTL <= 0 {
		errs = append(errs, fmt.Errorf("LEASE_TTL must be positive, got %s", c.LeaseTTL))
	}

	return errors.Join(errs...)
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// envReader reads overrides and remembers the values it could not parse.
type envReader struct {
	errs []error
}

func (r *envReader) String(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func (r *envReader) Int(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", name, err))
		return fallback
	}
	return v
}

func (r *envReader) Duration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", name, err))
		return fallback
	}
	return v
}

func (r *envReader) Bool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", name, err))
		return fallback
	}
	return v
}
