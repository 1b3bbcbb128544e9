// Package config reads the service configuration from CENSUS_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "census/pkg/platform/strings"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	MaxBodyBytes    int64
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit producer. Empty Brokers disables Kafka.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
}

// TracingConfig configures span export. Empty OTLPEndpoint disables it.
type TracingConfig struct {
	OTLPEndpoint string
	Insecure     bool
	SampleRatio  float64
	ServiceName  string
	Environment  string
}

type Config struct {
	Server Server

	// Store selects the import store backend.
	Store       string
	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Tracing     TracingConfig

	ValidationWorkers int
	LogLevel          string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:            getEnv("CENSUS_ADDR", ":8080"),
			MaxBodyBytes:    getEnvInt64("CENSUS_MAX_BODY_BYTES", 64<<20),
			ReadTimeout:     getEnvDuration("CENSUS_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("CENSUS_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CENSUS_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Store:       strings.ToLower(getEnv("CENSUS_STORE", StoreMemory)),
		DatabaseURL: os.Getenv("CENSUS_DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("CENSUS_REDIS_URL"),
			PoolSize:     getEnvInt("CENSUS_REDIS_POOL_SIZE", 20),
			MinIdleConns: getEnvInt("CENSUS_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("CENSUS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("CENSUS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("CENSUS_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           getEnvList("CENSUS_KAFKA_BROKERS"),
			Topic:             getEnv("CENSUS_KAFKA_AUDIT_TOPIC", "census.audit"),
			Partitions:        int32(getEnvInt("CENSUS_KAFKA_PARTITIONS", 1)),
			ReplicationFactor: int16(getEnvInt("CENSUS_KAFKA_REPLICATION_FACTOR", 1)),
		},
		Tracing: TracingConfig{
			OTLPEndpoint: os.Getenv("CENSUS_OTLP_ENDPOINT"),
			Insecure:     getEnvBool("CENSUS_OTLP_INSECURE", true),
			SampleRatio:  getEnvFloat("CENSUS_TRACE_SAMPLE_RATIO", 1),
			ServiceName:  getEnv("CENSUS_SERVICE_NAME", "census"),
			Environment:  getEnv("CENSUS_ENV", "development"),
		},
		ValidationWorkers: getEnvInt("CENSUS_VALIDATION_WORKERS", 5),
		LogLevel:          getEnv("CENSUS_LOG_LEVEL", "info"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []string
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, "CENSUS_DATABASE_URL is required for the postgres store")
		}
	case StoreRedis:
		if c.Redis.URL == "" {
			errs = append(errs, "CENSUS_REDIS_URL is required for the redis store")
		}
	default:
		errs = append(errs, fmt.Sprintf("CENSUS_STORE must be memory, postgres or redis, got %q", c.Store))
	}
	if c.ValidationWorkers <= 0 {
		errs = append(errs, "CENSUS_VALIDATION_WORKERS must be positive")
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, "CENSUS_MAX_BODY_BYTES must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, "CENSUS_KAFKA_AUDIT_TOPIC must not be empty")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, "CENSUS_TRACE_SAMPLE_RATIO must be between 0 and 1")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func getEnvBool(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvFloat(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvList(key string) []string {
	return platformstrings.SplitList(os.Getenv(key), ",")
}
