package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Addr     string
	LogLevel string

	StorageType    string // memory | sqlite | s3
	DataSourceName string
	S3Bucket       string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BrokerType string // local | redis | nats
	NatsURL    string

	DebounceInterval time.Duration
}

// Load reads configuration from a .env file (if present) and the
// environment. Every value has a default suitable for single-node
// development without Redis or NATS.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("failed to load .env file")
	}

	return &Config{
		Addr:             getEnv("ADDR", ":3002"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		StorageType:      getEnv("STORAGE_TYPE", "memory"),
		DataSourceName:   getEnv("DATA_SOURCE_NAME", "collabdoc.db"),
		S3Bucket:         getEnv("S3_BUCKET", ""),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		BrokerType:       getEnv("BROKER_TYPE", "local"),
		NatsURL:          getEnv("NATS_URL", ""),
		DebounceInterval: getEnvDuration("DEBOUNCE_INTERVAL", 2*time.Second),
	}
}

func getEnv(name, fallback string) string {
	if val := os.Getenv(name); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(name string, fallback int) int {
	val := os.Getenv(name)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		logrus.WithFields(logrus.Fields{"name": name, "value": val}).Warn("invalid integer env var, using default")
		return fallback
	}
	return n
}

func getEnvDuration(name string, fallback time.Duration) time.Duration {
	val := os.Getenv(name)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		logrus.WithFields(logrus.Fields{"name": name, "value": val}).Warn("invalid duration env var, using default")
		return fallback
	}
	return d
}
