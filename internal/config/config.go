package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Encoder  EncoderConfig
	Storage  StorageConfig
}

type ServerConfig struct {
	Addr            string        // listen address (default :8080)
	MaxUploadSize   int64         // multipart memory / upload ceiling in bytes
	RequestTimeout  time.Duration // ceiling for one enroll/identify call
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Addr string
}

type EncoderConfig struct {
	URL       string  // face embedding service base URL
	Tolerance float64 // max embedding distance still considered a match
}

type StorageConfig struct {
	DataDir         string // root for images/, signatures/ and staging/
	ReadConcurrency int    // bound on in-flight signature reads during identification
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func Load() *Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Addr:            envString("LISTEN_ADDR", ":8080"),
			MaxUploadSize:   int64(envInt("MAX_UPLOAD_SIZE", 8<<20)),
			RequestTimeout:  envDuration("REQUEST_TIMEOUT", 10*time.Second),
			ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			DSN:          envString("DATABASE_DSN", "host=postgres user=postgres password=postgres dbname=faceattend port=5432 sslmode=disable"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr: envString("REDIS_ADDR", "redis:6379"),
		},
		Encoder: EncoderConfig{
			URL:       envString("ENCODER_URL", "http://localhost:8000"),
			Tolerance: envFloat("MATCH_TOLERANCE", 0.6),
		},
		Storage: StorageConfig{
			DataDir:         envString("DATA_DIR", "data"),
			ReadConcurrency: envInt("SIGNATURE_READ_CONCURRENCY", 4),
		},
	}
}
