// Package config loads veriforge configuration: process-level settings from
// environment variables and the project file (repositories, address files,
// static overrides) from YAML.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for veriforge.
type Config struct {
	Project  ProjectConfig
	Explorer ExplorerConfig
	Node     NodeConfig
	Build    BuildConfig
	Storage  StorageConfig
	Server   ServerConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ProjectConfig locates the deployment repository and its data files.
type ProjectConfig struct {
	Root        string // deployment repository root (holds .gitmodules, address files)
	File        string // project YAML file path
	MappingFile string // persisted name -> build target mapping
}

// ExplorerConfig holds block-explorer API settings.
type ExplorerConfig struct {
	BaseURL           string
	TimeoutSeconds    int
	RequestsPerSecond float64
	Burst             int
}

// NodeConfig holds chain-node RPC settings.
type NodeConfig struct {
	RPCURL         string
	TimeoutSeconds int
}

// BuildConfig holds external-builder settings.
type BuildConfig struct {
	TimeoutSeconds    int    // per forge invocation
	GitTimeoutSeconds int    // per git invocation
	CloneBase         string // remote base URL for ephemeral checkouts
	DependencyDir     string // dependency directory prefix inside checkouts
}

// StorageConfig holds run-history storage settings.
type StorageConfig struct {
	Type     string // "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// PostgresConfig holds Postgres connection settings.
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings.
type SQLiteConfig struct {
	Path string
}

// ServerConfig holds HTTP server settings for the serve command.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
	RateLimit    RateLimitConfig
}

// RateLimitConfig holds per-client API rate limiting settings.
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	Burst          int
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Project: ProjectConfig{
			Root:        getEnv("VERIFORGE_ROOT", "."),
			File:        getEnv("VERIFORGE_PROJECT_FILE", "veriforge.yaml"),
			MappingFile: getEnv("VERIFORGE_MAPPING_FILE", "contract-mapping.json"),
		},
		Explorer: ExplorerConfig{
			BaseURL:           getEnv("EXPLORER_API_URL", "https://www.hyperscan.com/api/v2"),
			TimeoutSeconds:    getEnvInt("EXPLORER_TIMEOUT", 30),
			RequestsPerSecond: getEnvFloat("EXPLORER_RPS", 10),
			Burst:             getEnvInt("EXPLORER_BURST", 10),
		},
		Node: NodeConfig{
			RPCURL:         getEnv("NODE_RPC_URL", "https://rpc.hyperliquid.xyz/evm"),
			TimeoutSeconds: getEnvInt("NODE_TIMEOUT", 10),
		},
		Build: BuildConfig{
			TimeoutSeconds:    getEnvInt("BUILD_TIMEOUT", 600),
			GitTimeoutSeconds: getEnvInt("GIT_TIMEOUT", 120),
			CloneBase:         getEnv("CLONE_BASE_URL", "https://github.com"),
			DependencyDir:     getEnv("DEPENDENCY_DIR", "lib"),
		},
		Storage: StorageConfig{
			Type: getEnv("STORAGE_TYPE", "sqlite"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "./data/veriforge.db"),
			},
		},
		Server: ServerConfig{
			Host:         getEnv("HOST", "0.0.0.0"),
			Port:         getEnvInt("PORT", 8080),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 120),
			RateLimit: RateLimitConfig{
				Enabled:        getEnvBool("RATE_LIMIT_ENABLED", false),
				RequestsPerMin: getEnvInt("RATE_LIMIT_PER_MIN", 300),
				Burst:          getEnvInt("RATE_LIMIT_BURST", 30),
			},
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
	}

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && cfg.Storage.Type == "sqlite" {
		cfg.Storage.Type = "postgres"
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}
