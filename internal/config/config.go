package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string
	LogLevel    string

	StorageDriver string
	SQLitePath    string

	CORSAllowedOrigins []string
	PolicyPath         string
	VerifyCacheSize    int
	AccessLogFile      string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitFailClosed    bool
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ShutdownTimeoutSeconds int
}

// FromEnv reads server settings from the environment.
func FromEnv() Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SQLITE_PATH", "ghostmrr.db")
	v.SetDefault("VERIFY_CACHE_SIZE", 1024)
	v.SetDefault("RATE_LIMIT_REQUESTS", 0)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("RATE_LIMIT_FAIL_CLOSED", false)
	v.SetDefault("RATE_LIMIT_MAX_KEYS", 10000)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 10)

	cfg := Config{
		HTTPAddr:               v.GetString("HTTP_ADDR"),
		PostgresDSN:            v.GetString("POSTGRES_DSN"),
		LogLevel:               v.GetString("LOG_LEVEL"),
		StorageDriver:          strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_DRIVER"))),
		SQLitePath:             v.GetString("SQLITE_PATH"),
		CORSAllowedOrigins:     splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		PolicyPath:             v.GetString("POLICY_PATH"),
		VerifyCacheSize:        positiveOr(v.GetInt("VERIFY_CACHE_SIZE"), 1024),
		AccessLogFile:          v.GetString("ACCESS_LOG_FILE"),
		RateLimitRequests:      nonNegative(v.GetInt("RATE_LIMIT_REQUESTS")),
		RateLimitWindowSeconds: positiveOr(v.GetInt("RATE_LIMIT_WINDOW_SECONDS"), 60),
		RateLimitFailClosed:    v.GetBool("RATE_LIMIT_FAIL_CLOSED"),
		RateLimitMaxKeys:       positiveOr(v.GetInt("RATE_LIMIT_MAX_KEYS"), 10000),
		RedisAddr:              v.GetString("REDIS_ADDR"),
		RedisPassword:          v.GetString("REDIS_PASSWORD"),
		RedisDB:                nonNegative(v.GetInt("REDIS_DB")),
		ShutdownTimeoutSeconds: positiveOr(v.GetInt("SHUTDOWN_TIMEOUT_SECONDS"), 10),
	}
	if cfg.StorageDriver == "" {
		if cfg.PostgresDSN != "" {
			cfg.StorageDriver = StoragePostgres
		} else {
			cfg.StorageDriver = StorageMemory
		}
	}
	return cfg
}

// CLIConfig holds issuer-side settings from ~/.ghostmrr/config.yaml.
type CLIConfig struct {
	ServerURL   string
	KeypairPath string
	LogLevel    string
}

// DefaultDir is the per-user directory holding the keypair and CLI config.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".ghostmrr")
}

// LoadCLI reads the CLI config file at path, or the default location when
// path is empty. A missing file is not an error. GHOSTMRR_* environment
// variables override file values.
func LoadCLI(path string) (CLIConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("ghostmrr")
	v.AutomaticEnv()
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("keypair_path", filepath.Join(DefaultDir(), "keypair.json"))
	v.SetDefault("log_level", "warn")

	if path == "" {
		path = filepath.Join(DefaultDir(), "config.yaml")
	}
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
			return CLIConfig{}, err
		}
	}
	return CLIConfig{
		ServerURL:   strings.TrimRight(v.GetString("server_url"), "/"),
		KeypairPath: v.GetString("keypair_path"),
		LogLevel:    v.GetString("log_level"),
	}, nil
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
