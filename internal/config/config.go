// Package config loads server settings from .env files and the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config is the complete server configuration.
type Config struct {
	Port           string
	DatabaseURL    string
	JWTSecret      string
	JWTTTL         time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	AllowedOrigins []string
	OTelEndpoint   string
	OTelService    string
	QueryCacheSize int
	Introspection  bool

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
}

// Load reads the environment. Call LoadEnv first to pick up .env files.
func Load() Config {
	return Config{
		Port:              GetEnv("PORT", "3000"),
		DatabaseURL:       GetEnv("DATABASE_URL", ""),
		JWTSecret:         GetEnv("JWT_SECRET", ""),
		JWTTTL:            GetEnvDuration("JWT_TTL", 24*time.Hour),
		RequestTimeout:    GetEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		MaxBodyBytes:      int64(GetEnvInt("MAX_BODY_BYTES", 1<<20)),
		AllowedOrigins:    GetEnvList("ALLOWED_ORIGINS", []string{"*"}),
		OTelEndpoint:      GetEnv("OTEL_ENDPOINT", ""),
		OTelService:       GetEnv("OTEL_SERVICE", "graphpress"),
		QueryCacheSize:    GetEnvInt("QUERY_CACHE_SIZE", 256),
		Introspection:     GetEnvBool("INTROSPECTION", true),
		DBMaxOpenConns:    GetEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    GetEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: GetEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// LoadEnv loads environment variables from .env files in the working directory.
func LoadEnv(logger *logrus.Logger) {
	files := []string{".env", ".env.dev"}
	loaded := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Overload(file); err != nil {
			if logger != nil {
				logger.WithError(err).Warnf("Failed to load %s", file)
			}
			continue
		}
		loaded = append(loaded, file)
	}
	if logger == nil {
		return
	}
	if len(loaded) == 0 {
		logger.Debug("No local env files loaded; relying on process environment")
	} else {
		logger.Debugf("Loaded env files: %s", strings.Join(loaded, ", "))
	}
}

// GetEnv gets an environment variable with a default value.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvDuration accepts Go duration syntax ("30s", "1h").
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetEnvList splits a comma separated variable, dropping empty items.
func GetEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// GetLogLevel gets the log level from LOG_LEVEL.
func GetLogLevel() logrus.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
