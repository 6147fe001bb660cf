package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const devJWTSecret = "dev-secret-change-me"

type Config struct {
	Port        string
	Env         string
	MetricsPort string
	LogLevel    string

	PostgresConnStr string
	MongoURI        string
	MongoDB         string
	RedisURL        string

	JWTSecret string
	JWTExpiry time.Duration

	FirebaseCredentialsPath string

	ResendAPIKey string
	FromEmail    string

	CORSOrigins     []string
	ReclaimSchedule string
}

// Load reads the environment, after merging a .env file when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, assuming environment variables are set")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		MetricsPort: getEnv("METRICS_PORT", "9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		PostgresConnStr: getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDB:         getEnv("MONGO_DB", "socialmedia"),
		RedisURL:        getOptionalEnv("REDIS_URL", "redis://localhost:6379"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTExpiry: getDurationEnv("JWT_EXPIRY", 72*time.Hour),

		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),

		ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		FromEmail:    getEnv("FROM_EMAIL", "noreply@riseup-connect.local"),

		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "*")),
		ReclaimSchedule: getOptionalEnv("RECLAIM_SCHEDULE", "@every 15m"),
	}

	if cfg.PostgresConnStr == "" {
		return nil, errors.New("POSTGRES_CONN_STR environment variable not set")
	}
	if cfg.MongoURI == "" {
		return nil, errors.New("MONGO_URI environment variable not set")
	}
	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET environment variable not set")
		}
		cfg.JWTSecret = devJWTSecret
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getOptionalEnv is getEnv where an explicitly empty value disables the feature.
func getOptionalEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
