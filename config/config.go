package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	DatabaseDriver string
	DatabaseURL    string
	JWTSecret      string
	LogLevel       string
	LogFormat      string
	FrontendURL    string
	AdminURL       string

	RedisURL            string
	LeaderboardCacheTTL time.Duration

	GoogleCredentials     string
	NotificationQueueSize int
	NotificationWorkers   int

	AllowSelfRecognition bool
	MaxRecognitionPoints int64
	CatalogSeedFile      string

	RateLimitRPS   float64
	RateLimitBurst int
}

// LoadEnv reads a .env file when there is one. A missing file is normal
// outside local development; a file that cannot be read is an error.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LEADERBOARD_CACHE_TTL", "30s")
	v.SetDefault("NOTIFICATION_QUEUE_SIZE", 256)
	v.SetDefault("NOTIFICATION_WORKERS", 2)
	v.SetDefault("ALLOW_SELF_RECOGNITION", false)
	v.SetDefault("MAX_RECOGNITION_POINTS", 1000)
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)

	return &Config{
		Port:                  v.GetString("PORT"),
		DatabaseDriver:        strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseURL:           v.GetString("DATABASE_URL"),
		JWTSecret:             v.GetString("JWT_SECRET"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		LogFormat:             v.GetString("LOG_FORMAT"),
		FrontendURL:           v.GetString("FRONTEND_URL"),
		AdminURL:              v.GetString("ADMIN_URL"),
		RedisURL:              v.GetString("REDIS_URL"),
		LeaderboardCacheTTL:   v.GetDuration("LEADERBOARD_CACHE_TTL"),
		GoogleCredentials:     v.GetString("GOOGLE_APPLICATION_CREDENTIALS"),
		NotificationQueueSize: v.GetInt("NOTIFICATION_QUEUE_SIZE"),
		NotificationWorkers:   v.GetInt("NOTIFICATION_WORKERS"),
		AllowSelfRecognition:  v.GetBool("ALLOW_SELF_RECOGNITION"),
		MaxRecognitionPoints:  v.GetInt64("MAX_RECOGNITION_POINTS"),
		CatalogSeedFile:       v.GetString("CATALOG_SEED_FILE"),
		RateLimitRPS:          v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:        v.GetInt("RATE_LIMIT_BURST"),
	}
}

// Validate checks that critical settings are present and logs a warning for
// each optional one that is not. Returns an error if any critical variable is missing.
func (c *Config) Validate(log logrus.FieldLogger) error {
	var missing []string

	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	switch c.DatabaseDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}

	if len(missing) > 0 {
		return fmt.Errorf("critical environment variables not set: %v", missing)
	}

	// Non-critical variables - log warnings but don't fail
	if c.GoogleCredentials == "" {
		log.Warn("GOOGLE_APPLICATION_CREDENTIALS not set - push notifications will only be logged")
	}
	if c.RedisURL == "" {
		log.Warn("REDIS_URL not set - leaderboard will not be cached")
	}
	if c.FrontendURL == "" {
		log.Warn("FRONTEND_URL not set - CORS may not work correctly")
	}
	if c.AdminURL == "" {
		log.Warn("ADMIN_URL not set")
	}

	return nil
}
