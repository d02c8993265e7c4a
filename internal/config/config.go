package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// DevMode разрешает сброс базы и пересоздание схемы при сбое миграций
	DevMode bool `env:"DEV_MODE" envDefault:"false"`

	// Redis Config
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass     string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	IssueCacheTTL time.Duration `env:"ISSUE_CACHE_TTL" envDefault:"5m"`

	// Webhook Config
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`

	// Backup Config
	BackupDir string `env:"BACKUP_DIR"`

	// Tracker Config
	TrackerPermissionTimeout time.Duration `env:"TRACKER_PERMISSION_TIMEOUT" envDefault:"30s"`
	TrackerStationaryRadius  float64       `env:"TRACKER_STATIONARY_RADIUS_METERS" envDefault:"5"`
	TrackerFeedBuffer        int           `env:"TRACKER_FEED_BUFFER" envDefault:"64"`
	TrackerFeedMaxRetries    int           `env:"TRACKER_FEED_MAX_RETRIES" envDefault:"0"`
	TrackerFeedBaseDelay     time.Duration `env:"TRACKER_FEED_BASE_DELAY" envDefault:"1s"`

	// Ограничение частоты приема координат от устройства
	FixRateLimitRPS   int `env:"FIX_RATE_LIMIT_RPS" envDefault:"20"`
	FixRateLimitBurst int `env:"FIX_RATE_LIMIT_BURST" envDefault:"40"`

	// API Keys for authentication
	APIKeys []string `env:"API_KEYS"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("ошибка загрузки файла .env: %w", err)
	}

	cfg := &Config{
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		HTTPPort:                 getEnv("HTTP_PORT", "8080"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		DevMode:                  getEnvAsBool("DEV_MODE", false),
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:                os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  getEnvAsInt("REDIS_DB", 0),
		IssueCacheTTL:            getEnvAsDuration("ISSUE_CACHE_TTL", 5*time.Minute),
		WebhookURL:               os.Getenv("WEBHOOK_URL"),
		WebhookSecret:            os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:           getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries:        getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:         getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
		BackupDir:                os.Getenv("BACKUP_DIR"),
		TrackerPermissionTimeout: getEnvAsDuration("TRACKER_PERMISSION_TIMEOUT", 30*time.Second),
		TrackerStationaryRadius:  getEnvAsFloat("TRACKER_STATIONARY_RADIUS_METERS", 5),
		TrackerFeedBuffer:        getEnvAsInt("TRACKER_FEED_BUFFER", 64),
		TrackerFeedMaxRetries:    getEnvAsInt("TRACKER_FEED_MAX_RETRIES", 0),
		TrackerFeedBaseDelay:     getEnvAsDuration("TRACKER_FEED_BASE_DELAY", time.Second),
		FixRateLimitRPS:          getEnvAsInt("FIX_RATE_LIMIT_RPS", 20),
		FixRateLimitBurst:        getEnvAsInt("FIX_RATE_LIMIT_BURST", 40),
	}

	// Загрузка API ключей
	apiKeysStr := os.Getenv("API_KEYS")
	if apiKeysStr != "" {
		for _, key := range strings.Split(apiKeysStr, ",") {
			if key = strings.TrimSpace(key); key != "" {
				cfg.APIKeys = append(cfg.APIKeys, key)
			}
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	if cfg.TrackerFeedBuffer < 1 {
		cfg.TrackerFeedBuffer = 1
	}

	return cfg, nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat возвращает значение переменной окружения как float64 или значение по умолчанию
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsBool возвращает значение переменной окружения как bool или значение по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}
