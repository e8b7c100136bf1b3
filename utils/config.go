package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig
	Facebook FacebookConfig
	Telegram TelegramConfig
	Database DatabaseConfig
	Classify ClassifyConfig
	Server   ServerConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name     string
	Version  string
	Timezone string
}

// FacebookConfig holds Graph API configuration. Empty credentials are
// allowed: every fetcher degrades to zero-valued metrics without them.
type FacebookConfig struct {
	PageID         string
	PageToken      string
	MinIntervalMs  int
	CommentLimit   int
	FeedFetchLimit int
}

// TelegramConfig holds report delivery configuration. Empty credentials
// disable delivery; reports stay available over HTTP.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// DatabaseConfig holds the SQLite file paths.
type DatabaseConfig struct {
	CachePath    string
	ActivityPath string
}

// ClassifyConfig holds the dictionary file paths.
type ClassifyConfig struct {
	TopicsPath    string
	SentimentPath string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port      int
	RateLimit float64 // requests per second per client
}

// LoadConfig loads configuration from a .env file. A missing file is not an
// error: the environment alone may carry everything.
func LoadConfig(envPath string, log *logrus.Logger) (*Config, error) {
	if envPath == "" {
		envPath = ".env"
	}

	if err := godotenv.Load(envPath); err != nil {
		log.WithField("file", envPath).Debug("No .env file, using process environment")
	}

	config := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "FB KPI Tracker"),
			Version:  getEnv("APP_VERSION", "1.0.0"),
			Timezone: getEnv("APP_TIMEZONE", "Asia/Tbilisi"),
		},
		Facebook: FacebookConfig{
			PageID:         getEnv("FB_PAGE_ID", ""),
			PageToken:      getEnv("FB_PAGE_TOKEN", ""),
			MinIntervalMs:  getEnvAsInt("FB_MIN_INTERVAL_MS", 500),
			CommentLimit:   getEnvAsInt("FB_COMMENT_LIMIT", 20),
			FeedFetchLimit: getEnvAsInt("FB_FEED_FETCH_LIMIT", 100),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		},
		Database: DatabaseConfig{
			CachePath:    getEnv("CACHE_DB_PATH", "./data/metrics.db"),
			ActivityPath: getEnv("ACTIVITY_DB_PATH", "./data/activity.db"),
		},
		Classify: ClassifyConfig{
			TopicsPath:    getEnv("TOPIC_KEYWORDS_PATH", "./config/topic_keywords.yaml"),
			SentimentPath: getEnv("SENTIMENT_WORDS_PATH", "./config/sentiment_words.yaml"),
		},
		Server: ServerConfig{
			Port:      getEnvAsInt("SERVER_PORT", 8080),
			RateLimit: getEnvAsFloat("SERVER_RATE_LIMIT", 10),
		},
	}

	if err := validateConfig(config, log); err != nil {
		return nil, err
	}

	log.WithField("file", envPath).Info("Config loaded successfully")
	return config, nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location(log *logrus.Logger) *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		log.WithField("timezone", c.App.Timezone).Warn("Unknown timezone, falling back to UTC")
		return time.UTC
	}
	return loc
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// validateConfig checks hard requirements and warns about degraded modes.
// Missing Facebook or Telegram credentials are warnings, not errors: the
// pipeline still runs and produces zero-valued sections.
func validateConfig(config *Config, log *logrus.Logger) error {
	if config.Facebook.PageID == "" || config.Facebook.PageToken == "" {
		log.Warn("FB_PAGE_ID/FB_PAGE_TOKEN not set - Graph API metrics will be empty")
	}
	if config.Telegram.BotToken == "" || config.Telegram.ChatID == "" {
		log.Warn("TELEGRAM_BOT_TOKEN/TELEGRAM_CHAT_ID not set - report delivery disabled")
	}

	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if config.Facebook.MinIntervalMs < 0 {
		return fmt.Errorf("FB_MIN_INTERVAL_MS must not be negative")
	}

	// create nested db directories up front so first open doesn't fail
	for _, path := range []string{config.Database.CachePath, config.Database.ActivityPath} {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	return nil
}
