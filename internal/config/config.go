// Package config loads the room service configuration from the environment.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the full configuration of the room service daemon.
type Config struct {
	HTTPAddr      string
	PublicBaseURL string

	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	// FilterReasons is the moderation filter set applied by sessions and
	// used by the server to decide which messages to alert operators about.
	FilterReasons []string

	// TelegramToken and TelegramChatID configure the moderation alert
	// bridge. Alerting is disabled when the token is empty.
	TelegramToken  string
	TelegramChatID int64
}

// Load reads the environment (and an optional .env file) into a Config.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	redisDB, _ := strconv.Atoi(getenv("REDIS_DB", "0"))
	chatID, _ := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)

	return Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		PostgresDSN: getenv("POSTGRES_DSN",
			"host=localhost user=user password=password dbname=streamroomdb port=5432 sslmode=disable"),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        redisDB,
		JWTSecret:      getenv("JWT_SECRET", "dev-secret-change-me"),
		FilterReasons:  splitList(os.Getenv("FILTER_REASONS")),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: chatID,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
