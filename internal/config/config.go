package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string

	BotToken    string
	BotMode     string
	WebhookURL  string
	WebhookPath string

	// AdminChatID is the group whose members are treated as admins and
	// which receives the log cards.
	AdminChatID    int64
	TopicLogsAll   int
	CategoryTopics map[string]int
	MembershipTTL  time.Duration
	CommitLockTTL  time.Duration
	DigestSchedule string
	VerifySchedule string

	DatabaseURL string
	RedisURL    string

	MeiliSearchHost string
	MeiliMasterKey  string

	CloudinaryURL          string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	JWTSecret            string
	AdminAPIPasswordHash string
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),

		BotToken:    os.Getenv("BOT_TOKEN"),
		BotMode:     getEnv("BOT_MODE", "polling"),
		WebhookURL:  os.Getenv("WEBHOOK_URL"),
		WebhookPath: getEnv("WEBHOOK_PATH", "/telegram/webhook"),

		DigestSchedule: getEnv("DIGEST_SCHEDULE", "0 10 * * 1"),
		VerifySchedule: getEnv("VERIFY_SCHEDULE", "0 4 * * *"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		MeiliSearchHost: os.Getenv("MEILISEARCH_HOST"),
		MeiliMasterKey:  os.Getenv("MEILI_MASTER_KEY"),

		CloudinaryURL:          os.Getenv("CLOUDINARY_URL"),
		CloudinaryCloudName:    os.Getenv("CLOUDINARY_CLOUD_NAME"),
		CloudinaryAPIKey:       os.Getenv("CLOUDINARY_API_KEY"),
		CloudinaryAPISecret:    os.Getenv("CLOUDINARY_API_SECRET"),
		CloudinaryUploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "kmbp_projects"),

		JWTSecret:            getEnv("JWT_SECRET", "12345"),
		AdminAPIPasswordHash: os.Getenv("ADMIN_API_PASSWORD_HASH"),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}
	if cfg.BotMode != "polling" && cfg.BotMode != "webhook" {
		return nil, fmt.Errorf("invalid BOT_MODE %q: want polling or webhook", cfg.BotMode)
	}
	if cfg.BotMode == "webhook" && cfg.WebhookURL == "" {
		return nil, fmt.Errorf("WEBHOOK_URL is required in webhook mode")
	}

	var err error
	cfg.AdminChatID, err = strconv.ParseInt(os.Getenv("ADMIN_CHAT_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_CHAT_ID: %w", err)
	}

	cfg.TopicLogsAll, err = parseInt(getEnv("TOPIC_LOGS_ALL", "46"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOPIC_LOGS_ALL: %w", err)
	}

	cfg.CategoryTopics = make(map[string]int, len(categoryTopicKeys))
	for category, key := range categoryTopicKeys {
		topic, err := parseInt(getEnv(key.env, key.fallback))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key.env, err)
		}
		if topic > 0 {
			cfg.CategoryTopics[category] = topic
		}
	}

	cfg.MembershipTTL, err = parseDuration(getEnv("MEMBERSHIP_CACHE_TTL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid MEMBERSHIP_CACHE_TTL: %w", err)
	}
	cfg.CommitLockTTL, err = parseDuration(getEnv("COMMIT_LOCK_TTL", "3s"))
	if err != nil {
		return nil, fmt.Errorf("invalid COMMIT_LOCK_TTL: %w", err)
	}

	return cfg, nil
}

var categoryTopicKeys = map[string]struct{ env, fallback string }{
	"support_bots":   {"TOPIC_SUPPORT_BOTS", "38"},
	"support_admins": {"TOPIC_SUPPORT_ADMINS", "41"},
	"lot_channels":   {"TOPIC_LOT_CHANNELS", "39"},
	"check_channels": {"TOPIC_CHECK_CHANNELS", "42"},
	"kmbp_channels":  {"TOPIC_KMBP_CHANNELS", "40"},
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
