package config

import (
	"log"
	"os"
	"strings"
	"time"

	"broker-bridgev1/internal/model"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment
// variables. Account credentials are NOT configuration; they arrive with
// each login request.
type Config struct {
	// HTTP surfaces
	ListenAddr  string
	MetricsAddr string

	// Broker
	BrokerBaseURL string
	BrokerTimeout time.Duration

	// Order event gateway; empty RedisAddr disables it
	RedisAddr     string
	RedisPassword string

	// Scrip-master snapshot cache; empty path disables it
	SQLitePath string

	// Alert channels for order rejections; empty values disable each one
	AlertWebhookURL  string
	TelegramBotToken string
	TelegramChatID   string

	// Exchanges whose scrip masters load at startup (comma-separated)
	PreloadExchanges string
}

// Load reads configuration from the environment with sensible defaults.
// A .env file in the working directory is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ListenAddr:  getEnv("BRIDGE_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9091"),

		BrokerBaseURL: getEnv("MOFSL_BASE_URL", "https://openapi.motilaloswal.com"),
		BrokerTimeout: getDuration("MOFSL_HTTP_TIMEOUT", 10*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		SQLitePath: getEnv("SQLITE_PATH", "data/scrips.db"),

		AlertWebhookURL:  getEnv("ALERT_WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		PreloadExchanges: getEnv("PRELOAD_EXCHANGES", "NSE,NSEFO,BSE,BSEFO,MCX,NSECD"),
	}
}

// ParseExchanges parses PreloadExchanges into canonical exchange codes,
// dropping anything the broker has no scrip master for.
func (c *Config) ParseExchanges() []string {
	known := make(map[string]bool, len(model.AllExchanges))
	for _, exc := range model.AllExchanges {
		known[exc] = true
	}

	parts := strings.Split(c.PreloadExchanges, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = model.CanonicalExchange(p)
		if p == "" {
			continue
		}
		if !known[p] {
			log.Printf("[config] skipping unknown exchange: %q", p)
			continue
		}
		out = append(out, p)
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid duration for %s: %q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
