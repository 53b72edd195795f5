package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverFirestore = "firestore"
	StoreDriverMemory    = "memory"
)

type Config struct {
	ServerPort      string
	FirebaseProject string
	Environment     string
	StoreDriver     string

	AdminEmail          string
	SendgridAPIKey      string
	SendgridSenderEmail string
	SendgridSenderName  string

	Chat ChatConfig
}

// ChatConfig holds the presentation timings of a chat session and the
// limits applied to outgoing messages.
type ChatConfig struct {
	HighlightDuration    time.Duration
	TypingPulseDuration  time.Duration
	ToastVisibleDuration time.Duration
	ToastExitDuration    time.Duration
	SideEffectTimeout    time.Duration
	SendRatePerMinute    int
}

func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		HighlightDuration:    600 * time.Millisecond,
		TypingPulseDuration:  900 * time.Millisecond,
		ToastVisibleDuration: 3800 * time.Millisecond,
		ToastExitDuration:    500 * time.Millisecond,
		SideEffectTimeout:    10 * time.Second,
		SendRatePerMinute:    30,
	}
}

func Load() (*Config, error) {
	godotenv.Load()

	defaults := DefaultChatConfig()

	config := &Config{
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		FirebaseProject:     getEnv("FIREBASE_PROJECT_ID", ""),
		Environment:         getEnv("ENVIRONMENT", "development"),
		StoreDriver:         getEnv("STORE_DRIVER", StoreDriverFirestore),
		AdminEmail:          getEnv("ADMIN_EMAIL", ""),
		SendgridAPIKey:      getEnv("SENDGRID_API_KEY", ""),
		SendgridSenderEmail: getEnv("SENDGRID_SENDER_EMAIL", ""),
		SendgridSenderName:  getEnv("SENDGRID_SENDER_NAME", "TidyHome"),
		Chat: ChatConfig{
			HighlightDuration:    getEnvAsMillis("CHAT_HIGHLIGHT_MS", defaults.HighlightDuration),
			TypingPulseDuration:  getEnvAsMillis("CHAT_TYPING_PULSE_MS", defaults.TypingPulseDuration),
			ToastVisibleDuration: getEnvAsMillis("CHAT_TOAST_VISIBLE_MS", defaults.ToastVisibleDuration),
			ToastExitDuration:    getEnvAsMillis("CHAT_TOAST_EXIT_MS", defaults.ToastExitDuration),
			SideEffectTimeout:    getEnvAsMillis("CHAT_SIDE_EFFECT_TIMEOUT_MS", defaults.SideEffectTimeout),
			SendRatePerMinute:    int(getEnvAsInt64("CHAT_SEND_RATE_PER_MINUTE", int64(defaults.SendRatePerMinute))),
		},
	}

	return config, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsMillis reads a non-negative millisecond count.
func getEnvAsMillis(key string, defaultValue time.Duration) time.Duration {
	ms := getEnvAsInt64(key, -1)
	if ms < 0 {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}
