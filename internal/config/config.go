package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config contains all runtime settings for the voice bot backend.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	DailyAPIKey string
	DailyAPIURL string
	RoomTTL     time.Duration

	GoogleAPIKey    string
	DefaultModelID  string
	DefaultLanguage string
	BotName         string
	BotReadyTimeout time.Duration

	CartesiaAPIKey string

	DeepgramAPIKey string
	DetectTimeout  time.Duration

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults. Missing vendor
// credentials are not an error here; the endpoints that need them degrade at
// request time instead of failing startup.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":3000"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "chatvrd"),
		DailyAPIKey:      envTrimmed("DAILY_API_KEY"),
		DailyAPIURL:      envOrDefault("DAILY_API_URL", "https://api.daily.co/v1"),
		GoogleAPIKey:     envTrimmed("GOOGLE_API_KEY"),
		DefaultModelID:   envOrDefault("APP_DEFAULT_MODEL_ID", "gemini-2.0-flash-live-001"),
		DefaultLanguage:  envOrDefault("APP_DEFAULT_LANGUAGE", "en-US"),
		BotName:          envOrDefault("APP_BOT_NAME", "Chat-VRD Bot"),
		CartesiaAPIKey:   envTrimmed("CARTESIA_API_KEY"),
		DeepgramAPIKey:   envTrimmed("DEEPGRAM_API_KEY"),
		DatabaseURL:      envTrimmed("DATABASE_URL"),
		ShutdownTimeout:  15 * time.Second,
		// Daily rooms are provisioned with a fixed one hour expiry.
		RoomTTL: time.Hour,
		// Bounded wait for the bot to join before /connect answers anyway.
		BotReadyTimeout: 10 * time.Second,
		// Language detection is a fast path: Deepgram answers quickly or we give up.
		DetectTimeout: 300 * time.Millisecond,
	}

	// Hosting platforms (Railway and friends) pass the listen port bare.
	if port := envTrimmed("PORT"); port != "" {
		cfg.BindAddr = ":" + port
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RoomTTL, err = durationFromEnv("APP_ROOM_TTL", cfg.RoomTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.BotReadyTimeout, err = durationFromEnv("APP_BOT_READY_TIMEOUT", cfg.BotReadyTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.DetectTimeout, err = durationFromEnv("APP_DETECT_TIMEOUT", cfg.DetectTimeout)
	if err != nil {
		return Config{}, err
	}

	if cfg.RoomTTL < time.Minute {
		return Config{}, fmt.Errorf("APP_ROOM_TTL must be at least 1m")
	}
	if cfg.BotReadyTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_BOT_READY_TIMEOUT must be positive")
	}
	if cfg.DetectTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_DETECT_TIMEOUT must be positive")
	}
	if strings.TrimSpace(cfg.DailyAPIURL) == "" {
		return Config{}, fmt.Errorf("DAILY_API_URL must not be empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}
