package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	StoreBaseURL string
	StoreTimeout time.Duration
	TrackTimeout time.Duration

	JWTSecret string

	// RedisAddr selects the Redis notification inbox; empty keeps
	// notifications in memory.
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	NotificationTTL time.Duration

	ConsoleIdle     time.Duration
	CleanupInterval time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	StatsLocale string

	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	AllowedOrigins []string
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment
// variables take precedence over it.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", "8080"),
		StoreBaseURL:    getEnv("STORE_BASE_URL", "http://localhost:3001/api"),
		StoreTimeout:    getEnvSeconds("STORE_TIMEOUT_SECONDS", 30*time.Second),
		TrackTimeout:    getEnvSeconds("TRACK_TIMEOUT_SECONDS", 5*time.Second),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		NotificationTTL: getEnvMinutes("NOTIFICATION_TTL_MINUTES", 10*time.Minute),
		ConsoleIdle:     getEnvMinutes("CONSOLE_IDLE_MINUTES", 30*time.Minute),
		CleanupInterval: getEnvMinutes("CLEANUP_INTERVAL_MINUTES", 5*time.Minute),
		RateLimitRPS:    getEnvFloat64("RATE_LIMIT_RPS", 2),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 5),
		StatsLocale:     getEnv("STATS_LOCALE", "en"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPath:         getEnv("LOG_PATH", ""),
		LogMaxSizeMB:    getEnvInt("LOG_MAX_SIZE_MB", 100),
		LogMaxBackups:   getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays:   getEnvInt("LOG_MAX_AGE_DAYS", 7),
		AllowedOrigins:  getEnvList("ALLOWED_ORIGINS", []string{"*"}),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat64(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	return getEnvDuration(key, time.Second, fallback)
}

func getEnvMinutes(key string, fallback time.Duration) time.Duration {
	return getEnvDuration(key, time.Minute, fallback)
}

func getEnvDuration(key string, unit time.Duration, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseFloat(val, 64); err == nil && n > 0 {
			return time.Duration(n * float64(unit))
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
