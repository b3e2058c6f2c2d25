package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded from the environment
// (optionally seeded from a .env file in development).
type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	DatabaseURL string
	RedisURL    string

	JWTSecret string
	JWTTTL    time.Duration

	KafkaBrokers []string

	// Account lockout policy.
	MaxFailedLogins int
	LockoutDuration time.Duration

	// Quiz policy.
	QuizPassScore   int
	QuizRetakeDelay time.Duration

	// Login rate limiting (per username+IP).
	LoginRateLimit  int
	LoginRateWindow time.Duration

	// Visitor trial allowance on message posting (per IP).
	VisitorTrialLimit  int
	VisitorTrialWindow time.Duration

	// Moderation term lists. Comma-separated in the environment; defaults
	// cover the built-in screens.
	HarmfulTerms []string
	CrisisTerms  []string
}

func LoadConfig() (*Config, error) {
	// .env is optional; real deployments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    getEnvDuration("JWT_TTL", 7*24*time.Hour),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),

		MaxFailedLogins: getEnvInt("MAX_FAILED_LOGINS", 5),
		LockoutDuration: getEnvDuration("LOCKOUT_DURATION", 15*time.Minute),

		QuizPassScore:   getEnvInt("QUIZ_PASS_SCORE", 80),
		QuizRetakeDelay: getEnvDuration("QUIZ_RETAKE_DELAY", 24*time.Hour),

		LoginRateLimit:  getEnvInt("LOGIN_RATE_LIMIT", 5),
		LoginRateWindow: getEnvDuration("LOGIN_RATE_WINDOW", 15*time.Minute),

		VisitorTrialLimit:  getEnvInt("VISITOR_TRIAL_LIMIT", 1),
		VisitorTrialWindow: getEnvDuration("VISITOR_TRIAL_WINDOW", 24*time.Hour),

		HarmfulTerms: splitList(getEnv("HARMFUL_TERMS", defaultHarmfulTerms)),
		CrisisTerms:  splitList(getEnv("CRISIS_TERMS", defaultCrisisTerms)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

const (
	defaultHarmfulTerms = "hate,kill you,violence,abuse,threat"
	defaultCrisisTerms  = "suicide,kill myself,end my life,self harm,want to die"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
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
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
