package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/edutech-platform/quiz-service/internal/models"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	DatabaseURL string
	RedisURL    string

	Casdoor CasdoorConfig
	Marking MarkingConfig
	Kafka   KafkaConfig
	Engine  EngineConfig
}

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Certificate  string
	Organization string
	Application  string
}

// MarkingConfig configures the LLM marking delegate for open-ended
// questions. An empty APIKey disables marking; affected answers are
// scored zero with diagnostic feedback.
type MarkingConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// EngineConfig holds the scoring and quota policy knobs.
type EngineConfig struct {
	// PassThresholdPercent is used both to count an attempt as passed
	// in mastery aggregation and as the correctness cutoff for marked
	// open-ended answers.
	PassThresholdPercent float64

	// TierAllowances maps a subscription tier to the number of distinct
	// quizzes it may complete per subject/topic. Premium is unlimited
	// and never consults this map.
	TierAllowances map[models.SubscriptionTier]int

	Completion CompletionPolicy
}

// CompletionPolicy defines how topic completion blends study activity
// with quiz passes. Weights sum to 100; each signal is capped at its
// target before weighting.
type CompletionPolicy struct {
	NotesWeight      float64
	VideosWeight     float64
	FlashcardsWeight float64
	QuizzesWeight    float64

	NotesTarget      int
	VideosTarget     int
	FlashcardsTarget int
	QuizzesTarget    int
}

func LoadConfig() (*Config, error) {
	// .env is optional; real deployments inject the environment.
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    parseLogLevel(getEnv("LOG_LEVEL", "info")),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		Casdoor: CasdoorConfig{
			Endpoint:     getEnv("CASDOOR_ENDPOINT", ""),
			ClientID:     getEnv("CASDOOR_CLIENT_ID", ""),
			ClientSecret: getEnv("CASDOOR_CLIENT_SECRET", ""),
			Certificate:  getEnv("CASDOOR_CERTIFICATE", ""),
			Organization: getEnv("CASDOOR_ORGANIZATION", ""),
			Application:  getEnv("CASDOOR_APPLICATION", ""),
		},
		Marking: MarkingConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("MARKING_MODEL", "gpt-4o-mini"),
			Timeout: getDurationEnv("MARKING_TIMEOUT", 20*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitEnv("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_EVENTS_TOPIC", "quiz-events"),
		},
		Engine: EngineConfig{
			PassThresholdPercent: getFloatEnv("PASS_THRESHOLD_PERCENT", 70),
			TierAllowances: map[models.SubscriptionTier]int{
				models.TierFree:  getIntEnv("QUOTA_FREE_TIER", 3),
				models.TierBasic: getIntEnv("QUOTA_BASIC_TIER", 10),
			},
			Completion: CompletionPolicy{
				NotesWeight:      25,
				VideosWeight:     25,
				FlashcardsWeight: 20,
				QuizzesWeight:    30,
				NotesTarget:      getIntEnv("COMPLETION_NOTES_TARGET", 5),
				VideosTarget:     getIntEnv("COMPLETION_VIDEOS_TARGET", 5),
				FlashcardsTarget: getIntEnv("COMPLETION_FLASHCARDS_TARGET", 20),
				QuizzesTarget:    getIntEnv("COMPLETION_QUIZZES_TARGET", 3),
			},
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Engine.PassThresholdPercent <= 0 || cfg.Engine.PassThresholdPercent > 100 {
		return nil, fmt.Errorf("PASS_THRESHOLD_PERCENT must be in (0, 100], got %v", cfg.Engine.PassThresholdPercent)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool { return c.Environment == "production" }

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitEnv(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
