package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultOpenAIBaseURL      = "https://api.openai.com/v1"
	defaultOpenAIModel        = "gpt-4o-mini"
	defaultGeminiModel        = "gemini-1.5-flash"
	defaultSpoonacularBaseURL = "https://api.spoonacular.com"
	defaultDatabasePath       = "data/meal-planner.db"
	defaultDeviation          = 10.0
	defaultCacheTTL           = 12 * time.Hour
	defaultProviderTimeout    = 8 * time.Second
	defaultBatchCooldown      = time.Second
	defaultHistoryDays        = 14
	defaultHistoryPlans       = 5
	defaultPort               = "8080"
)

// Config holds the configuration for the application.
type Config struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	GeminiAPIKey  string
	GeminiModel   string

	SpoonacularAPIKey  string
	SpoonacularBaseURL string

	DatabasePath     string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	JWTSecret        string
	TierProfilesPath string

	// NutritionDeviationThreshold is the max macro deviation (percent) accepted without reconciliation.
	NutritionDeviationThreshold float64
	CacheTTL                    time.Duration
	ProviderTimeout             time.Duration
	BatchCooldown               time.Duration
	PreferExternalSearch        bool
	HistoryLookbackDays         int
	HistoryPlanLimit            int

	Port     string
	LogLevel string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	openAIKey := os.Getenv("OPENAI_API_KEY")
	geminiKey := os.Getenv("GEMINI_API_KEY")
	if openAIKey == "" && geminiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY or GEMINI_API_KEY environment variable not set")
	}

	cfg := &Config{
		OpenAIAPIKey:       openAIKey,
		OpenAIBaseURL:      getEnvOrDefault("OPENAI_BASE_URL", defaultOpenAIBaseURL),
		OpenAIModel:        getEnvOrDefault("OPENAI_MODEL", defaultOpenAIModel),
		GeminiAPIKey:       geminiKey,
		GeminiModel:        getEnvOrDefault("GEMINI_MODEL", defaultGeminiModel),
		SpoonacularAPIKey:  os.Getenv("SPOONACULAR_API_KEY"),
		SpoonacularBaseURL: getEnvOrDefault("SPOONACULAR_BASE_URL", defaultSpoonacularBaseURL),
		DatabasePath:       getEnvOrDefault("DATABASE_PATH", defaultDatabasePath),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		TierProfilesPath:   os.Getenv("TIER_PROFILES_PATH"),
		Port:               getEnvOrDefault("PORT", defaultPort),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
	}

	var err error
	if cfg.RedisDB, err = intFromEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.NutritionDeviationThreshold, err = floatFromEnv("NUTRITION_DEVIATION_THRESHOLD", defaultDeviation); err != nil {
		return nil, err
	}
	if cfg.NutritionDeviationThreshold <= 0 {
		return nil, fmt.Errorf("NUTRITION_DEVIATION_THRESHOLD must be positive, got %v", cfg.NutritionDeviationThreshold)
	}
	if cfg.CacheTTL, err = durationFromEnv("CACHE_TTL", defaultCacheTTL); err != nil {
		return nil, err
	}
	if cfg.ProviderTimeout, err = durationFromEnv("PROVIDER_TIMEOUT", defaultProviderTimeout); err != nil {
		return nil, err
	}
	if cfg.BatchCooldown, err = durationFromEnv("BATCH_COOLDOWN", defaultBatchCooldown); err != nil {
		return nil, err
	}
	if cfg.PreferExternalSearch, err = boolFromEnv("PREFER_EXTERNAL_SEARCH", false); err != nil {
		return nil, err
	}
	if cfg.HistoryLookbackDays, err = intFromEnv("HISTORY_LOOKBACK_DAYS", defaultHistoryDays); err != nil {
		return nil, err
	}
	if cfg.HistoryPlanLimit, err = intFromEnv("HISTORY_PLAN_LIMIT", defaultHistoryPlans); err != nil {
		return nil, err
	}

	// Telegram Config (Optional for CLI, required for Bot)
	for _, raw := range strings.Split(os.Getenv("TELEGRAM_ALLOWED_USER_IDS"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, errParse := strconv.ParseInt(raw, 10, 64)
		if errParse != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS entry %q: %w", raw, errParse)
		}
		cfg.TelegramAllowedUserIDs = append(cfg.TelegramAllowedUserIDs, id)
	}
	if adminID, errAdmin := intFromEnv("ADMIN_TELEGRAM_ID", 0); errAdmin != nil {
		return nil, errAdmin
	} else {
		cfg.AdminTelegramID = int64(adminID)
	}

	return cfg, nil
}

// ConfigureLogging applies LogLevel to the global logger.
func (c *Config) ConfigureLogging() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithError(err).Warnf("unknown LOG_LEVEL %q, using info", c.LogLevel)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func intFromEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func floatFromEnv(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func boolFromEnv(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
