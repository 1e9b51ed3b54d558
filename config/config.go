package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Config struct {
	Port               string
	Env                string
	DatabaseURL        string
	JWTSecret          string
	AllowedOrigins     []string
	MaxBodySize        int64
	RedisURL           string
	NotifyTimeout      time.Duration
	DBTransactions     bool
	AutoMigrate        bool
	RateLimitPerMinute int
	SettlementEpsilon  decimal.Decimal
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")
	origins := os.Getenv("ALLOWED_ORIGINS")
	var allowedOrigins []string
	if origins != "" {
		allowedOrigins = splitOrigins(origins)
	} else {
		if env == "production" {
			zap.L().Warn("ALLOWED_ORIGINS not set in production, defaulting to '*'")
		}
		allowedOrigins = []string{"*"}
	}

	maxBodySize, err := getInt64("MAX_BODY_SIZE", 1*1024*1024)
	if err != nil {
		return nil, err
	}
	rateLimit, err := getInt64("RATE_LIMIT_PER_MINUTE", 500)
	if err != nil {
		return nil, err
	}
	if rateLimit <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", rateLimit)
	}

	notifyTimeout := 2 * time.Second
	if v := os.Getenv("NOTIFY_TIMEOUT"); v != "" {
		notifyTimeout, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parsing NOTIFY_TIMEOUT: %w", err)
		}
	}

	dbTransactions, err := getSwitch("DB_TRANSACTIONS", true)
	if err != nil {
		return nil, err
	}
	autoMigrate, err := getSwitch("AUTO_MIGRATE", true)
	if err != nil {
		return nil, err
	}

	epsilon := decimal.New(1, -2)
	if v := os.Getenv("SETTLEMENT_EPSILON"); v != "" {
		epsilon, err = decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("parsing SETTLEMENT_EPSILON: %w", err)
		}
		if !epsilon.IsPositive() {
			return nil, fmt.Errorf("SETTLEMENT_EPSILON must be positive, got %s", v)
		}
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                env,
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AllowedOrigins:     allowedOrigins,
		MaxBodySize:        maxBodySize,
		RedisURL:           getEnv("REDIS_URL", ""),
		NotifyTimeout:      notifyTimeout,
		DBTransactions:     dbTransactions,
		AutoMigrate:        autoMigrate,
		RateLimitPerMinute: int(rateLimit),
		SettlementEpsilon:  epsilon,
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt64(key string, defaultValue int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return n, nil
}

// getSwitch accepts on/off as well as anything strconv.ParseBool does.
func getSwitch(key string, defaultValue bool) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return defaultValue, nil
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", key, err)
	}
	return b, nil
}

func splitOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
