package config

import (
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // For splitting the tracked coin list
	"time"    // For durations

	"github.com/joho/godotenv" // For loading .env files
	"github.com/shopspring/decimal"
)

// Config holds the application configuration
type Config struct {
	AppPort        string          // Application port
	DBUser         string          // Database user
	DBPassword     string          // Database password
	DBHost         string          // Database host
	DBPort         string          // Database port
	DBName         string          // Database name
	JWTSecret      string          // JWT secret key
	TokenTTL       time.Duration   // Token validity window
	RedisAddr      string          // Redis server address
	RedisPass      string          // Redis password
	RedisDB        int             // Redis database number
	QuoteURL       string          // Quote source base URL
	QuoteTimeout   time.Duration   // Budget for one quote call
	VSCurrency     string          // Settlement currency prices are quoted in
	TrackedCoins   []string        // Coin set served by GET /price
	InitialBalance decimal.Decimal // Cash balance seeded at registration
	IsProd         bool            // Is production environment
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	return &Config{
		AppPort:        getEnv("APP_PORT", "8080"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBHost:         os.Getenv("DB_HOST"),
		DBPort:         os.Getenv("DB_PORT"),
		DBName:         os.Getenv("DB_NAME"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		TokenTTL:       durationEnv("TOKEN_TTL", 24*time.Hour),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPass:      os.Getenv("REDIS_PASS"),
		RedisDB:        redisDB,
		QuoteURL:       getEnv("QUOTE_URL", "https://api.coingecko.com/api/v3"),
		QuoteTimeout:   durationEnv("QUOTE_TIMEOUT", 10*time.Second),
		VSCurrency:     getEnv("VS_CURRENCY", "usd"),
		TrackedCoins:   splitEnv("TRACKED_COINS", "bitcoin,ethereum,dogecoin"),
		InitialBalance: decimalEnv("INITIAL_BALANCE"),
		IsProd:         os.Getenv("IS_PROD") == "true",
	}
}

// getEnv returns the variable's value or a fallback when unset
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// durationEnv parses a duration variable (e.g. "10s"), falling back on error
func durationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// splitEnv parses a comma-separated list variable
func splitEnv(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	coins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			coins = append(coins, p)
		}
	}
	return coins
}

// decimalEnv parses a decimal variable, zero when unset or malformed
func decimalEnv(key string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && !d.IsNegative() {
			return d
		}
	}
	return decimal.Zero
}
