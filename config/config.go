package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// PayGateConfig holds the PayGate Global credentials and endpoints. It is
// constructed once at startup and passed explicitly to the gateway client;
// nothing else reads these environment variables.
type PayGateConfig struct {
	AuthToken   string
	APIURL      string
	PageURL     string
	StatusURL   string
	StatusV2URL string
	BalanceURL  string
	Timeout     time.Duration
}

// Config holds all configuration for the application
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	JWTSecret  string
	Port       string
	Env        string
	PayGate    PayGateConfig
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// A missing .env file is fine in deployed environments where the
	// variables are set directly.
	_ = godotenv.Load()

	config := &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getenv("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		Port:       getenv("PORT", "8080"),
		Env:        getenv("ENV", "development"),
		PayGate: PayGateConfig{
			AuthToken:   os.Getenv("PAYGATE_API_KEY"),
			APIURL:      getenv("PAYGATE_API_URL", "https://paygateglobal.com/api/v1/pay"),
			PageURL:     getenv("PAYGATE_PAGE_URL", "https://paygateglobal.com/v1/page"),
			StatusURL:   getenv("PAYGATE_STATUS_URL", "https://paygateglobal.com/api/v1/status"),
			StatusV2URL: getenv("PAYGATE_STATUS_V2_URL", "https://paygateglobal.com/api/v2/status"),
			BalanceURL:  getenv("PAYGATE_BALANCE_URL", "https://paygateglobal.com/api/v1/check-balance"),
			Timeout:     30 * time.Second,
		},
	}

	if config.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return config, nil
}
