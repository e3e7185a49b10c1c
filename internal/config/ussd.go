package config

import (
	"os"
	"strconv"
	"time"
)

// USSDConfig holds the settings for the USSD menu adapter.
type USSDConfig struct {
	ServiceCode      string
	SessionTTL       time.Duration
	MaxRequests      int
	RateLimitWindow  time.Duration
	OffersPerPage    int
	CurrencyLabel    string
	MaxMessageLength int
}

func LoadUSSDConfig() *USSDConfig {
	return &USSDConfig{
		ServiceCode:      getEnv("USSD_SERVICE_CODE", "*565*7#"),
		SessionTTL:       getEnvAsDuration("USSD_SESSION_TTL", 3*time.Minute),
		MaxRequests:      getEnvAsInt("USSD_MAX_REQUESTS", 30),
		RateLimitWindow:  getEnvAsDuration("USSD_RATE_LIMIT_WINDOW", time.Minute),
		OffersPerPage:    getEnvAsInt("USSD_OFFERS_PER_PAGE", 5),
		CurrencyLabel:    getEnv("USSD_CURRENCY_LABEL", "NGN"),
		MaxMessageLength: getEnvAsInt("USSD_MAX_MESSAGE_LENGTH", 182),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
