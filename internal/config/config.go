package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var AppEnv Config

type Config struct {
	MongoURI       string
	DBName         string
	JWTSecret      string
	AccessTokenTTL time.Duration

	RedisURL string

	ShiprocketBaseURL        string
	ShiprocketAPIKey         string
	ShiprocketAPISecret      string
	ShiprocketEmail          string
	ShiprocketPassword       string
	ShiprocketPickupLocation string
	ShiprocketWebhookToken   string
}

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println(".env not loaded:", err)
	}
	AppEnv = Config{
		MongoURI:       getEnvOrDefault("MONGO_URI", ""),
		DBName:         getEnvOrDefault("DB_NAME", "schoolstore"),
		JWTSecret:      getEnvOrDefault("JWT_SECRET", ""),
		AccessTokenTTL: getDurationEnv("ACCESS_TOKEN_TTL", 20, time.Minute),

		RedisURL: getEnvOrDefault("REDIS_URL", ""),

		ShiprocketBaseURL:        getEnvOrDefault("SHIPROCKET_BASE_URL", "https://apiv2.shiprocket.in/v1/external"),
		ShiprocketAPIKey:         getEnvOrDefault("SHIPROCKET_API_KEY", ""),
		ShiprocketAPISecret:      getEnvOrDefault("SHIPROCKET_API_SECRET", ""),
		ShiprocketEmail:          getEnvOrDefault("SHIPROCKET_EMAIL", ""),
		ShiprocketPassword:       getEnvOrDefault("SHIPROCKET_PASSWORD", ""),
		ShiprocketPickupLocation: getEnvOrDefault("SHIPROCKET_PICKUP_LOCATION", "Primary"),
		ShiprocketWebhookToken:   getEnvOrDefault("SHIPROCKET_WEBHOOK_TOKEN", ""),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) time.Duration {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * unit
		}
	}
	return time.Duration(defaultValue) * unit
}
