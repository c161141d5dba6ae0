// Package env loads the relay's configuration: an optional .env file
// via godotenv, then typed environment variables with defaults.
package env

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every environment variable the relay reads, per
// SPEC_FULL.md §6.
type Config struct {
	// AI peer (ElevenLabs-shaped: spec §9's Open Question on signed-URL
	// shape is resolved in favor of this provider's documented endpoint).
	ElevenLabsAgentID string
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string

	// Telephony peer (Twilio-shaped).
	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioPhoneNumber   string
	TwilioBaseURL       string
	TwilioWebhookSecret string // optional; empty disables signature verification

	Port                 string
	MediaStreamTimeoutMs int
	MaxAIRetries         int
	NodeEnv              string

	// Ambient additions, not in spec.md's required list.
	RedisURL           string
	APIRateLimitRPM    int
	OTELEndpoint       string
	OTELEnabled        bool
	CORSAllowedOrigins string
	LogLevel           string
}

// Load reads an optional .env file (ignored if missing) and then the
// process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		ElevenLabsAgentID: mustGetEnv("ELEVENLABS_AGENT_ID"),
		ElevenLabsAPIKey:  mustGetEnv("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL: getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),

		TwilioAccountSID:    mustGetEnv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:     mustGetEnv("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber:   mustGetEnv("TWILIO_PHONE_NUMBER"),
		TwilioBaseURL:       getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		TwilioWebhookSecret: getEnv("TWILIO_WEBHOOK_SECRET", ""),

		Port:                 getEnv("PORT", "8000"),
		MediaStreamTimeoutMs: getEnvInt("MEDIA_STREAM_TIMEOUT_MS", 300000),
		MaxAIRetries:         getEnvInt("MAX_ELEVENLABS_RETRIES", 3),
		NodeEnv:              getEnv("NODE_ENV", "development"),

		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		APIRateLimitRPM:    getEnvInt("API_RATE_LIMIT_RPM", 180),
		OTELEndpoint:       getEnv("OTEL_ENDPOINT", ""),
		OTELEnabled:        getEnvBool("OTEL_ENABLED", false),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	strValue := os.Getenv(key)
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(strValue)
	if err != nil {
		return defaultValue
	}
	return value
}
