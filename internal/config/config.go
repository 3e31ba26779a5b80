package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Storage
	StoreDriver  string
	DatabasePath string
	DatabaseURL  string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Classification
	GeminiAPIKey      string
	GeminiModelID     string
	BedrockModelID    string
	ClassifierTimeout time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Escalation targets
	SlackWebhookURL        string
	SlackChannel           string
	N8NWebhookURL          string
	EscalationQueueURL     string
	EscalationEmailTo      string
	EmailProvider          string
	SESFromEmail           string
	NotifierTimeout        time.Duration
	EscalationDedupeWindow time.Duration

	// SendGrid Email Configuration
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// Branding used by reply templates
	BrandName     string
	SupportEmail  string
	FAQURL        string
	TicketURLBase string

	// Twitter / X
	TwitterAPIBase        string
	TwitterAccessToken    string
	TwitterRefreshToken   string
	TwitterClientID       string
	TwitterClientSecret   string
	TwitterConsumerSecret string
	SupportHandle         string
	PollInterval          time.Duration
	PollBatchSize         int
	PollProcessedCache    int

	// HTTP
	AdminJWTSecret    string
	CORSAllowedOrigin []string
	RateLimitRPS      float64
	RateLimitBurst    int
	RequestTimeout    time.Duration
	MetricsPort       string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreDriver:  strings.ToLower(strings.TrimSpace(getEnv("STORE_DRIVER", "sqlite"))),
		DatabasePath: getEnv("DATABASE_PATH", "./data/conversations.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:     getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		BedrockModelID:    getEnv("BEDROCK_MODEL_ID", ""),
		ClassifierTimeout: getEnvAsDuration("CLASSIFIER_TIMEOUT", 5*time.Second),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		SlackWebhookURL:        getEnv("SLACK_WEBHOOK_URL", ""),
		SlackChannel:           getEnv("SLACK_CHANNEL", "#twitter-escalations"),
		N8NWebhookURL:          getEnv("N8N_WEBHOOK_URL", ""),
		EscalationQueueURL:     getEnv("ESCALATION_QUEUE_URL", ""),
		EscalationEmailTo:      getEnv("ESCALATION_EMAIL_TO", ""),
		EmailProvider:          strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SESFromEmail:           getEnv("SES_FROM_EMAIL", ""),
		NotifierTimeout:        getEnvAsDuration("NOTIFIER_TIMEOUT", 10*time.Second),
		EscalationDedupeWindow: getEnvAsDuration("ESCALATION_DEDUPE_WINDOW", 0),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Support Bot"),

		BrandName:     getEnv("BRAND_NAME", "Mudrex"),
		SupportEmail:  getEnv("SUPPORT_EMAIL", "help@mudrex.com"),
		FAQURL:        getEnv("FAQ_URL", "https://mudrex.com/faq"),
		TicketURLBase: getEnv("TICKET_URL_BASE", "https://support.mudrex.com/ticket/"),

		TwitterAPIBase:        getEnv("TWITTER_API_BASE", "https://api.twitter.com"),
		TwitterAccessToken:    getEnv("TWITTER_ACCESS_TOKEN", ""),
		TwitterRefreshToken:   getEnv("TWITTER_REFRESH_TOKEN", ""),
		TwitterClientID:       getEnv("TWITTER_CLIENT_ID", ""),
		TwitterClientSecret:   getEnv("TWITTER_CLIENT_SECRET", ""),
		TwitterConsumerSecret: getEnv("TWITTER_CONSUMER_SECRET", ""),
		SupportHandle:         getEnv("SUPPORT_HANDLE", "@MudrexSupport"),
		PollInterval:          getEnvAsDuration("TWITTER_POLL_INTERVAL", 60*time.Second),
		PollBatchSize:         getEnvAsInt("TWITTER_POLL_BATCH_SIZE", 20),
		PollProcessedCache:    getEnvAsInt("TWITTER_PROCESSED_CACHE", 1000),

		AdminJWTSecret:    getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigin: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitRPS:      getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:    getEnvAsInt("RATE_LIMIT_BURST", 20),
		RequestTimeout:    getEnvAsDuration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
		MetricsPort:       getEnv("METRICS_PORT", "9090"),
	}
}

// LLMConfigured reports whether any classification model is configured.
func (c *Config) LLMConfigured() bool {
	return strings.TrimSpace(c.GeminiAPIKey) != "" || strings.TrimSpace(c.BedrockModelID) != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
