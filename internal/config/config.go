package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	PublicBaseURL  string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int
	DatabaseURL    string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	CrisisQueueURL     string
	CrisisJobsTable    string
	ArchiveBucket      string
	EmergencyWebhook   string
	EmergencyAuthToken string

	BedrockModelID          string
	BedrockSentimentModelID string
	GeminiAPIKey            string
	GeminiModel             string
	LLMTimeout              time.Duration

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int

	// On-call roster for professional alerts.
	OnCallEmails []string
	OnCallPhones []string

	SESFromEmail      string
	SESFromName       string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	// Calibration overrides. Zero values mean "use the shipped default".
	AnalyzerTimeout          time.Duration
	EscalationConfidence     float64
	NotifyConfidence         float64
	KeywordMatchIncrement    float64
	FusionCriticalThreshold  float64
	FusionHighThreshold      float64
	FusionMediumThreshold    float64
	FollowUpInterval         time.Duration
	FollowUpPollInterval     time.Duration
	OutboxPollInterval       time.Duration
	ContextMessageWindow     int
	CrisisFlagWindowDays     int
	MoodWindowDays           int
	SessionWindowDays        int
	ResourceRegion           string
	AlertFeedRecentLimit     int
	FollowUpOverdueEscalateH int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		PublicBaseURL:  getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		CrisisQueueURL:     getEnv("CRISIS_QUEUE_URL", ""),
		CrisisJobsTable:    getEnv("CRISIS_JOBS_TABLE", "crisis_analysis_jobs"),
		ArchiveBucket:      getEnv("ARCHIVE_BUCKET", ""),
		EmergencyWebhook:   getEnv("EMERGENCY_WEBHOOK_URL", ""),
		EmergencyAuthToken: getEnv("EMERGENCY_AUTH_TOKEN", ""),

		BedrockModelID:          getEnv("BEDROCK_MODEL_ID", ""),
		BedrockSentimentModelID: getEnv("BEDROCK_SENTIMENT_MODEL_ID", ""),
		GeminiAPIKey:            getEnv("GEMINI_API_KEY", ""),
		GeminiModel:             getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		LLMTimeout:              getEnvAsDuration("LLM_TIMEOUT", 8*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 0),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),

		OnCallEmails: getEnvAsList("ONCALL_EMAILS"),
		OnCallPhones: getEnvAsList("ONCALL_PHONES"),

		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "Havenmind Crisis Team"),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Havenmind Crisis Team"),

		AnalyzerTimeout:          getEnvAsDuration("ANALYZER_TIMEOUT", 5*time.Second),
		EscalationConfidence:     getEnvAsFloat("ESCALATION_CONFIDENCE", 0),
		NotifyConfidence:         getEnvAsFloat("NOTIFY_CONFIDENCE", 0),
		KeywordMatchIncrement:    getEnvAsFloat("KEYWORD_MATCH_INCREMENT", 0),
		FusionCriticalThreshold:  getEnvAsFloat("FUSION_CRITICAL_THRESHOLD", 0),
		FusionHighThreshold:      getEnvAsFloat("FUSION_HIGH_THRESHOLD", 0),
		FusionMediumThreshold:    getEnvAsFloat("FUSION_MEDIUM_THRESHOLD", 0),
		FollowUpInterval:         getEnvAsDuration("FOLLOWUP_INTERVAL", 24*time.Hour),
		FollowUpPollInterval:     getEnvAsDuration("FOLLOWUP_POLL_INTERVAL", time.Minute),
		OutboxPollInterval:       getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		ContextMessageWindow:     getEnvAsInt("CONTEXT_MESSAGE_WINDOW", 20),
		CrisisFlagWindowDays:     getEnvAsInt("CRISIS_FLAG_WINDOW_DAYS", 7),
		MoodWindowDays:           getEnvAsInt("MOOD_WINDOW_DAYS", 14),
		SessionWindowDays:        getEnvAsInt("SESSION_WINDOW_DAYS", 7),
		ResourceRegion:           getEnv("RESOURCE_REGION", "us"),
		AlertFeedRecentLimit:     getEnvAsInt("ALERT_FEED_RECENT_LIMIT", 50),
		FollowUpOverdueEscalateH: getEnvAsInt("FOLLOWUP_OVERDUE_ESCALATE_HOURS", 4),
	}
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

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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

// getEnvAsList splits a comma-separated environment variable, dropping empties.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
