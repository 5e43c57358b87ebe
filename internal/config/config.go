package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string

	// JWT
	JWTSecret          string
	JWTExpirationHours int

	// Storage
	StoragePath string

	// Background Workers
	WorkerCount int

	// CORS
	AllowedOrigins []string

	// Email (Resend)
	EnableEmailNotifications bool
	ResendAPIKey             string
	FromEmail                string
	NotifyEmails             []string

	// Sentry
	SentryDSN string

	// Integrations
	CRMBaseURL         string
	PMBaseURL          string
	AccountingBaseURL  string
	IntegrationAPIKey  string
	IntegrationTimeout time.Duration

	// Scheduled jobs (robfig/cron expressions with seconds)
	RecurringBillingCron string
	OverdueCron          string
	AlertsCron           string
	ClientRiskCron       string
	ReportCacheCron      string

	// Workflow
	AlertExpirationDays     int
	EscalationThresholdDays int
	ReportCacheTTL          time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                     getEnv("PORT", "8080"),
		Environment:              getEnv("ENVIRONMENT", "development"),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		JWTSecret:                getEnv("JWT_SECRET", ""),
		JWTExpirationHours:       getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		StoragePath:              getEnv("STORAGE_PATH", "./storage"),
		WorkerCount:              getEnvAsInt("WORKER_COUNT", 5),
		AllowedOrigins:           getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		ResendAPIKey:             getEnv("RESEND_API_KEY", ""),
		EnableEmailNotifications: getEnvAsBool("ENABLE_EMAIL_NOTIFICATIONS", true),
		FromEmail:                getEnv("FROM_EMAIL", "noreply@fintera.app"),
		NotifyEmails:             getEnvAsSlice("NOTIFY_EMAILS", nil),
		SentryDSN:                getEnv("SENTRY_DSN", ""),
		CRMBaseURL:               getEnv("CRM_BASE_URL", ""),
		PMBaseURL:                getEnv("PM_BASE_URL", ""),
		AccountingBaseURL:        getEnv("ACCOUNTING_BASE_URL", ""),
		IntegrationAPIKey:        getEnv("INTEGRATION_API_KEY", ""),
		IntegrationTimeout:       time.Duration(getEnvAsInt("INTEGRATION_TIMEOUT_SECONDS", 15)) * time.Second,
		RecurringBillingCron:     getEnv("JOB_RECURRING_BILLING_CRON", "0 0 2 * * *"),
		OverdueCron:              getEnv("JOB_OVERDUE_CRON", "0 0 * * * *"),
		AlertsCron:               getEnv("JOB_ALERTS_CRON", "0 30 6 * * *"),
		ClientRiskCron:           getEnv("JOB_CLIENT_RISK_CRON", "0 0 */6 * * *"),
		ReportCacheCron:          getEnv("JOB_REPORT_CACHE_CRON", "0 */15 * * * *"),
		AlertExpirationDays:      getEnvAsInt("ALERT_EXPIRATION_DAYS", 30),
		EscalationThresholdDays:  getEnvAsInt("ESCALATION_THRESHOLD_DAYS", 7),
		ReportCacheTTL:           time.Duration(getEnvAsInt("REPORT_CACHE_TTL_MINUTES", 15)) * time.Minute,
	}

	// Validate required configuration
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.IsProduction() {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	// Set default JWT secret for development
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice reads an environment variable as comma-separated slice
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvAsBool reads an environment variable as boolean
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
