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

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AgentJWTSecret string

	CORSAllowedOrigins []string

	// Odoo ERP connection
	OdooURL         string
	OdooDatabase    string
	OdooUser        string
	OdooAPIKey      string
	OdooTimeout     time.Duration
	OdooWarehouseID int

	// Customer verification
	OTPTTL                time.Duration
	OTPMaxAttempts        int
	OTPLockout            time.Duration
	OTPMaxRequestsPerHour int
	CustomerSessionTTL    time.Duration

	// Flow engine
	FlowTTL time.Duration

	// Live support
	QueueEntryTTL time.Duration

	// PDF catalog links handed out by the chat surface
	CatalogURLTR string
	CatalogURLEN string

	// Email (SendGrid)
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		AgentJWTSecret: getEnv("AGENT_JWT_SECRET", ""),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),

		OdooURL:         getEnv("ODOO_URL", ""),
		OdooDatabase:    getEnv("ODOO_DATABASE", ""),
		OdooUser:        getEnv("ODOO_USER", ""),
		OdooAPIKey:      getEnv("ODOO_API_KEY", ""),
		OdooTimeout:     getEnvAsDuration("ODOO_TIMEOUT", 20*time.Second),
		OdooWarehouseID: getEnvAsInt("ODOO_WAREHOUSE_ID", 0),

		OTPTTL:                getEnvAsDuration("OTP_TTL", 5*time.Minute),
		OTPMaxAttempts:        getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
		OTPLockout:            getEnvAsDuration("OTP_LOCKOUT", 15*time.Minute),
		OTPMaxRequestsPerHour: getEnvAsInt("OTP_MAX_REQUESTS_PER_HOUR", 3),
		CustomerSessionTTL:    getEnvAsDuration("CUSTOMER_SESSION_TTL", 2*time.Hour),

		FlowTTL: getEnvAsDuration("FLOW_TTL", 30*time.Minute),

		QueueEntryTTL: getEnvAsDuration("QUEUE_ENTRY_TTL", 24*time.Hour),

		CatalogURLTR: getEnv("CATALOG_PDF_URL_TR", ""),
		CatalogURLEN: getEnv("CATALOG_PDF_URL_EN", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "noreply@idfine.com.tr"),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "ID Fine"),
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

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
