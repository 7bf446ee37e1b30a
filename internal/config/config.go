package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port string

	// Database configuration
	DBType            string // mysql, postgres, sqlite, sqlserver, etc.
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int

	// Spectrum web service configuration
	SpectrumBaseURL     string
	SpectrumAuthID      string
	SpectrumCompany     string
	SpectrumDivisions   []string
	SpectrumDenylist    []string
	SpectrumStatusCodes []string
	SpectrumTimeoutSecs int
	SpectrumPageCap     int
	ContactWorkers      int

	// Sync scheduling
	SyncSchedule string // cron expression; empty disables the scheduler

	// Raw payload capture
	RawPayloadEnabled       bool
	RawPayloadRetentionDays int

	// Projection
	FallbackBranch string

	// Logging
	LogLevel string
	LogFile  string

	// Authorizer configuration
	AuthzURL      string
	AuthzClientID string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                    getEnv("PORT", "3000"),
		DBType:                  getEnv("DB_TYPE", "mysql"),
		DBHost:                  getEnv("DB_HOST", "localhost"),
		DBPort:                  getEnv("DB_PORT", "3306"),
		DBDatabase:              getEnv("DB_DATABASE", ""),
		DBUser:                  getEnv("DB_USER", ""),
		DBPassword:              getEnv("DB_PASSWORD", ""),
		DBConnectionLimit:       getEnvAsInt("DB_CONNECTION_LIMIT", 5),
		SpectrumBaseURL:         getEnv("SPECTRUM_BASE_URL", ""),
		SpectrumAuthID:          getEnv("SPECTRUM_AUTH_ID", ""),
		SpectrumCompany:         getEnv("SPECTRUM_COMPANY_CODE", ""),
		SpectrumDivisions:       getEnvAsList("SPECTRUM_DIVISIONS", nil),
		SpectrumDenylist:        getEnvAsList("SPECTRUM_DIVISION_DENYLIST", nil),
		SpectrumStatusCodes:     getEnvAsList("SPECTRUM_STATUS_CODES", nil),
		SpectrumTimeoutSecs:     getEnvAsInt("SPECTRUM_TIMEOUT_SECONDS", 120),
		SpectrumPageCap:         getEnvAsInt("SPECTRUM_PAGE_CAP", 500),
		ContactWorkers:          getEnvAsInt("SPECTRUM_CONTACT_WORKERS", 6),
		SyncSchedule:            getEnv("SYNC_SCHEDULE", "0 * * * *"),
		RawPayloadEnabled:       getEnvAsBool("RAW_PAYLOAD_ENABLED", false),
		RawPayloadRetentionDays: getEnvAsInt("RAW_PAYLOAD_RETENTION_DAYS", 14),
		FallbackBranch:          getEnv("FALLBACK_BRANCH", "Unassigned"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFile:                 getEnv("LOG_FILE", ""),
		AuthzURL:                getEnv("AUTHZ_URL", ""),
		AuthzClientID:           getEnv("AUTHZ_CLIENT_ID", ""),
	}

	// Validate required fields
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	if cfg.DBUser == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	if cfg.SpectrumBaseURL == "" {
		return nil, fmt.Errorf("SPECTRUM_BASE_URL is required")
	}
	if cfg.SpectrumAuthID == "" {
		return nil, fmt.Errorf("SPECTRUM_AUTH_ID is required")
	}
	if cfg.SpectrumCompany == "" {
		return nil, fmt.Errorf("SPECTRUM_COMPANY_CODE is required")
	}
	if cfg.AuthzURL == "" {
		return nil, fmt.Errorf("AUTHZ_URL is required")
	}
	if cfg.AuthzClientID == "" {
		return nil, fmt.Errorf("AUTHZ_CLIENT_ID is required")
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList gets a comma-separated environment variable as a string slice
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			values = append(values, p)
		}
	}
	return values
}
