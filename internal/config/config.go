package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

const minJWTSecretLength = 16

type Config struct {
	// HTTP Server
	Port           string
	CORSOrigins    []string
	TrustedProxies []string // extra CIDRs allowed to set X-Forwarded-For

	// Board source
	DataBackend        string
	MondayAPIURL       string
	MondayAPIToken     string
	MondayBoardID      string
	MondayAPIVersion   string
	FinishedGroupTitle string
	SeedFile           string
	RulesFile          string

	// Refresh
	RefreshSchedule  string
	RefreshRateLimit int // manual refreshes per minute per client

	// Snapshots and database
	SnapshotBackend   string
	SnapshotCacheSize int
	SQLiteDBPath      string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Auth
	JWTSecret         string
	AccessTokenExpiry time.Duration

	// Google Sheets export and worker
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	WorkerParallelism        int
	SnapshotPruneSchedule    string

	// Logging
	LogLevel  string
	LogFormat string
}

// LoadEnvFile loads a .env file for local development. Missing files are
// ignored.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

func Load() *Config {
	cfg := &Config{
		Port:           getEnv("PORT", "8081"),
		CORSOrigins:    getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),
		TrustedProxies: getEnvList("TRUSTED_PROXIES", nil),

		DataBackend:        getEnv("DATA_BACKEND", "memory"),
		MondayAPIURL:       getEnv("MONDAY_API_URL", "https://api.monday.com/v2"),
		MondayAPIToken:     getEnv("MONDAY_API_TOKEN", ""),
		MondayBoardID:      getEnv("MONDAY_BOARD_ID", ""),
		MondayAPIVersion:   getEnv("MONDAY_API_VERSION", "2024-01"),
		FinishedGroupTitle: getEnv("FINISHED_GROUP_TITLE", "Aquisições Finalizadas"),
		SeedFile:           getEnv("SEED_FILE", "./data/board.json"),
		RulesFile:          getEnv("RULES_FILE", ""),

		RefreshSchedule:  getEnv("REFRESH_SCHEDULE", "@every 15m"),
		RefreshRateLimit: getEnvInt("REFRESH_RATE_LIMIT", 6),

		SnapshotBackend:   getEnv("SNAPSHOT_BACKEND", "sqlite"),
		SnapshotCacheSize: getEnvInt("SNAPSHOT_CACHE_SIZE", 0),
		SQLiteDBPath:      getEnv("SQLITE_DB_PATH", "./data/precatorios.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "precatorios"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "board_refreshed"),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		AccessTokenExpiry: getEnvDuration("ACCESS_TOKEN_EXPIRY", 12*time.Hour),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Aquisicoes"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		WorkerParallelism:        getEnvInt("WORKER_PARALLELISM", 4),
		SnapshotPruneSchedule:    getEnv("SNAPSHOT_PRUNE_SCHEDULE", "@daily"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// SheetsEnabled reports whether the worker should export to Google Sheets.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR", cidr))
		}
	}

	validBackends := []string{"monday", "memory"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if c.DataBackend == "monday" {
		if c.MondayAPIToken == "" {
			errors = append(errors, "MONDAY_API_TOKEN is required when using monday backend")
		}
		if c.MondayBoardID == "" {
			errors = append(errors, "MONDAY_BOARD_ID is required when using monday backend")
		}
		if u, err := url.Parse(c.MondayAPIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid monday API URL '%s': must be http or https", c.MondayAPIURL))
		}
	}
	if strings.TrimSpace(c.FinishedGroupTitle) == "" {
		errors = append(errors, "finished group title cannot be empty")
	}
	if c.RulesFile != "" {
		if _, err := os.Stat(c.RulesFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("rules file does not exist: %s", c.RulesFile))
		}
	}

	if _, err := cron.ParseStandard(c.RefreshSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid refresh schedule '%s': %v", c.RefreshSchedule, err))
	}
	if c.RefreshRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid refresh rate limit %d: must be at least 1", c.RefreshRateLimit))
	}

	validSnapshotBackends := []string{"sqlite", "memory"}
	if !slices.Contains(validSnapshotBackends, c.SnapshotBackend) {
		errors = append(errors, fmt.Sprintf("invalid snapshot backend '%s': must be one of %v", c.SnapshotBackend, validSnapshotBackends))
	}
	// Zero keeps every snapshot until its month expires.
	if c.SnapshotCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid snapshot cache size %d: must not be negative", c.SnapshotCacheSize))
	}

	// Profiles and sessions always live in SQLite.
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(c.JWTSecret) < minJWTSecretLength {
		errors = append(errors, fmt.Sprintf("JWT_SECRET must be at least %d characters", minJWTSecretLength))
	}
	if c.AccessTokenExpiry < time.Minute || c.AccessTokenExpiry > 30*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid access token expiry %v: must be between 1 minute and 30 days", c.AccessTokenExpiry))
	}

	if c.SheetsEnabled() {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		hasFile := c.GoogleServiceAccountFile != ""
		if c.GoogleServiceAccountJSON == "" && !hasFile && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for sheets export")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}
	if c.WorkerParallelism < 1 || c.WorkerParallelism > 64 {
		errors = append(errors, fmt.Sprintf("invalid worker parallelism %d: must be between 1 and 64", c.WorkerParallelism))
	}
	if _, err := cron.ParseStandard(c.SnapshotPruneSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid snapshot prune schedule '%s': %v", c.SnapshotPruneSchedule, err))
	}

	if !slices.Contains([]string{"text", "json"}, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
