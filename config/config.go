package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Ajo       AjoConfig
	Scheduler SchedulerConfig
	Ledger    LedgerConfig
	SMS       SMSConfig
	Firebase  FirebaseConfig
	Log       LogConfig
	Webhook   WebhookConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Driver          string // mysql | sqlite
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// AjoConfig holds the group policy knobs. Amounts are in kobo.
type AjoConfig struct {
	MinContribution   int64
	MinSlots          int
	MaxSlots          int
	MinStartLead      time.Duration
	ReservedSlots     int
	PenaltyPercent    int
	EarlyExitPercent  int
	CreatePoints      int
	ContributePoints  int
	ReversalAlertKobo int64
}

type SchedulerConfig struct {
	Enabled     bool
	RunHour     int
	RunMinute   int
	Timezone    string
	MaxRetries  int
	RetryDelay  time.Duration
	Concurrency int
}

// LedgerConfig selects the bank ledger. Provider "vfd" talks to the VFD wallet API, "stub" keeps everything local.
type LedgerConfig struct {
	Provider     string
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// SMSConfig for Africa's Talking. OpsPhone receives scheduler escalations.
type SMSConfig struct {
	BaseURL  string
	Username string
	APIKey   string
	Sender   string
	OpsPhone string
}

type FirebaseConfig struct {
	ServiceAccountPath string
}

type LogConfig struct {
	Level  string
	Format string
}

type WebhookConfig struct {
	Secret string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8099"),
			Env:          getEnv("APP_ENV", "development"),
			ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "mysql"),
			DSN:             getEnv("DATABASE_DSN", "ajo:ajo@tcp(localhost:3306)/ajo?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		JWT: JWTConfig{
			AccessSecret: getEnv("JWT_SECRET", "change-me-in-production"),
			AccessExpiry: getEnvDuration("JWT_EXPIRY", 24*time.Hour),
			Issuer:       getEnv("JWT_ISSUER", "ajo"),
		},
		Ajo: AjoConfig{
			MinContribution:   int64(getEnvInt("AJO_MIN_CONTRIBUTION_KOBO", 10000)),
			MinSlots:          getEnvInt("AJO_MIN_SLOTS", 5),
			MaxSlots:          getEnvInt("AJO_MAX_SLOTS", 30),
			MinStartLead:      getEnvDuration("AJO_MIN_START_LEAD", 24*time.Hour),
			ReservedSlots:     getEnvInt("AJO_RESERVED_SLOTS", 5),
			PenaltyPercent:    getEnvInt("AJO_PENALTY_PERCENT", 10),
			EarlyExitPercent:  getEnvInt("AJO_EARLY_EXIT_PERCENT", 50),
			CreatePoints:      getEnvInt("AJO_CREATE_POINTS", 25),
			ContributePoints:  getEnvInt("AJO_CONTRIBUTE_POINTS", 5),
			ReversalAlertKobo: int64(getEnvInt("AJO_REVERSAL_ALERT_KOBO", 10000000)),
		},
		Scheduler: SchedulerConfig{
			Enabled:     getEnvBool("PAYOUT_SCHEDULER_ENABLED", true),
			RunHour:     getEnvInt("PAYOUT_RUN_HOUR", 16),
			RunMinute:   getEnvInt("PAYOUT_RUN_MINUTE", 0),
			Timezone:    getEnv("PAYOUT_TIMEZONE", "Africa/Lagos"),
			MaxRetries:  getEnvInt("PAYOUT_MAX_RETRIES", 3),
			RetryDelay:  getEnvDuration("PAYOUT_RETRY_DELAY", 30*time.Minute),
			Concurrency: getEnvInt("PAYOUT_CONCURRENCY", 4),
		},
		Ledger: LedgerConfig{
			Provider:     getEnv("LEDGER_PROVIDER", "stub"),
			BaseURL:      getEnv("VFD_BASE_URL", "https://api.vfdtech.ng"),
			ClientID:     os.Getenv("VFD_CLIENT_ID"),
			ClientSecret: os.Getenv("VFD_CLIENT_SECRET"),
			Timeout:      getEnvDuration("LEDGER_TIMEOUT", 15*time.Second),
		},
		SMS: SMSConfig{
			BaseURL:  getEnv("AT_BASE_URL", "https://api.africastalking.com"),
			Username: os.Getenv("AT_USERNAME"),
			APIKey:   os.Getenv("AT_API_KEY"),
			Sender:   getEnv("AT_SENDER", "myRite"),
			OpsPhone: os.Getenv("ADMIN_PHONE"),
		},
		Firebase: FirebaseConfig{
			ServiceAccountPath: os.Getenv("FIREBASE_SERVICE_ACCOUNT_PATH"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("LEDGER_WEBHOOK_SECRET"),
		},
	}
}

// Location resolves the scheduler timezone, falling back to UTC.
func (c SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
