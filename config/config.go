package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AWS      AWSConfig
	Email    EmailConfig
	Event    EventConfig
	Behavior BehaviorConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings. REDIS_ADDR set to "" disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AWSConfig holds S3 settings for payment proofs and QR images. Empty Bucket disables S3.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Endpoint        string
	PublicRead      bool
}

// EmailConfig holds SMTP settings. Empty SMTPHost logs mail instead of sending it.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
	Subject     string
	// Mode is "queue" (Redis + worker) or "direct" (send inline).
	Mode string
	// InlineWorker runs the email worker inside the API process as well.
	InlineWorker bool
}

// EventConfig describes the event the tickets are for.
type EventConfig struct {
	AdminKey      string
	AdminKeyHash  string // bcrypt; takes precedence over AdminKey
	VerifyBaseURL string
	TicketPrefix  string
	Timezone      string
	Title         string
	TeamName      string
}

// BehaviorConfig holds operational toggles.
type BehaviorConfig struct {
	WriteLockTimeout  time.Duration
	WriteLockLease    time.Duration
	QRRenderer        string // "remote" or "local"
	QRBaseURL         string
	QRTimeout         time.Duration
	ProofUploadStrict bool
	StrictForm        bool
	ListRequiresAdmin bool
	// IssuanceSweep re-runs issuance for approved rows without a ticket
	// whenever the approval listener (re)connects.
	IssuanceSweep bool
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Location loads the event time zone.
func (c EventConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load event timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "gatepass"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     lookupEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "ap-south-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("AWS_S3_BUCKET", ""),
			Endpoint:        getEnv("AWS_S3_ENDPOINT", ""),
			PublicRead:      getEnvBool("AWS_S3_PUBLIC_READ", true),
		},
		Email: EmailConfig{
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:     getEnv("EMAIL_FROM_NAME", "BIS CUSAT"),
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPass:     getEnv("SMTP_PASS", ""),
			Subject:      getEnv("EMAIL_SUBJECT", "Your BIS AutoCAD Internship Ticket"),
			Mode:         strings.ToLower(getEnv("EMAIL_MODE", "queue")),
			InlineWorker: getEnvBool("EMAIL_INLINE_WORKER", true),
		},
		Event: EventConfig{
			AdminKey:      getEnv("ADMIN_KEY", "BIScusat"),
			AdminKeyHash:  getEnv("ADMIN_KEY_HASH", ""),
			VerifyBaseURL: getEnv("VERIFY_BASE_URL", "https://bis-registration.netlify.app/verify.html"),
			TicketPrefix:  getEnv("TICKET_PREFIX", "BIS-ACAD-"),
			Timezone:      getEnv("EVENT_TIMEZONE", "Asia/Kolkata"),
			Title:         getEnv("EVENT_TITLE", "AutoCAD Internship"),
			TeamName:      getEnv("EVENT_TEAM", "BIS CUSAT Team"),
		},
		Behavior: BehaviorConfig{
			WriteLockTimeout:  getEnvDuration("WRITE_LOCK_TIMEOUT", 30*time.Second),
			WriteLockLease:    getEnvDuration("WRITE_LOCK_LEASE", 60*time.Second),
			QRRenderer:        strings.ToLower(getEnv("QR_RENDERER", "remote")),
			QRBaseURL:         getEnv("QR_BASE_URL", "https://api.qrserver.com/v1/create-qr-code/?size=400x400&data="),
			QRTimeout:         getEnvDuration("QR_TIMEOUT", 10*time.Second),
			ProofUploadStrict: getEnvBool("PROOF_UPLOAD_STRICT", false),
			StrictForm:        getEnvBool("STRICT_FORM_VALIDATION", false),
			ListRequiresAdmin: getEnvBool("LIST_REQUIRES_ADMIN", false),
			IssuanceSweep:     getEnvBool("ISSUANCE_SWEEP", false),
		},
	}
	if cfg.Email.Mode != "queue" && cfg.Email.Mode != "direct" {
		return nil, fmt.Errorf("EMAIL_MODE must be queue or direct, got %q", cfg.Email.Mode)
	}
	if cfg.Behavior.QRRenderer != "remote" && cfg.Behavior.QRRenderer != "local" {
		return nil, fmt.Errorf("QR_RENDERER must be remote or local, got %q", cfg.Behavior.QRRenderer)
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("30s") or plain seconds ("30").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

// lookupEnv is getEnv, except that a variable set to "" stays empty.
func lookupEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
