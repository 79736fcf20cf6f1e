package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the engine.
type AppConfig struct {
	DatabaseURL string
	RedisAddr   string
	RedisPass   string
	AMQPURL     string
	NotifyQueue string
	StorageRoot string
	HTTPListen  string

	LogLevel    string
	Environment string

	// Cron specs driving the scan entry points.
	CronSpecScan     string // Liveness + retention scans
	CronSpecExpiry   string // checkExpiry sweep
	CronSpecDeletion string // Deletion executor

	// Engine policy knobs.
	QuorumSize         int           // Maximum PINs required for unlock
	CodeTTL            time.Duration // Lifetime of an unlock PIN
	VerificationTTL    time.Duration // Lifetime of an open verification request
	ContactNotifyDelay time.Duration // Pending-request age before contacts are brought in
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.RedisAddr == "" {
		cfg.RedisAddr = "localhost:6379"
	}
	cfg.RedisPass = os.Getenv("REDIS_PASSWORD")

	cfg.AMQPURL = os.Getenv("AMQP_URL")
	if cfg.AMQPURL == "" {
		return nil, fmt.Errorf("AMQP_URL is not set")
	}
	cfg.NotifyQueue = os.Getenv("NOTIFY_QUEUE")
	if cfg.NotifyQueue == "" {
		cfg.NotifyQueue = "lifecycle.notifications"
	}

	cfg.StorageRoot = os.Getenv("STORAGE_ROOT")
	if cfg.StorageRoot == "" {
		cfg.StorageRoot = "/var/lib/lifecycle/blobs"
	}

	cfg.HTTPListen = os.Getenv("HTTP_LISTEN_ADDR")
	if cfg.HTTPListen == "" {
		cfg.HTTPListen = ":8080"
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.CronSpecScan = os.Getenv("CRON_SPEC_SCAN")
	if cfg.CronSpecScan == "" {
		cfg.CronSpecScan = "*/5 * * * *" // Default: every 5 minutes
	}
	cfg.CronSpecExpiry = os.Getenv("CRON_SPEC_EXPIRY")
	if cfg.CronSpecExpiry == "" {
		cfg.CronSpecExpiry = "*/15 * * * *" // Default: every 15 minutes
	}
	cfg.CronSpecDeletion = os.Getenv("CRON_SPEC_DELETION")
	if cfg.CronSpecDeletion == "" {
		cfg.CronSpecDeletion = "*/10 * * * *" // Default: every 10 minutes
	}

	var err error
	cfg.QuorumSize, err = intEnv("QUORUM_SIZE", 3)
	if err != nil {
		return nil, err
	}
	if cfg.QuorumSize < 1 {
		return nil, fmt.Errorf("QUORUM_SIZE must be at least 1")
	}

	codeTTLHours, err := intEnv("CODE_TTL_HOURS", 14*24)
	if err != nil {
		return nil, err
	}
	cfg.CodeTTL = time.Duration(codeTTLHours) * time.Hour

	verificationTTLHours, err := intEnv("VERIFICATION_TTL_HOURS", 30*24)
	if err != nil {
		return nil, err
	}
	cfg.VerificationTTL = time.Duration(verificationTTLHours) * time.Hour

	contactDelayHours, err := intEnv("CONTACT_NOTIFY_DELAY_HOURS", 72)
	if err != nil {
		return nil, err
	}
	cfg.ContactNotifyDelay = time.Duration(contactDelayHours) * time.Hour

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
