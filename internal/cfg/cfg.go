package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds service-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	RedisURL              string
	AIServiceURL          string
	AITimeoutSeconds      int
	VideoTimeoutSeconds   int
	JWTSecret             string
	CacheTTLSeconds       int
	SlackWebhookURL       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.RedisURL, "redis-url", "", "Redis connection URL for dashboard caching (empty = in-memory cache)")
	fs.StringVar(&c.AIServiceURL, "ai-service-url", "http://localhost:8000", "base URL of the AI assessment service")
	fs.IntVar(&c.AITimeoutSeconds, "ai-timeout-seconds", 15, "per-call timeout for AI assessment requests (1..120)")
	fs.IntVar(&c.VideoTimeoutSeconds, "video-timeout-seconds", 30, "per-call timeout for video vital-sign extraction (1..300)")
	fs.StringVar(&c.JWTSecret, "jwt-secret", "", "HMAC secret for verifying JWT access tokens")
	fs.IntVar(&c.CacheTTLSeconds, "cache-ttl-seconds", 30, "dashboard overview cache TTL in seconds (1..3600)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for level 1 pages")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	if c.AIServiceURL == "" {
		errs = append(errs, errors.New("AI_SERVICE_URL is required"))
	}
	if c.AITimeoutSeconds <= 0 || c.AITimeoutSeconds > 120 {
		errs = append(errs, fmt.Errorf("invalid AI_TIMEOUT_SECONDS %d (must be 1..120)", c.AITimeoutSeconds))
	}
	if c.VideoTimeoutSeconds <= 0 || c.VideoTimeoutSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid VIDEO_TIMEOUT_SECONDS %d (must be 1..300)", c.VideoTimeoutSeconds))
	}

	// JWT secret is required: every API and socket request is authenticated
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}

	if c.CacheTTLSeconds <= 0 || c.CacheTTLSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid CACHE_TTL_SECONDS %d (must be 1..3600)", c.CacheTTLSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
