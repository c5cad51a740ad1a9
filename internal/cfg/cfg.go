package cfg

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/linnemanlabs/tcscope/internal/aggregate"
)

// Config holds the application settings. It satisfies the go-core
// cfg.Registerable and cfg.Validatable interfaces.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string

	TCEndpoint  string
	TCAccessID  string
	TCSecretKey string

	ResultLimit   int
	ChunkSize     int
	MaxInFlight   int
	ChunkTimeout  time.Duration
	SearchTimeout time.Duration
	TypePolicy    string

	AlertRating     float64
	SlackWebhookURL string
	ClaudeAPIKey    string
	ClaudeModel     string

	DatabaseURL string
	HistorySize int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 10, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 30, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "comma-separated bearer tokens for the API (empty = no auth)")

	fs.StringVar(&c.TCEndpoint, "tc-endpoint", "", "ThreatConnect base URL, e.g. https://app.threatconnect.com")
	fs.StringVar(&c.TCAccessID, "tc-access-id", "", "ThreatConnect API access ID")
	fs.StringVar(&c.TCSecretKey, "tc-secret-key", "", "ThreatConnect API secret key")

	fs.IntVar(&c.ResultLimit, "result-limit", 100, "maximum indicators matched per search (1..10000)")
	fs.IntVar(&c.ChunkSize, "chunk-size", 20, "indicator ids per detail request (1..500)")
	fs.IntVar(&c.MaxInFlight, "max-in-flight", 0, "concurrent detail requests per search (0 = unbounded)")
	fs.DurationVar(&c.ChunkTimeout, "chunk-timeout", 30*time.Second, "deadline for one detail request (0 = none)")
	fs.DurationVar(&c.SearchTimeout, "search-timeout", 2*time.Minute, "deadline for a whole search (0 = none)")
	fs.StringVar(&c.TypePolicy, "type-policy", string(aggregate.TypeFirst), "group type resolution: first, majority or flag")

	fs.Float64Var(&c.AlertRating, "alert-rating", 4.0, "minimum threat rating that triggers a Slack notification (0 = off)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for notifications")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for Claude analyst briefs (empty = briefs off)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")

	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory history)")
	fs.IntVar(&c.HistorySize, "history-size", 500, "entries kept by the in-memory history (1..100000)")
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
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// ThreatConnect credentials
	if c.TCEndpoint == "" {
		errs = append(errs, errors.New("TC_ENDPOINT is required"))
	} else if u, err := url.Parse(c.TCEndpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid TC_ENDPOINT %q (must be an http or https URL)", c.TCEndpoint))
	}
	if c.TCAccessID == "" {
		errs = append(errs, errors.New("TC_ACCESS_ID is required"))
	}
	if c.TCSecretKey == "" {
		errs = append(errs, errors.New("TC_SECRET_KEY is required"))
	}

	// Pipeline tuning
	if c.ResultLimit <= 0 || c.ResultLimit > 10000 {
		errs = append(errs, fmt.Errorf("invalid RESULT_LIMIT %d (must be 1..10000)", c.ResultLimit))
	}
	if c.ChunkSize <= 0 || c.ChunkSize > 500 {
		errs = append(errs, fmt.Errorf("invalid CHUNK_SIZE %d (must be 1..500)", c.ChunkSize))
	}
	if c.MaxInFlight < 0 {
		errs = append(errs, fmt.Errorf("invalid MAX_IN_FLIGHT %d (must be >= 0)", c.MaxInFlight))
	}
	if c.ChunkTimeout < 0 {
		errs = append(errs, fmt.Errorf("invalid CHUNK_TIMEOUT %s (must be >= 0)", c.ChunkTimeout))
	}
	if c.SearchTimeout < 0 {
		errs = append(errs, fmt.Errorf("invalid SEARCH_TIMEOUT %s (must be >= 0)", c.SearchTimeout))
	}
	if _, err := aggregate.ParseTypePolicy(c.TypePolicy); err != nil {
		errs = append(errs, fmt.Errorf("invalid TYPE_POLICY: %w", err))
	}

	// Notifications and briefs
	if math.IsNaN(c.AlertRating) || c.AlertRating < 0 || c.AlertRating > 5 {
		errs = append(errs, fmt.Errorf("invalid ALERT_RATING %v (must be 0..5)", c.AlertRating))
	}
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	if c.DatabaseURL == "" && (c.HistorySize <= 0 || c.HistorySize > 100000) {
		errs = append(errs, fmt.Errorf("invalid HISTORY_SIZE %d (must be 1..100000)", c.HistorySize))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Policy returns the parsed type policy. Call after Validate.
func (c *Config) Policy() aggregate.TypePolicy {
	p, _ := aggregate.ParseTypePolicy(c.TypePolicy)
	return p
}
