package cfg

import (
	"flag"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/tcscope/internal/aggregate"
)

// validBase returns a Config with all required fields set to valid values.
func validBase() Config {
	return Config{
		DrainSeconds:          10,
		ShutdownBudgetSeconds: 30,
		APIPort:               8080,
		TCEndpoint:            "https://app.threatconnect.com",
		TCAccessID:            "12345678901234567890",
		TCSecretKey:           "secret",
		ResultLimit:           100,
		ChunkSize:             20,
		ChunkTimeout:          30 * time.Second,
		SearchTimeout:         2 * time.Minute,
		TypePolicy:            "first",
		AlertRating:           4,
		ClaudeModel:           "claude-sonnet-4-20250514",
		HistorySize:           500,
	}
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse empty args: %v", err)
	}

	if c.DrainSeconds != 10 {
		t.Errorf("DrainSeconds = %d, want 10", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 30 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 30", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.ResultLimit != 100 || c.ChunkSize != 20 || c.MaxInFlight != 0 {
		t.Errorf("limits = %d/%d/%d, want 100/20/0", c.ResultLimit, c.ChunkSize, c.MaxInFlight)
	}
	if c.ChunkTimeout != 30*time.Second || c.SearchTimeout != 2*time.Minute {
		t.Errorf("timeouts = %s/%s", c.ChunkTimeout, c.SearchTimeout)
	}
	if c.Policy() != aggregate.TypeFirst {
		t.Errorf("Policy = %q, want first", c.Policy())
	}
	if c.AlertRating != 4 {
		t.Errorf("AlertRating = %v, want 4", c.AlertRating)
	}
	if c.ClaudeModel != "claude-sonnet-4-20250514" {
		t.Errorf("ClaudeModel = %q", c.ClaudeModel)
	}
	if c.HistorySize != 500 {
		t.Errorf("HistorySize = %d, want 500", c.HistorySize)
	}
}

func TestRegisterFlags_Override(t *testing.T) {
	t.Parallel()

	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)

	args := []string{
		"-drain-seconds", "5",
		"-http-port", "9090",
		"-tc-endpoint", "https://tc.example.com",
		"-tc-access-id", "id",
		"-tc-secret-key", "key",
		"-chunk-size", "50",
		"-max-in-flight", "4",
		"-chunk-timeout", "5s",
		"-search-timeout", "0",
		"-type-policy", "majority",
		"-alert-rating", "3.5",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}

	if c.DrainSeconds != 5 || c.APIPort != 9090 {
		t.Errorf("drain/port = %d/%d", c.DrainSeconds, c.APIPort)
	}
	if c.TCEndpoint != "https://tc.example.com" || c.TCAccessID != "id" || c.TCSecretKey != "key" {
		t.Errorf("tc = %q %q %q", c.TCEndpoint, c.TCAccessID, c.TCSecretKey)
	}
	if c.ChunkSize != 50 || c.MaxInFlight != 4 {
		t.Errorf("chunk/inflight = %d/%d", c.ChunkSize, c.MaxInFlight)
	}
	if c.ChunkTimeout != 5*time.Second || c.SearchTimeout != 0 {
		t.Errorf("timeouts = %s/%s", c.ChunkTimeout, c.SearchTimeout)
	}
	if c.Policy() != aggregate.TypeMajority {
		t.Errorf("Policy = %q", c.Policy())
	}
	if c.AlertRating != 3.5 {
		t.Errorf("AlertRating = %v", c.AlertRating)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*Config)
		errSubstr []string
	}{
		{"defaults are valid", func(*Config) {}, nil},
		{"minimum valid values", func(c *Config) {
			c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = 1, 2, 1
			c.ResultLimit, c.ChunkSize, c.AlertRating = 1, 1, 0
			c.ChunkTimeout, c.SearchTimeout = 0, 0
		}, nil},
		{"maximum valid values", func(c *Config) {
			c.DrainSeconds, c.ShutdownBudgetSeconds, c.APIPort = 299, 300, 65535
			c.ResultLimit, c.ChunkSize, c.AlertRating = 10000, 500, 5
		}, nil},
		{"empty type policy means first", func(c *Config) { c.TypePolicy = "" }, nil},
		{"database replaces history size", func(c *Config) { c.DatabaseURL = "postgres://x"; c.HistorySize = 0 }, nil},
		{"claude key with model", func(c *Config) { c.ClaudeAPIKey = "k" }, nil},

		{"drain zero", func(c *Config) { c.DrainSeconds = 0 }, []string{"DRAIN_SECONDS"}},
		{"drain above max", func(c *Config) { c.DrainSeconds, c.ShutdownBudgetSeconds = 301, 302 }, []string{"DRAIN_SECONDS"}},
		{"budget zero", func(c *Config) { c.ShutdownBudgetSeconds = 0 }, []string{"SHUTDOWN_BUDGET_SECONDS"}},
		{"budget equals drain", func(c *Config) { c.ShutdownBudgetSeconds = c.DrainSeconds }, []string{"must be greater than"}},
		{"port zero", func(c *Config) { c.APIPort = 0 }, []string{"HTTP_PORT"}},
		{"port above max", func(c *Config) { c.APIPort = 65536 }, []string{"HTTP_PORT"}},
		{"missing endpoint", func(c *Config) { c.TCEndpoint = "" }, []string{"TC_ENDPOINT is required"}},
		{"endpoint without scheme", func(c *Config) { c.TCEndpoint = "app.threatconnect.com" }, []string{"invalid TC_ENDPOINT"}},
		{"endpoint ftp", func(c *Config) { c.TCEndpoint = "ftp://tc" }, []string{"invalid TC_ENDPOINT"}},
		{"missing credentials", func(c *Config) { c.TCAccessID, c.TCSecretKey = "", "" }, []string{"TC_ACCESS_ID", "TC_SECRET_KEY"}},
		{"result limit zero", func(c *Config) { c.ResultLimit = 0 }, []string{"RESULT_LIMIT"}},
		{"result limit too high", func(c *Config) { c.ResultLimit = 10001 }, []string{"RESULT_LIMIT"}},
		{"chunk size zero", func(c *Config) { c.ChunkSize = 0 }, []string{"CHUNK_SIZE"}},
		{"chunk size too high", func(c *Config) { c.ChunkSize = 501 }, []string{"CHUNK_SIZE"}},
		{"negative in flight", func(c *Config) { c.MaxInFlight = -1 }, []string{"MAX_IN_FLIGHT"}},
		{"negative timeouts", func(c *Config) { c.ChunkTimeout, c.SearchTimeout = -1, -1 }, []string{"CHUNK_TIMEOUT", "SEARCH_TIMEOUT"}},
		{"unknown type policy", func(c *Config) { c.TypePolicy = "random" }, []string{"TYPE_POLICY"}},
		{"negative rating", func(c *Config) { c.AlertRating = -0.5 }, []string{"ALERT_RATING"}},
		{"rating above five", func(c *Config) { c.AlertRating = 5.1 }, []string{"ALERT_RATING"}},
		{"rating NaN", func(c *Config) { c.AlertRating = math.NaN() }, []string{"ALERT_RATING"}},
		{"claude key without model", func(c *Config) { c.ClaudeAPIKey, c.ClaudeModel = "k", "" }, []string{"CLAUDE_MODEL"}},
		{"history size zero", func(c *Config) { c.HistorySize = 0 }, []string{"HISTORY_SIZE"}},
		{"all errors joined", func(c *Config) { *c = Config{} }, []string{"DRAIN_SECONDS", "HTTP_PORT", "TC_ENDPOINT", "RESULT_LIMIT", "CHUNK_SIZE"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := validBase()
			tt.mutate(&c)
			err := c.Validate()

			if len(tt.errSubstr) == 0 {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			for _, s := range tt.errSubstr {
				if !strings.Contains(err.Error(), s) {
					t.Errorf("error %q does not contain %q", err.Error(), s)
				}
			}
		})
	}
}

func FuzzValidate(f *testing.F) {
	// Seeds: defaults, boundaries, extremes
	seeds := []struct {
		drain, budget, port, limit, chunk int
		endpoint, policy                  string
		rating                            float64
	}{
		{10, 30, 8080, 100, 20, "https://tc.example.com", "first", 4},
		{1, 2, 1, 1, 1, "http://p", "majority", 0},
		{299, 300, 65535, 10000, 500, "http://p", "flag", 5},
		{0, 0, 0, 0, 0, "", "", 0},
		{-1, -1, -1, -1, -1, "nope", "bogus", -1},
		{300, 300, 65535, 10001, 501, "https://x", "first", 5.01},
		{math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt32, math.MinInt32, "", "", math.Inf(-1)},
		{math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32, math.MaxInt32, "", "", math.Inf(1)},
	}
	for _, s := range seeds {
		f.Add(s.drain, s.budget, s.port, s.limit, s.chunk, s.endpoint, s.policy, s.rating)
	}

	f.Fuzz(func(t *testing.T, drain, budget, port, limit, chunk int, endpoint, policy string, rating float64) {
		c := validBase()
		c.DrainSeconds = drain
		c.ShutdownBudgetSeconds = budget
		c.APIPort = port
		c.ResultLimit = limit
		c.ChunkSize = chunk
		c.TCEndpoint = endpoint
		c.TypePolicy = policy
		c.AlertRating = rating
		err := c.Validate()

		drainOK := drain >= 1 && drain <= 300
		budgetOK := budget >= 1 && budget <= 300
		portOK := port >= 1 && port <= 65535
		crossOK := budget > drain
		limitOK := limit >= 1 && limit <= 10000
		chunkOK := chunk >= 1 && chunk <= 500
		_, perr := aggregate.ParseTypePolicy(policy)
		ratingOK := rating >= 0 && rating <= 5

		structuralOK := drainOK && budgetOK && portOK && crossOK && limitOK && chunkOK && perr == nil && ratingOK
		if !structuralOK && err == nil {
			t.Errorf("expected error for invalid config %+v, got nil", c)
		}
		if endpoint == "" && err == nil {
			t.Error("expected error for empty endpoint")
		}
	})
}
