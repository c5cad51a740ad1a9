package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/tcscope/internal/aggregate"
	tc "github.com/linnemanlabs/tcscope/internal/cfg"
	"github.com/linnemanlabs/tcscope/internal/search"
	"github.com/linnemanlabs/tcscope/internal/search/memstore"
)

func TestPipelineOptions(t *testing.T) {
	t.Parallel()

	c := &tc.Config{
		ResultLimit:   250,
		ChunkSize:     25,
		MaxInFlight:   3,
		ChunkTimeout:  5 * time.Second,
		SearchTimeout: time.Minute,
		TypePolicy:    "flag",
	}
	got := pipelineOptions(c)

	if got.ResultLimit != 250 || got.ChunkSize != 25 || got.MaxInFlight != 3 {
		t.Errorf("limits = %+v", got)
	}
	if got.ChunkTimeout != 5*time.Second || got.SearchTimeout != time.Minute {
		t.Errorf("timeouts = %s/%s", got.ChunkTimeout, got.SearchTimeout)
	}
	if got.TypePolicy != aggregate.TypeFlag {
		t.Errorf("TypePolicy = %q, want flag", got.TypePolicy)
	}
}

func TestWaitFunc(t *testing.T) {
	t.Parallel()

	fast := waitFunc(func() {})
	if err := fast(context.Background()); err != nil {
		t.Errorf("fast wait = %v, want nil", err)
	}

	release := make(chan struct{})
	defer close(release)
	slow := waitFunc(func() { <-release })
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := slow(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("slow wait = %v, want deadline exceeded", err)
	}
}

func TestOpenHistory_Memory(t *testing.T) {
	t.Parallel()

	store, closeFn, err := openHistory(context.Background(), &tc.Config{HistorySize: 10})
	if err != nil {
		t.Fatalf("openHistory: %v", err)
	}
	defer closeFn()
	if _, ok := store.(*memstore.Store); !ok {
		t.Errorf("store = %T, want *memstore.Store", store)
	}
}

func TestOpenHistory_BadDatabaseURL(t *testing.T) {
	t.Parallel()

	_, _, err := openHistory(context.Background(), &tc.Config{DatabaseURL: "postgres://%zz"})
	if err == nil || !strings.Contains(err.Error(), "postgres pool") {
		t.Errorf("error = %v, want postgres pool error", err)
	}
}

func TestServiceOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  tc.Config
		want int
	}{
		{"history and metrics only", tc.Config{}, 2},
		{"slack", tc.Config{SlackWebhookURL: "https://hooks.slack.test/x", AlertRating: 4}, 3},
		{"slack without rating", tc.Config{SlackWebhookURL: "https://hooks.slack.test/x"}, 2},
		{"claude", tc.Config{ClaudeAPIKey: "key", ClaudeModel: "claude-sonnet-4-20250514"}, 3},
		{"everything", tc.Config{
			SlackWebhookURL: "https://hooks.slack.test/x",
			AlertRating:     4,
			ClaudeAPIKey:    "key",
			ClaudeModel:     "claude-sonnet-4-20250514",
		}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := search.NewMetrics(prometheus.NewRegistry())
			got := serviceOptions(context.Background(), &tt.cfg, memstore.New(1), m)
			if len(got) != tt.want {
				t.Errorf("len(options) = %d, want %d", len(got), tt.want)
			}
		})
	}
}
