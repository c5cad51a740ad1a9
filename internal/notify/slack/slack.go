// Package slack sends high-rated search hits to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/tcscope/internal/aggregate"
	"github.com/linnemanlabs/tcscope/internal/search"
)

const (
	maxBriefLen = 3000
	maxHitLines = 10
	httpTimeout = 10 * time.Second
)

// Notifier posts search hits to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
	logger     log.Logger
}

// New creates a new Slack notifier. If webhookURL is empty, NotifyHits is a
// no-op.
func New(webhookURL string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// NotifyHits posts a summary of hits from snap to the configured webhook.
func (n *Notifier) NotifyHits(ctx context.Context, snap *search.Snapshot, hits []aggregate.Group) error {
	if n.webhookURL == "" || len(hits) == 0 {
		return nil
	}

	body, err := json.Marshal(buildMessage(snap, hits))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	n.logger.Info(ctx, "slack notification sent", "search_id", snap.ID, "hits", len(hits))
	return nil
}

func buildMessage(snap *search.Snapshot, hits []aggregate.Group) map[string]any {
	blocks := []map[string]any{
		headerBlock(snap, hits),
		{"type": "divider"},
		fieldsBlock(snap, hits),
		{"type": "divider"},
		hitsBlock(hits),
	}
	if snap.Brief != "" {
		blocks = append(blocks, map[string]any{"type": "divider"}, briefBlock(snap.Brief))
	}
	blocks = append(blocks, map[string]any{"type": "divider"}, contextBlock(snap))
	return map[string]any{"blocks": blocks}
}

func headerBlock(snap *search.Snapshot, hits []aggregate.Group) map[string]any {
	noun := "groups"
	if len(hits) == 1 {
		noun = "group"
	}
	text := fmt.Sprintf("%s %d high-rated %s for %q", ratingEmoji(topRating(hits)), len(hits), noun, snap.Query)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": truncate(text, 150),
		},
	}
}

func fieldsBlock(snap *search.Snapshot, hits []aggregate.Group) map[string]any {
	queryType := snap.QueryType
	if queryType == "" {
		queryType = "partial"
	}
	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Query type:* %s", queryType)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Top rating:* %.1f", topRating(hits))},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Indicators:* %d", snap.Stats.TotalCount)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Groups:* %d", len(snap.Groups))},
		{"type": "mrkdwn", "text": fmt.Sprintf("*False positives:* %d", snap.Stats.FalsePositives)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Failed chunks:* %d", snap.FailedChunks)},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func hitsBlock(hits []aggregate.Group) map[string]any {
	var b strings.Builder
	b.WriteString("*Hits*\n")
	for i, g := range hits {
		if i == maxHitLines {
			fmt.Fprintf(&b, "\n_…and %d more_", len(hits)-maxHitLines)
			break
		}
		typ := g.Type
		if g.Conflict {
			typ += " (mixed)"
		}
		fmt.Fprintf(&b, "\n%s `%s` %s, rating %.1f, %d indicators",
			ratingEmoji(g.MaxRating()), escape(truncate(g.Summary, 200)), typ, g.MaxRating(), len(g.Members))
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": b.String(),
		},
	}
}

func briefBlock(brief string) map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Brief*\n\n%s", truncate(brief, maxBriefLen)),
		},
	}
}

func contextBlock(snap *search.Snapshot) map[string]any {
	ts := snap.CompletedAt
	if ts.IsZero() {
		ts = snap.StartedAt
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("tcscope • search %s • %s", snap.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func topRating(hits []aggregate.Group) float64 {
	var top float64
	for _, g := range hits {
		top = max(top, g.MaxRating())
	}
	return top
}

func ratingEmoji(rating float64) string {
	switch {
	case rating >= 4.5:
		return "\U0001f534" // red circle
	case rating >= 3:
		return "\U0001f7e0" // orange circle
	default:
		return "\U0001f7e1" // yellow circle
	}
}

var mrkdwnEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "`", "'")

// escape neutralizes Slack control sequences in indicator summaries.
func escape(s string) string {
	return mrkdwnEscaper.Replace(s)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}
