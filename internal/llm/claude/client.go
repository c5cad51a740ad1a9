// Package claude produces analyst briefs for search results with the
// Anthropic Messages API.
package claude

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/tcscope/internal/aggregate"
	"github.com/linnemanlabs/tcscope/internal/search"
)

const (
	defaultMaxTokens = 1024
	maxPromptGroups  = 15
	maxPromptTags    = 8
	httpTimeout      = 120 * time.Second
)

const systemPrompt = `You are a threat intelligence analyst. You receive the aggregated result of
an indicator search against a threat intelligence platform. Write a brief for
a SOC analyst: what the matches are, which groups matter most and why, and
anything that looks like a false positive or conflicting data. Use at most
five short paragraphs or bullets. Do not invent facts that are not in the data.`

// Briefer implements search.Briefer using Claude.
type Briefer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    log.Logger
}

// Option configures a Briefer.
type Option func(*config)

type config struct {
	maxTokens int64
	reqOpts   []option.RequestOption
}

// WithMaxTokens caps the length of generated briefs.
func WithMaxTokens(n int64) Option {
	return func(c *config) { c.maxTokens = n }
}

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(u string) Option {
	return func(c *config) { c.reqOpts = append(c.reqOpts, option.WithBaseURL(u)) }
}

// New creates a Briefer for the given API key and model.
func New(apiKey, model string, logger log.Logger, opts ...Option) *Briefer {
	if apiKey == "" || model == "" {
		panic(xerrors.New("claude api key and model are required"))
	}
	if logger == nil {
		logger = log.Nop()
	}

	cfg := config{maxTokens: defaultMaxTokens}
	for _, o := range opts {
		o(&cfg)
	}

	reqOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	}, cfg.reqOpts...)

	return &Briefer{
		client:    anthropic.NewClient(reqOpts...),
		model:     model,
		maxTokens: cfg.maxTokens,
		logger:    logger,
	}
}

// Brief asks the model to summarize snap.
func (b *Briefer) Brief(ctx context.Context, snap *search.Snapshot) (string, error) {
	start := time.Now()

	msg, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.model),
		MaxTokens: b.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(snap))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude: create message: %w", err)
	}

	text := responseText(msg.Content)
	if text == "" {
		return "", fmt.Errorf("claude: empty response (stop reason %q)", msg.StopReason)
	}

	b.logger.Info(ctx, "brief generated",
		"search_id", snap.ID,
		"model", b.model,
		"tokens_in", msg.Usage.InputTokens,
		"tokens_out", msg.Usage.OutputTokens,
		"duration", time.Since(start).Seconds(),
	)
	return text, nil
}

// responseText joins the text blocks of a response.
func responseText(blocks []anthropic.ContentBlockUnion) string {
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && strings.TrimSpace(b.Text) != "" {
			parts = append(parts, strings.TrimSpace(b.Text))
		}
	}
	return strings.Join(parts, "\n\n")
}

// buildPrompt renders the search result as plain text. Groups are listed by
// descending top rating so the most relevant survive the cap.
func buildPrompt(snap *search.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Search term: %s\n", snap.Query)
	if snap.QueryType != "" {
		fmt.Fprintf(&b, "Detected term type: %s\n", snap.QueryType)
	}
	writeStats(&b, snap.Stats)
	if snap.FailedChunks > 0 || snap.DroppedChunks > 0 {
		fmt.Fprintf(&b, "Note: %d detail requests failed and %d were dropped; some records lack tags and associations.\n",
			snap.FailedChunks, snap.DroppedChunks)
	}

	groups := make([]aggregate.Group, len(snap.Groups))
	copy(groups, snap.Groups)
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].MaxRating() > groups[j].MaxRating()
	})

	fmt.Fprintf(&b, "\nGroups (%d total", len(groups))
	if len(groups) > maxPromptGroups {
		fmt.Fprintf(&b, ", top %d shown", maxPromptGroups)
		groups = groups[:maxPromptGroups]
	}
	b.WriteString("):\n")

	for _, g := range groups {
		writeGroup(&b, g)
	}
	return b.String()
}

func writeStats(b *strings.Builder, s aggregate.Statistics) {
	fmt.Fprintf(b, "Indicators: %d (active %d, false positives %d, owners %d)\n",
		s.TotalCount, s.ActiveCount, s.FalsePositives, s.UniqueOwners)
	if s.AvgRating != nil {
		fmt.Fprintf(b, "Average rating: %.2f\n", *s.AvgRating)
	}
	if s.AvgConfidence != nil {
		fmt.Fprintf(b, "Average confidence: %.1f\n", *s.AvgConfidence)
	}
	if s.EarliestAdded != nil {
		fmt.Fprintf(b, "First added: %s\n", s.EarliestAdded.UTC().Format(time.RFC3339))
	}
	if s.LatestModified != nil {
		fmt.Fprintf(b, "Last modified: %s\n", s.LatestModified.UTC().Format(time.RFC3339))
	}
}

func writeGroup(b *strings.Builder, g aggregate.Group) {
	typ := g.Type
	if g.Conflict {
		typ += ", conflicting types"
	}
	fmt.Fprintf(b, "- %s [%s] max rating %.1f, %d records", g.Summary, typ, g.MaxRating(), len(g.Members))

	owners := map[string]struct{}{}
	tags := map[string]struct{}{}
	var tagList []string
	for _, m := range g.Members {
		if m.OwnerName != "" {
			owners[m.OwnerName] = struct{}{}
		}
		for _, t := range m.Tags {
			if _, ok := tags[t.Name]; !ok && len(tagList) < maxPromptTags {
				tags[t.Name] = struct{}{}
				tagList = append(tagList, t.Name)
			}
		}
	}
	if len(owners) > 0 {
		fmt.Fprintf(b, ", %d owners", len(owners))
	}
	if len(tagList) > 0 {
		fmt.Fprintf(b, ", tags: %s", strings.Join(tagList, ", "))
	}
	b.WriteString("\n")
}
