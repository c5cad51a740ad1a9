package search

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/tcscope/internal/aggregate"
	"github.com/linnemanlabs/tcscope/internal/indicator"
	"github.com/linnemanlabs/tcscope/internal/threatconnect"
)

var tracer = otel.Tracer("github.com/linnemanlabs/tcscope/internal/search")

const (
	DefaultResultLimit   = 100
	DefaultChunkSize     = 20
	DefaultChunkTimeout  = 30 * time.Second
	DefaultSearchTimeout = 2 * time.Minute
)

// Fetcher is the slice of the API client the pipeline depends on.
type Fetcher interface {
	Get(ctx context.Context, path string, params []threatconnect.Param, out any) error
}

// Options tunes the pipeline. Zero timeouts disable the corresponding deadline
// and a zero MaxInFlight leaves chunk fan-out unbounded.
type Options struct {
	ResultLimit   int
	ChunkSize     int
	MaxInFlight   int
	ChunkTimeout  time.Duration
	SearchTimeout time.Duration
	TypePolicy    aggregate.TypePolicy
}

// DefaultOptions returns the stock tuning.
func DefaultOptions() Options {
	return Options{
		ResultLimit:   DefaultResultLimit,
		ChunkSize:     DefaultChunkSize,
		ChunkTimeout:  DefaultChunkTimeout,
		SearchTimeout: DefaultSearchTimeout,
		TypePolicy:    aggregate.TypeFirst,
	}
}

// PipelineHooks are optional callbacks for metrics instrumentation.
type PipelineHooks struct {
	OnResolve  func(duration float64, records int, err error)
	OnChunk    func(size int, duration float64, outcome ChunkOutcome)
	OnComplete func(snap *Snapshot)
}

// ChunkOutcome labels how a phase 2 chunk ended.
type ChunkOutcome string

const (
	ChunkEnriched ChunkOutcome = "enriched"
	ChunkFallback ChunkOutcome = "fallback"
	ChunkDropped  ChunkOutcome = "dropped"
)

// Pipeline runs the two-phase search: resolve matching indicators by summary,
// then enrich them in concurrent id chunks. It holds no per-search state.
type Pipeline struct {
	fetcher Fetcher
	opts    Options
	logger  log.Logger
	hooks   PipelineHooks
}

// NewPipeline creates a pipeline. Non-positive limits fall back to defaults.
func NewPipeline(fetcher Fetcher, opts Options, logger log.Logger, hooks PipelineHooks) *Pipeline {
	if fetcher == nil {
		panic(xerrors.New("fetcher is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if opts.ResultLimit <= 0 {
		opts.ResultLimit = DefaultResultLimit
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.TypePolicy == "" {
		opts.TypePolicy = aggregate.TypeFirst
	}
	return &Pipeline{
		fetcher: fetcher,
		opts:    opts,
		logger:  logger,
		hooks:   hooks,
	}
}

// Run executes one search for an already trimmed, non-empty query. It never
// returns an error: failures are folded into the snapshot's outcome.
func (p *Pipeline) Run(ctx context.Context, id, query string) *Snapshot {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "search.Run")
	defer span.End()
	span.SetAttributes(attribute.String("tcscope.search.id", id))

	if p.opts.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.SearchTimeout)
		defer cancel()
	}

	L := p.logger.With("search_id", id, "query", query)

	snap := &Snapshot{
		ID:        id,
		Query:     query,
		QueryType: DetectType(query),
		Groups:    []aggregate.Group{},
		StartedAt: start,
	}

	base, err := p.resolve(ctx, query)
	if err != nil {
		L.Error(ctx, err, "indicator search failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		snap.Outcome = OutcomeFailed
		snap.Status = failedStatus(err)
		snap.Error = err.Error()
		return p.finish(snap, start)
	}

	if len(base) == 0 {
		L.Info(ctx, "no indicators matched")
		snap.Outcome = OutcomeNoResults
		snap.Status = noResultsStatus(query)
		return p.finish(snap, start)
	}

	merged, res := p.enrich(ctx, L, base)

	snap.Outcome = OutcomeSuccess
	snap.Groups = aggregate.GroupIndicators(merged, p.opts.TypePolicy)
	snap.Stats = aggregate.ComputeStatistics(merged)
	snap.TotalRecords = len(merged)
	snap.Chunks = res.chunks
	snap.FailedChunks = res.failed
	snap.DroppedChunks = res.dropped
	snap.Status = successStatus(snap.Stats.TotalCount, len(snap.Groups))

	span.SetAttributes(
		attribute.Int("tcscope.search.records", snap.TotalRecords),
		attribute.Int("tcscope.search.groups", len(snap.Groups)),
		attribute.Int("tcscope.search.failed_chunks", res.failed),
	)

	L.Info(ctx, "search complete",
		"records", snap.TotalRecords,
		"groups", len(snap.Groups),
		"chunks", res.chunks,
		"failed_chunks", res.failed,
		"dropped_chunks", res.dropped,
	)

	return p.finish(snap, start)
}

func (p *Pipeline) finish(snap *Snapshot, start time.Time) *Snapshot {
	snap.CompletedAt = time.Now()
	snap.Duration = time.Since(start).Seconds()
	if p.hooks.OnComplete != nil {
		p.hooks.OnComplete(snap)
	}
	return snap
}

// resolve runs phase 1: a summary match bounded to the result window.
func (p *Pipeline) resolve(ctx context.Context, query string) ([]indicator.Indicator, error) {
	ctx, span := tracer.Start(ctx, "search.resolve")
	defer span.End()

	start := time.Now()
	var resp indicator.ListResponse[indicator.Indicator]
	err := p.fetcher.Get(ctx, IndicatorsPath, resolveParams(query, p.opts.ResultLimit), &resp)

	if p.hooks.OnResolve != nil {
		p.hooks.OnResolve(time.Since(start).Seconds(), len(resp.Data), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("tcscope.search.resolved", len(resp.Data)))
	return resp.Data, nil
}

type enrichResult struct {
	chunks  int
	failed  int
	dropped int
}

// enrich runs phase 2. Every chunk is awaited; results are merged in chunk
// order regardless of completion order.
func (p *Pipeline) enrich(ctx context.Context, L log.Logger, base []indicator.Indicator) ([]indicator.Indicator, enrichResult) {
	chunks := Chunk(base, p.opts.ChunkSize)
	results := make([][]indicator.Indicator, len(chunks))

	var failed, dropped atomic.Int32
	var g errgroup.Group
	if p.opts.MaxInFlight > 0 {
		g.SetLimit(p.opts.MaxInFlight)
	}

	for i, chunk := range chunks {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					dropped.Add(1)
					results[i] = nil
					L.Error(ctx, fmt.Errorf("panic: %v", r), "chunk task panicked, dropping chunk", "chunk", i, "size", len(chunk))
					if p.hooks.OnChunk != nil {
						p.hooks.OnChunk(len(chunk), 0, ChunkDropped)
					}
				}
			}()

			out, ok := p.fetchChunk(ctx, L, i, chunk)
			if !ok {
				failed.Add(1)
			}
			results[i] = out
			return nil
		})
	}
	_ = g.Wait()

	merged := make([]indicator.Indicator, 0, len(base))
	for _, r := range results {
		merged = append(merged, r...)
	}

	return merged, enrichResult{
		chunks:  len(chunks),
		failed:  int(failed.Load()),
		dropped: int(dropped.Load()),
	}
}

// fetchChunk returns the detailed records for chunk, or chunk itself when the
// detail request fails.
func (p *Pipeline) fetchChunk(ctx context.Context, L log.Logger, idx int, chunk []indicator.Indicator) ([]indicator.Indicator, bool) {
	ctx, span := tracer.Start(ctx, "search.chunk")
	defer span.End()
	span.SetAttributes(
		attribute.Int("tcscope.chunk.index", idx),
		attribute.Int("tcscope.chunk.size", len(chunk)),
	)

	if p.opts.ChunkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.ChunkTimeout)
		defer cancel()
	}

	start := time.Now()
	var resp indicator.ListResponse[indicator.Indicator]
	err := p.fetcher.Get(ctx, IndicatorsPath, detailParams(indicator.IDs(chunk), p.opts.ResultLimit), &resp)
	dur := time.Since(start).Seconds()

	if err != nil {
		L.Warn(ctx, "chunk enrichment failed, using undetailed records",
			"chunk", idx,
			"size", len(chunk),
			"error", err,
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if p.hooks.OnChunk != nil {
			p.hooks.OnChunk(len(chunk), dur, ChunkFallback)
		}
		return chunk, false
	}

	if p.hooks.OnChunk != nil {
		p.hooks.OnChunk(len(chunk), dur, ChunkEnriched)
	}
	return resp.Data, true
}

// Chunk splits in into consecutive slices of at most size elements.
func Chunk[T any](in []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	out := make([][]T, 0, (len(in)+size-1)/size)
	for start := 0; start < len(in); start += size {
		end := min(start+size, len(in))
		out = append(out, in[start:end:end])
	}
	return out
}
