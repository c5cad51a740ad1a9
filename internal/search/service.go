package search

import (
	"context"
	"strings"
	"sync"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/tcscope/internal/aggregate"
)

// Notifier delivers alerts for high-rated groups found by a search.
type Notifier interface {
	NotifyHits(ctx context.Context, snap *Snapshot, hits []aggregate.Group) error
}

// Briefer produces a short analyst summary of a completed search.
type Briefer interface {
	Brief(ctx context.Context, snap *Snapshot) (string, error)
}

// Request is a search submission.
type Request struct {
	Query string `json:"query"`
	Brief bool   `json:"brief"`
}

// Option configures a Service.
type Option func(*Service)

// WithHistory persists finished searches to h.
func WithHistory(h HistoryStore) Option {
	return func(s *Service) { s.history = h }
}

// WithNotifier sends groups rated at or above minRating to n. A zero
// minRating disables notifications.
func WithNotifier(n Notifier, minRating float64) Option {
	return func(s *Service) {
		s.notifier = n
		s.alertRating = minRating
	}
}

// WithBriefer enables analyst briefs on request.
func WithBriefer(b Briefer) Option {
	return func(s *Service) { s.briefer = b }
}

// WithMetrics records history and notification failures on m.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service is the business boundary for search operations. Searches run one
// at a time; each publishes a fresh snapshot that replaces the last.
type Service struct {
	mu          sync.Mutex
	pipeline    *Pipeline
	state       *State
	history     HistoryStore
	notifier    Notifier
	alertRating float64
	briefer     Briefer
	metrics     *Metrics
	logger      log.Logger

	// notifications in flight, for tests and shutdown
	wg sync.WaitGroup
}

// NewService creates a new search service.
func NewService(pipeline *Pipeline, logger log.Logger, opts ...Option) *Service {
	if pipeline == nil {
		panic(xerrors.New("pipeline is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	s := &Service{
		pipeline: pipeline,
		state:    NewState(),
		logger:   logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Search runs a search for req.Query. An empty or whitespace-only query is
// a no-op: nothing is published and ok is false.
//
// The search outlives ctx cancellation; only the pipeline's SearchTimeout
// bounds it. Values carried by ctx (logger, trace) are kept.
func (s *Service) Search(ctx context.Context, req Request) (snap *Snapshot, ok bool) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, false
	}
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	id := ulid.Make().String()
	L := s.logger.With("search_id", id)
	L.Info(ctx, "search started", "query", query)

	s.state.begin(id, query)
	snap = s.pipeline.Run(ctx, id, query)

	if req.Brief && s.briefer != nil && snap.Outcome == OutcomeSuccess {
		brief, err := s.briefer.Brief(ctx, snap)
		if err != nil {
			L.Error(ctx, err, "brief generation failed")
		} else {
			snap.Brief = brief
		}
	}

	s.state.Publish(snap)

	if s.history != nil {
		if err := s.history.Put(ctx, NewEntry(snap)); err != nil {
			L.Error(ctx, err, "failed to persist search history")
			s.countHistoryError("put")
		}
	}

	if s.notifier != nil && s.alertRating > 0 && snap.Outcome == OutcomeSuccess {
		if hits := snap.Hits(s.alertRating); len(hits) > 0 {
			s.wg.Add(1)
			go s.notify(ctx, L, snap, hits)
		}
	}

	return snap, true
}

func (s *Service) notify(ctx context.Context, L log.Logger, snap *Snapshot, hits []aggregate.Group) {
	defer s.wg.Done()
	result := "sent"
	if err := s.notifier.NotifyHits(ctx, snap, hits); err != nil {
		L.Error(ctx, err, "hit notification failed", "hits", len(hits))
		result = "error"
	}
	if s.metrics != nil {
		s.metrics.NotifyTotal.WithLabelValues(result).Inc()
	}
}

// Wait blocks until background notifications have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Current returns the most recently published snapshot.
func (s *Service) Current() (*Snapshot, bool) {
	return s.state.Current()
}

// History lists finished searches, most recent first.
func (s *Service) History(ctx context.Context, limit int) ([]*Entry, error) {
	if s.history == nil {
		return []*Entry{}, nil
	}
	out, err := s.history.List(ctx, ClampLimit(limit))
	if err != nil {
		s.countHistoryError("list")
		return nil, err
	}
	return out, nil
}

// HistoryEntry retrieves one finished search by ID.
func (s *Service) HistoryEntry(ctx context.Context, id string) (*Entry, bool, error) {
	if s.history == nil {
		return nil, false, nil
	}
	e, ok, err := s.history.Get(ctx, id)
	if err != nil {
		s.countHistoryError("get")
	}
	return e, ok, err
}

func (s *Service) countHistoryError(op string) {
	if s.metrics != nil {
		s.metrics.HistoryErrors.WithLabelValues(op).Inc()
	}
}
