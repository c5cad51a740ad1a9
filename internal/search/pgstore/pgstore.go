// Package pgstore provides a PostgreSQL implementation of search.HistoryStore.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/tcscope/internal/search"
)

var tracer = otel.Tracer("github.com/linnemanlabs/tcscope/internal/search/pgstore")

//go:embed schema.sql
var schema string

// Store persists search history in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on pool and returns a ready Store. The caller owns
// the pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const historyColumns = `id, query, query_type, outcome, status, error, total_records, group_count,
	failed_chunks, dropped_chunks, started_at, completed_at, duration_s`

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// Put inserts or replaces a history entry.
func (s *Store) Put(ctx context.Context, e *search.Entry) error {
	ctx, span := startSpan(ctx, "pgstore.Put", "UPSERT")
	defer span.End()

	var completedAt *time.Time
	if !e.CompletedAt.IsZero() {
		completedAt = &e.CompletedAt
	}

	query := `INSERT INTO search_history (` + historyColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	ON CONFLICT (id) DO UPDATE SET
		query          = EXCLUDED.query,
		query_type     = EXCLUDED.query_type,
		outcome        = EXCLUDED.outcome,
		status         = EXCLUDED.status,
		error          = EXCLUDED.error,
		total_records  = EXCLUDED.total_records,
		group_count    = EXCLUDED.group_count,
		failed_chunks  = EXCLUDED.failed_chunks,
		dropped_chunks = EXCLUDED.dropped_chunks,
		completed_at   = EXCLUDED.completed_at,
		duration_s     = EXCLUDED.duration_s`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.Query, e.QueryType, string(e.Outcome), e.Status, e.Error,
		e.TotalRecords, e.Groups, e.FailedChunks, e.DroppedChunks,
		e.StartedAt, completedAt, e.Duration,
	)
	if err != nil {
		return fail(span, fmt.Errorf("upsert search history: %w", err))
	}
	return nil
}

// Get retrieves a history entry by search ID.
func (s *Store) Get(ctx context.Context, id string) (*search.Entry, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.Get", "SELECT")
	defer span.End()

	query := `SELECT ` + historyColumns + ` FROM search_history WHERE id = $1`
	e, err := scanEntry(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fail(span, err)
	}
	return e, true, nil
}

// List returns up to limit entries, most recently started first.
func (s *Store) List(ctx context.Context, limit int) ([]*search.Entry, error) {
	ctx, span := startSpan(ctx, "pgstore.List", "SELECT")
	defer span.End()
	span.SetAttributes(attribute.Int("tcscope.history.limit", limit))

	query := `SELECT ` + historyColumns + ` FROM search_history ORDER BY started_at DESC, id DESC LIMIT $1`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query search history: %w", err))
	}
	defer rows.Close()

	out := make([]*search.Entry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fail(span, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate search history: %w", err))
	}
	return out, nil
}

// scanEntry scans a single row. pgx.ErrNoRows is returned unwrapped.
func scanEntry(row pgx.Row) (*search.Entry, error) {
	var (
		e           search.Entry
		outcome     string
		completedAt *time.Time
	)
	err := row.Scan(
		&e.ID, &e.Query, &e.QueryType, &outcome, &e.Status, &e.Error,
		&e.TotalRecords, &e.Groups, &e.FailedChunks, &e.DroppedChunks,
		&e.StartedAt, &completedAt, &e.Duration,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan: %w", err)
	}
	e.Outcome = search.Outcome(outcome)
	if completedAt != nil {
		e.CompletedAt = *completedAt
	}
	return &e, nil
}
