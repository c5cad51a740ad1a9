package postgres

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
)

const modulePrefix = "github.com/linnemanlabs/tcscope/"

// queryInfo is stashed in the context between TraceQueryStart and TraceQueryEnd.
type queryInfo struct {
	sql     string
	args    []any
	start   time.Time
	caller  string
	handler string
}

// loggingTracer wraps another pgx.QueryTracer (e.g. otelpgx) and adds a
// structured log line for queries at or above slow.
type loggingTracer struct {
	inner   pgx.QueryTracer
	slow    time.Duration
	logArgs bool
}

// wrapQueryTracer wraps an inner tracer with structured logging.
func wrapQueryTracer(inner pgx.QueryTracer, slow time.Duration, logArgs bool) pgx.QueryTracer {
	return loggingTracer{inner: inner, slow: slow, logArgs: logArgs}
}

func (t loggingTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	qi := &queryInfo{
		sql:   data.SQL,
		args:  data.Args,
		start: time.Now(),
	}
	qi.caller, qi.handler = findDBCallerAndHandler()

	// inner tracer creates its span first so the attributes below land on it
	if t.inner != nil {
		ctx = t.inner.TraceQueryStart(ctx, conn, data)
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		if qi.caller != "" {
			span.SetAttributes(attribute.String("db.caller", qi.caller))
		}
		if qi.handler != "" {
			span.SetAttributes(attribute.String("db.handler", qi.handler))
		}
	}

	return context.WithValue(ctx, ctxKeyQuery, qi)
}

func (t loggingTracer) TraceQueryEnd(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryEndData) {
	if t.inner != nil {
		t.inner.TraceQueryEnd(ctx, conn, data)
	}

	qi, _ := ctx.Value(ctxKeyQuery).(*queryInfo)
	if qi == nil {
		return
	}
	dur := time.Since(qi.start)

	if s, ok := ReqDBStatsFromContext(ctx); ok {
		s.AddQuery(dur, data.Err)
	}

	if obs := getQueryObserver(); obs != nil {
		method, route := observeLabels(ctx)
		outcome := "ok"
		if data.Err != nil {
			outcome = "error"
		}
		obs.ObserveQuery(ctx, method, route, outcome, dur)
	}

	if data.Err == nil && dur < t.slow {
		return
	}

	fields := t.fields(qi, data, dur)
	L := log.FromContext(ctx)
	if data.Err != nil {
		L.Error(ctx, data.Err, "db query failed", fields...)
	} else {
		L.Info(ctx, "db query", fields...)
	}
}

func (t loggingTracer) fields(qi *queryInfo, data pgx.TraceQueryEndData, dur time.Duration) []any {
	fields := []any{
		"db.statement", qi.sql,
		"db.duration", dur.Seconds(),
	}
	if t.logArgs {
		fields = append(fields, "db.args", qi.args)
	}

	if tag := strings.TrimSpace(data.CommandTag.String()); tag != "" {
		if op, _, _ := strings.Cut(tag, " "); op != "" {
			fields = append(fields, "db.operation.name", strings.ToUpper(op))
		}
		fields = append(fields, "pg.command_tag", tag, "db.rows", data.CommandTag.RowsAffected())
	}

	if qi.caller != "" {
		fields = append(fields, "db.caller", qi.caller)
	}
	if qi.handler != "" {
		fields = append(fields, "db.handler", qi.handler)
	}

	var pgErr *pgconn.PgError
	if errors.As(data.Err, &pgErr) {
		fields = append(fields,
			"db.error_code", pgErr.Code,
			"db.error_constraint", pgErr.ConstraintName,
		)
	}
	return fields
}

// findDBCallerAndHandler walks the stack to find:
//   - caller: the store function actually issuing the query
//   - handler: the next application frame above it (service or handler)
func findDBCallerAndHandler() (caller, handler string) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		fr, more := frames.Next()
		fn := fr.Function

		if isApplicationFrame(fn) {
			if caller == "" {
				caller = shortenFuncName(fn)
			} else if shortenFuncName(fn) != caller {
				return caller, shortenFuncName(fn)
			}
		}
		if !more {
			return caller, handler
		}
	}
}

// isApplicationFrame reports whether fn belongs to this module and is not
// part of the database plumbing itself.
func isApplicationFrame(fn string) bool {
	if !strings.HasPrefix(fn, modulePrefix) {
		return false
	}
	return !strings.HasPrefix(fn, modulePrefix+"internal/postgres.")
}

func shortenFuncName(fn string) string {
	// trim package path
	if i := strings.LastIndex(fn, "/"); i >= 0 && i+1 < len(fn) {
		fn = fn[i+1:]
	}
	// trim package name, keep receiver + method
	if dot := strings.Index(fn, "."); dot >= 0 && dot+1 < len(fn) {
		fn = fn[dot+1:]
	}
	return fn
}
