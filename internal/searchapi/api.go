// Package searchapi exposes the search service over HTTP.
package searchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/tcscope/internal/search"
)

// maxRequestBytes bounds POST bodies.
const maxRequestBytes = 64 << 10

// SearchService defines the business operations searchapi needs.
type SearchService interface {
	Search(ctx context.Context, req search.Request) (*search.Snapshot, bool)
	Current() (*search.Snapshot, bool)
	History(ctx context.Context, limit int) ([]*search.Entry, error)
	HistoryEntry(ctx context.Context, id string) (*search.Entry, bool, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    SearchService
}

// New creates a new API handler.
func New(logger log.Logger, svc SearchService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("search service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", a.handleSearch)
		r.Get("/search/current", a.handleCurrent)
		r.Get("/history", a.handleListHistory)
		r.Get("/history/{id}", a.handleGetHistory)
	})
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	snap, ok := a.svc.Search(r.Context(), req)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("tcscope.search.id", snap.ID),
		attribute.String("tcscope.search.outcome", string(snap.Outcome)),
		attribute.Int("tcscope.search.records", snap.TotalRecords),
	)

	writeJSON(w, http.StatusOK, snap)
}

func (a *API) handleCurrent(w http.ResponseWriter, _ *http.Request) {
	snap, ok := a.svc.Current()
	if !ok {
		writeError(w, http.StatusNotFound, "no search has run")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit := search.DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := a.svc.History(r.Context(), limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to list search history")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("tcscope.search.id", id))

	entry, ok, err := a.svc.HistoryEntry(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get search history", "id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
