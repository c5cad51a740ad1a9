// Package search provides the business boundary for tcscope's indicator search.
// It defines the Pipeline (two-phase fetch with per-chunk fallback), the Service
// (input guard, state publication, history, notifications), the HistoryStore
// interface and the Snapshot published to API clients.
package search
