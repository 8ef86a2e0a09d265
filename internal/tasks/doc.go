// Package tasks runs batches of catalog searches with real-time progress reporting.
//
// # Batch Search
//
// [BatchEngine.Search] takes a list of queries and:
//   - Dispatches them to a bounded worker pool at a limited rate
//   - Renders each result set to its own file with the formatter package
//   - Writes a manifest.json summarizing every query, its file and any error
//
// A query that fails for any reason other than a lost session is recorded and the batch continues.
// A lost session ([shared.ErrTokenExpired] or [shared.ErrNotAuthenticated]) cancels the remaining
// queries since none of them can succeed.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
