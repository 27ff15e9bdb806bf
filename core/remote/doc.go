// Package remote is the client for the authoritative remote table service.
//
// The service exposes a rate-limited, paginated HTTP API: a table catalog,
// full-table listing with offset cursors, and single or batched
// create/update/delete calls with a fixed maximum batch size.
//
// # Error Taxonomy
//
// Failures are classified so the sync engine can decide what to do per record:
//
//   - TransientError: network faults, timeouts, 429 and 5xx. Retried here
//     with bounded exponential backoff before being surfaced.
//   - ValidationError: 400/422 payload rejections. Never retried; recorded
//     against the offending record.
//
// # Concurrency
//
// All calls share one rate limiter. BatchUpdate dispatches its chunks with
// bounded parallelism; everything else is sequential. A chunk-level failure
// is reported against every record in that chunk and never aborts the
// remaining chunks.
package remote
