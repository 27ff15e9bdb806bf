// Package cases implements the test case mirroring feature.
//
// A case record lives in two places: the local relational mirror and a
// remote rate-limited table service, one table per partition. This package
// exposes the HTTP surface over both:
//
//   - Record CRUD against the local mirror. Local edits go pending and are
//     pushed outward by the next full update.
//   - Sync triggers for the init, diff, and full-update reconciliation
//     modes, returning the same summaries as the CLI.
//   - Diff reporting and decision-driven resolution, per record or per
//     field.
//   - Attachment upload and download per record, backed by object storage
//     under "attachments/<partition>/<natural-key>/<filename>".
//
// # Components
//
//   - Service: resolves the partition catalog, delegates reconciliation to
//     the sync engine, and owns attachment storage.
//   - Handler: exposes the HTTP endpoints.
//   - Feature: registers the feature with the application loader.
package cases
