// Package sync implements the reconciliation engine that keeps the local
// record mirror and the remote table of a partition in agreement.
//
// # Operations
//
//   - InitSync: bootstrap the local mirror from the remote table. Upserts
//     every deduplicated remote record and prunes local records absent
//     remotely, all in one transaction.
//   - DiffSync: incremental pull. Merges remote changes in, never deletes,
//     marks local-only records pending and keeps local edits intact.
//   - ComputeDiff / ApplyDiff: read-only field-level comparison plus
//     explicit, decision-driven resolution of the reported differences.
//   - FullUpdate: push the local mirror outward in rate-limited batches,
//     with optional dry-run and remote pruning.
//
// # Building blocks
//
//   - Normalize / Checksum: canonical encoding and digest of record fields,
//     excluding volatile bookkeeping fields, so equality checks are cheap
//     and order-independent.
//   - Resolve / ResolveAll: deterministic collapse of duplicate natural
//     keys, newest remote modification first.
//   - FromRaw / PayloadFields: conversion between the remote wire shape and
//     the local record model.
package sync
