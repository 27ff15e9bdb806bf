package sync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"case-mirror/core/remote"
	"case-mirror/feature/cases/models"

	"go.uber.org/zap"
)

// PushOptions tunes a FullUpdate run.
type PushOptions struct {
	// DryRun reports what would be pushed without touching the remote side
	// or the local sync state.
	DryRun bool
	// Prune deletes remote records that have no local counterpart.
	Prune bool
	// Progress, when set, is called after each record is resolved.
	Progress func(done, total int)
}

// FullUpdate pushes the local partition mirror outward: records without a
// remote id are created, records with local edits are updated, and records
// already in sync are skipped. With Prune enabled, remote records absent
// locally are deleted afterwards.
//
// Batch dispatch, chunking, and rate limiting live in the remote client;
// this method only decides what goes into each batch and records outcomes.
func (e *Engine) FullUpdate(ctx context.Context, partition, tableRef string, opts PushOptions) (*PushResult, error) {
	res := newPushResult(partition, opts.DryRun)

	locals, err := e.store.ListByPartition(ctx, partition)
	if err != nil {
		return res.finish(), fmt.Errorf("full update of partition %s failed: %w", partition, err)
	}
	res.Total = len(locals)

	var creates, updates []*models.Record
	for i := range locals {
		rec := &locals[i]
		switch {
		case rec.RemoteID == nil:
			creates = append(creates, rec)
		case rec.SyncState == models.StateSynced:
			res.Unchanged++
			e.step(opts, res)
		default:
			updates = append(updates, rec)
		}
	}

	if opts.DryRun {
		res.Created = len(creates)
		res.Updated = len(updates)
		if opts.Prune {
			orphans, err := e.remoteOrphans(ctx, partition, tableRef, locals)
			if err != nil {
				res.Errors = append(res.Errors, RecordError{Op: "prune", Message: err.Error()})
			} else {
				res.Pruned = len(orphans)
			}
		}
		return res.finish(), nil
	}

	e.pushCreates(ctx, tableRef, creates, opts, res)
	e.pushUpdates(ctx, tableRef, updates, opts, res)

	if opts.Prune {
		e.pruneRemote(ctx, partition, tableRef, opts, res)
	}

	e.logger.Info("Full update completed",
		zap.String("partition", partition),
		zap.Int("total", res.Total),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("pruned", res.Pruned),
		zap.Int("backfilled", res.Backfilled),
		zap.Int("errors", len(res.Errors)),
	)
	return res.finish(), nil
}

func (e *Engine) pushCreates(ctx context.Context, tableRef string, creates []*models.Record, opts PushOptions, res *PushResult) {
	if len(creates) == 0 {
		return
	}

	payloads := make([]map[string]any, len(creates))
	for i, rec := range creates {
		payloads[i] = PayloadFields(rec, e.opts.KeyField)
	}

	ids, errs := e.source.BatchCreate(ctx, tableRef, payloads)

	var missing []*models.Record
	for i, rec := range creates {
		if errs[i] != nil {
			res.Errors = append(res.Errors, RecordError{
				NaturalKey: rec.NaturalKey, Op: "create", Message: errs[i].Error(),
			})
			e.step(opts, res)
			continue
		}
		if ids[i] == "" {
			// Created on the remote side but the response carried no id for
			// this record. Recover it by re-reading the remote set.
			missing = append(missing, rec)
			continue
		}
		if err := e.finalizePush(ctx, rec, ids[i], res); err != nil {
			res.Errors = append(res.Errors, RecordError{
				NaturalKey: rec.NaturalKey, RemoteID: ids[i], Op: "create", Message: err.Error(),
			})
			e.step(opts, res)
			continue
		}
		res.Created++
		e.step(opts, res)
	}

	if len(missing) > 0 {
		e.backfillRemoteIDs(ctx, tableRef, missing, opts, res)
	}
}

// backfillRemoteIDs re-reads the remote table and matches records whose
// create succeeded without a usable id in the response.
func (e *Engine) backfillRemoteIDs(ctx context.Context, tableRef string, missing []*models.Record, opts PushOptions, res *PushResult) {
	if len(missing) == 0 {
		return
	}
	partition := missing[0].Partition

	remoteByKey, err := e.snapshotRemote(ctx, partition, tableRef)
	if err != nil {
		for _, rec := range missing {
			res.Errors = append(res.Errors, RecordError{
				NaturalKey: rec.NaturalKey, Op: "backfill", Message: err.Error(),
			})
			e.step(opts, res)
		}
		return
	}

	for _, rec := range missing {
		rem, ok := remoteByKey[rec.NaturalKey]
		if !ok || rem.RemoteID == nil {
			res.Errors = append(res.Errors, RecordError{
				NaturalKey: rec.NaturalKey, Op: "backfill",
				Message: "created record not found on remote re-read",
			})
			e.step(opts, res)
			continue
		}
		if err := e.finalizePush(ctx, rec, *rem.RemoteID, res); err != nil {
			res.Errors = append(res.Errors, RecordError{
				NaturalKey: rec.NaturalKey, RemoteID: *rem.RemoteID, Op: "backfill", Message: err.Error(),
			})
			e.step(opts, res)
			continue
		}
		res.Created++
		res.Backfilled++
		e.step(opts, res)
	}
}

func (e *Engine) pushUpdates(ctx context.Context, tableRef string, updates []*models.Record, opts PushOptions, res *PushResult) {
	if len(updates) == 0 {
		return
	}

	batch := make([]remote.RecordUpdate, len(updates))
	for i, rec := range updates {
		batch[i] = remote.RecordUpdate{
			ID:     *rec.RemoteID,
			Fields: PayloadFields(rec, e.opts.KeyField),
		}
	}

	_, errs := e.source.BatchUpdate(ctx, tableRef, batch)

	for i, rec := range updates {
		if errs[i] != nil {
			res.Errors = append(res.Errors, RecordError{
				NaturalKey: rec.NaturalKey, RemoteID: *rec.RemoteID, Op: "update", Message: errs[i].Error(),
			})
			e.step(opts, res)
			continue
		}
		if err := e.finalizePush(ctx, rec, *rec.RemoteID, res); err != nil {
			res.Errors = append(res.Errors, RecordError{
				NaturalKey: rec.NaturalKey, RemoteID: *rec.RemoteID, Op: "update", Message: err.Error(),
			})
			e.step(opts, res)
			continue
		}
		res.Updated++
		e.step(opts, res)
	}
}

// finalizePush records a confirmed remote write on the local record. A
// remote id assigned here passes the uniqueness precheck first; a conflict
// drops the assignment and records a warning.
func (e *Engine) finalizePush(ctx context.Context, rec *models.Record, remoteID string, res *PushResult) error {
	now := time.Now()
	if rec.RemoteID == nil {
		rec.RemoteID = &remoteID
		if w := e.checkRemoteID(ctx, e.store, rec, rec); w != nil {
			res.Warnings = append(res.Warnings, *w)
		}
	}
	rec.Checksum = Checksum(rec.Fields)
	rec.SyncState = models.StateSynced
	rec.LastSyncedAt = &now
	rec.UpdatedAt = now
	return e.store.Upsert(ctx, rec)
}

func (e *Engine) pruneRemote(ctx context.Context, partition, tableRef string, opts PushOptions, res *PushResult) {
	locals, err := e.store.ListByPartition(ctx, partition)
	if err != nil {
		res.Errors = append(res.Errors, RecordError{Op: "prune", Message: err.Error()})
		return
	}
	orphans, err := e.remoteOrphans(ctx, partition, tableRef, locals)
	if err != nil {
		res.Errors = append(res.Errors, RecordError{Op: "prune", Message: err.Error()})
		return
	}
	if len(orphans) == 0 {
		return
	}

	deleted, errs := e.source.BatchDelete(ctx, tableRef, orphans)
	res.Pruned = deleted
	for i, err := range errs {
		if err != nil {
			res.Errors = append(res.Errors, RecordError{
				RemoteID: orphans[i], Op: "prune", Message: err.Error(),
			})
		}
	}
}

// remoteOrphans returns the remote ids of records whose natural key has no
// local counterpart.
func (e *Engine) remoteOrphans(ctx context.Context, partition, tableRef string, locals []models.Record) ([]string, error) {
	localKeys := make(map[string]struct{}, len(locals))
	for i := range locals {
		localKeys[locals[i].NaturalKey] = struct{}{}
	}

	remoteByKey, err := e.snapshotRemote(ctx, partition, tableRef)
	if err != nil {
		return nil, err
	}

	var orphans []string
	for key, rem := range remoteByKey {
		if _, ok := localKeys[key]; ok {
			continue
		}
		if rem.RemoteID != nil {
			orphans = append(orphans, *rem.RemoteID)
		}
	}
	sort.Strings(orphans)
	return orphans, nil
}

func (e *Engine) step(opts PushOptions, res *PushResult) {
	if opts.Progress != nil {
		done := res.Created + res.Updated + res.Unchanged + len(res.Errors)
		opts.Progress(done, res.Total)
	}
}
