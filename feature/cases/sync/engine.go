package sync

import (
	"context"
	"fmt"
	"time"

	"case-mirror/core/remote"
	"case-mirror/feature/cases/models"
	"case-mirror/feature/cases/store"

	"go.uber.org/zap"
)

// Options tunes an Engine. Batch sizing, concurrency, and rate limiting
// live in the remote client, not here.
type Options struct {
	// KeyField is the remote field holding the natural key.
	KeyField string
}

func (o Options) withDefaults() Options {
	if o.KeyField == "" {
		o.KeyField = "Key"
	}
	return o
}

// Engine reconciles the local mirror of one partition with its remote table.
//
// Callers must serialize runs per partition: the engine does not guard
// against concurrent runs racing on the same local rows.
type Engine struct {
	store  store.Store
	source remote.Source
	logger *zap.Logger
	opts   Options
}

// NewEngine creates a reconciliation engine.
func NewEngine(st store.Store, source remote.Source, logger *zap.Logger, opts Options) *Engine {
	return &Engine{
		store:  st,
		source: source,
		logger: logger,
		opts:   opts.withDefaults(),
	}
}

// InitSync bootstraps the local mirror from the remote table: every
// deduplicated remote record is upserted, then local records absent from
// the remote set are pruned. After a successful run the local partition
// mirror exactly equals the deduplicated remote set.
//
// Upsert and prune run in one transaction so a failure never leaves a
// half-pruned mirror.
func (e *Engine) InitSync(ctx context.Context, partition, tableRef string) (*SyncResult, error) {
	res := newSyncResult(partition, ModeInit)

	canonical, err := e.fetchRemote(ctx, partition, tableRef, res)
	if err != nil {
		return res.finish(), err
	}

	err = e.store.Transaction(ctx, func(tx store.Store) error {
		keep := make([]string, 0, len(canonical))
		for i := range canonical {
			rec := &canonical[i]
			keep = append(keep, rec.NaturalKey)
			if err := e.upsertFromRemote(ctx, tx, rec, res, true); err != nil {
				return err
			}
		}

		deleted, err := tx.DeleteWhereNotIn(ctx, partition, keep)
		if err != nil {
			return err
		}
		res.Deleted = int(deleted)
		return nil
	})
	if err != nil {
		return res.finish(), fmt.Errorf("init sync of partition %s failed: %w", partition, err)
	}

	e.logger.Info("Init sync completed",
		zap.String("partition", partition),
		zap.Int("remote_total", res.RemoteTotal),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("deleted", res.Deleted),
	)
	return res.finish(), nil
}

// DiffSync merges remote changes into the local mirror without deleting
// anything: the overlap is created/updated, local-only records are marked
// pending for a later push, and local edits are never overwritten.
func (e *Engine) DiffSync(ctx context.Context, partition, tableRef string) (*SyncResult, error) {
	res := newSyncResult(partition, ModeDiff)

	canonical, err := e.fetchRemote(ctx, partition, tableRef, res)
	if err != nil {
		return res.finish(), err
	}

	remoteKeys := make(map[string]struct{}, len(canonical))

	// Pass 1: remote -> local, no prune, local display timestamps stay
	// local-authoritative.
	for i := range canonical {
		rec := &canonical[i]
		remoteKeys[rec.NaturalKey] = struct{}{}
		if err := e.upsertFromRemote(ctx, e.store, rec, res, false); err != nil {
			res.Errors = append(res.Errors, RecordError{
				NaturalKey: rec.NaturalKey, Op: "upsert", Message: err.Error(),
			})
		}
	}

	// Pass 2: local-only records become push candidates, never deletions.
	locals, err := e.store.ListByPartition(ctx, partition)
	if err != nil {
		return res.finish(), fmt.Errorf("diff sync of partition %s failed: %w", partition, err)
	}
	for i := range locals {
		rec := &locals[i]
		if _, onRemote := remoteKeys[rec.NaturalKey]; onRemote {
			continue
		}
		if rec.SyncState == models.StatePending {
			res.PendingMarked++
			continue
		}
		rec.SyncState = models.StatePending
		rec.UpdatedAt = time.Now()
		if err := e.store.Upsert(ctx, rec); err != nil {
			res.Errors = append(res.Errors, RecordError{
				NaturalKey: rec.NaturalKey, Op: "mark-pending", Message: err.Error(),
			})
			continue
		}
		res.PendingMarked++
	}

	e.logger.Info("Diff sync completed",
		zap.String("partition", partition),
		zap.Int("remote_total", res.RemoteTotal),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("pending_marked", res.PendingMarked),
		zap.Int("pending_kept", res.PendingKept),
	)
	return res.finish(), nil
}

// fetchRemote drains the remote listing, converts it, and deduplicates it.
// The listing is fully drained before any comparison so the engine never
// diffs against a half-seen remote snapshot.
func (e *Engine) fetchRemote(ctx context.Context, partition, tableRef string, res *SyncResult) ([]models.Record, error) {
	raws, err := e.source.ListAll(ctx, tableRef)
	if err != nil {
		res.Errors = append(res.Errors, RecordError{Op: "list", Message: err.Error()})
		return nil, fmt.Errorf("failed to list remote records of %s: %w", tableRef, err)
	}
	res.RemoteTotal = len(raws)

	records := make([]models.Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := FromRaw(partition, e.opts.KeyField, raw)
		if err != nil {
			res.Errors = append(res.Errors, RecordError{
				RemoteID: raw.ID, Op: "convert", Message: err.Error(),
			})
			continue
		}
		records = append(records, rec)
	}

	canonical, removed := ResolveAll(records)
	res.Deduplicated = len(canonical)
	if len(removed) > 0 {
		e.logger.Warn("Remote duplicates collapsed",
			zap.String("partition", partition),
			zap.Int("removed", len(removed)),
		)
	}
	return canonical, nil
}

// upsertFromRemote writes one canonical remote record into the local store.
// copyDisplayTimestamps is true only for InitSync, which adopts the remote
// created/modified times as the local display timestamps.
func (e *Engine) upsertFromRemote(ctx context.Context, st store.Store, incoming *models.Record, res *SyncResult, copyDisplayTimestamps bool) error {
	existing, err := st.FindByNaturalKey(ctx, incoming.Partition, incoming.NaturalKey)
	if err != nil {
		return err
	}

	sum := Checksum(incoming.Fields)

	if existing == nil {
		incoming.Checksum = sum
		incoming.SyncState = models.StateSynced
		incoming.LocalVersion = 1
		if w := e.checkRemoteID(ctx, st, incoming, nil); w != nil {
			res.Warnings = append(res.Warnings, *w)
		}
		if copyDisplayTimestamps {
			incoming.CreatedAt = tsOrZero(incoming.RemoteCreatedAt)
			incoming.UpdatedAt = tsOrZero(incoming.RemoteModifiedAt)
		}
		if err := st.Upsert(ctx, incoming); err != nil {
			return err
		}
		res.Inserted++
		return nil
	}

	// Adopt the remote id when the local record has none yet.
	if existing.RemoteID == nil && incoming.RemoteID != nil {
		if w := e.checkRemoteID(ctx, st, incoming, existing); w != nil {
			res.Warnings = append(res.Warnings, *w)
		}
		existing.RemoteID = incoming.RemoteID
	}
	existing.RemoteCreatedAt = incoming.RemoteCreatedAt
	existing.RemoteModifiedAt = incoming.RemoteModifiedAt

	if existing.Checksum == sum {
		// Content matches the remote side; confirm the synced state without
		// touching fields or version.
		existing.SyncState = models.StateSynced
		if err := st.Upsert(ctx, existing); err != nil {
			return err
		}
		res.Unchanged++
		return nil
	}

	if !copyDisplayTimestamps && existing.SyncState == models.StatePending {
		// Incremental pull keeps local edits: the record stays pending and
		// the divergence surfaces through ComputeDiff.
		res.PendingKept++
		return nil
	}

	existing.Fields = incoming.Fields
	existing.Checksum = sum
	existing.SyncState = models.StateSynced
	existing.LocalVersion++
	if copyDisplayTimestamps {
		existing.CreatedAt = tsOrZero(incoming.RemoteCreatedAt)
		existing.UpdatedAt = tsOrZero(incoming.RemoteModifiedAt)
	} else {
		existing.UpdatedAt = time.Now()
	}
	if err := st.Upsert(ctx, existing); err != nil {
		return err
	}
	res.Updated++
	return nil
}

// checkRemoteID enforces the global uniqueness invariant on RemoteID: if any
// other local record, in any partition, already references the id, the
// assignment is dropped and the returned warning describes the conflict.
// Every code path that assigns a RemoteID must pass through here; a nil
// return means the assignment stands. The run never hard-fails on this
// precheck.
func (e *Engine) checkRemoteID(ctx context.Context, st store.Store, incoming *models.Record, self *models.Record) *Warning {
	if incoming.RemoteID == nil {
		return nil
	}

	holder, err := st.FindByRemoteID(ctx, *incoming.RemoteID)
	if err != nil {
		e.logger.Warn("RemoteID precheck lookup failed", zap.Error(err))
		incoming.RemoteID = nil
		return nil
	}
	if holder == nil {
		return nil
	}
	if self != nil && holder.ID == self.ID {
		return nil
	}
	if holder.Partition == incoming.Partition && holder.NaturalKey == incoming.NaturalKey {
		return nil
	}

	msg := fmt.Sprintf("remote id %s already held by %s/%s", *incoming.RemoteID, holder.Partition, holder.NaturalKey)
	e.logger.Warn("RemoteID uniqueness precheck rejected assignment",
		zap.String("partition", incoming.Partition),
		zap.String("natural_key", incoming.NaturalKey),
		zap.String("remote_id", *incoming.RemoteID),
		zap.String("holder_partition", holder.Partition),
		zap.String("holder_key", holder.NaturalKey),
	)
	incoming.RemoteID = nil
	return &Warning{
		Code:       WarnRemoteIDConflict,
		NaturalKey: incoming.NaturalKey,
		Message:    msg,
	}
}
