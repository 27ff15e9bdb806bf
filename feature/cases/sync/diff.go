package sync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"case-mirror/feature/cases/models"

	"go.uber.org/zap"
)

// ComputeDiff compares the local partition mirror against the live remote
// table without modifying either side. Volatile fields are excluded from
// the comparison, and linked-record fields compare by rendered value so a
// link and its display text count as equal.
func (e *Engine) ComputeDiff(ctx context.Context, partition, tableRef string) (*DiffReport, error) {
	remoteByKey, err := e.snapshotRemote(ctx, partition, tableRef)
	if err != nil {
		return nil, err
	}
	localByKey, err := e.snapshotLocal(ctx, partition)
	if err != nil {
		return nil, err
	}
	return buildReport(partition, localByKey, remoteByKey), nil
}

// snapshotRemote drains the remote table into deduplicated records keyed by
// natural key.
func (e *Engine) snapshotRemote(ctx context.Context, partition, tableRef string) (map[string]*models.Record, error) {
	raws, err := e.source.ListAll(ctx, tableRef)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote records of %s: %w", tableRef, err)
	}

	records := make([]models.Record, 0, len(raws))
	for _, raw := range raws {
		rec, err := FromRaw(partition, e.opts.KeyField, raw)
		if err != nil {
			e.logger.Warn("Skipping malformed remote record in diff",
				zap.String("remote_id", raw.ID), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	canonical, _ := ResolveAll(records)

	byKey := make(map[string]*models.Record, len(canonical))
	for i := range canonical {
		byKey[canonical[i].NaturalKey] = &canonical[i]
	}
	return byKey, nil
}

func (e *Engine) snapshotLocal(ctx context.Context, partition string) (map[string]*models.Record, error) {
	locals, err := e.store.ListByPartition(ctx, partition)
	if err != nil {
		return nil, fmt.Errorf("failed to list local partition %s: %w", partition, err)
	}
	byKey := make(map[string]*models.Record, len(locals))
	for i := range locals {
		byKey[locals[i].NaturalKey] = &locals[i]
	}
	return byKey, nil
}

func buildReport(partition string, localByKey, remoteByKey map[string]*models.Record) *DiffReport {
	report := &DiffReport{
		Partition:  partition,
		OnlyLocal:  []string{},
		OnlyRemote: []string{},
		Both:       []DiffEntry{},
	}

	keys := make(map[string]struct{}, len(localByKey)+len(remoteByKey))
	for k := range localByKey {
		keys[k] = struct{}{}
	}
	for k := range remoteByKey {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, key := range sorted {
		local, inLocal := localByKey[key]
		rem, inRemote := remoteByKey[key]
		switch {
		case inLocal && !inRemote:
			report.OnlyLocal = append(report.OnlyLocal, key)
		case !inLocal && inRemote:
			report.OnlyRemote = append(report.OnlyRemote, key)
		default:
			report.Both = append(report.Both, diffEntry(local, rem))
		}
	}
	return report
}

func diffEntry(local, rem *models.Record) DiffEntry {
	entry := DiffEntry{NaturalKey: local.NaturalKey, Fields: []FieldDiff{}}
	if rem.RemoteID != nil {
		entry.RemoteID = *rem.RemoteID
	} else if local.RemoteID != nil {
		entry.RemoteID = *local.RemoteID
	}

	names := make(map[string]struct{}, len(local.Fields)+len(rem.Fields))
	for name := range local.Fields {
		names[name] = struct{}{}
	}
	for name := range rem.Fields {
		names[name] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		if IsVolatileField(name) {
			continue
		}
		lv, inLocal := local.Fields[name]
		rv, inRemote := rem.Fields[name]

		fd := FieldDiff{Field: name, InLocal: inLocal, InRemote: inRemote}
		if inLocal {
			fd.Local = lv.Render()
		}
		if inRemote {
			fd.Remote = rv.Render()
		}
		if inLocal != inRemote {
			fd.Different = true
		} else {
			fd.Different = fd.Local != fd.Remote
		}
		if fd.Different {
			entry.HasDifferences = true
		}
		entry.Fields = append(entry.Fields, fd)
	}
	return entry
}

// ApplyDiff resolves differences between the two sides according to the
// given decisions, keyed by natural key. A whole-record decision copies one
// side over the other; a per-field decision merges field by field. Keys
// without a decision are left untouched.
//
// Records missing on one side are created there when the decision picks the
// side that has them. The remote table is listed once per call, so all
// decisions resolve against the same snapshot.
func (e *Engine) ApplyDiff(ctx context.Context, partition, tableRef string, decisions map[string]Decision) (*ApplyResult, error) {
	res := newApplyResult(partition)

	remoteByKey, err := e.snapshotRemote(ctx, partition, tableRef)
	if err != nil {
		return res.finish(), err
	}

	keys := make([]string, 0, len(decisions))
	for key := range decisions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		decision := decisions[key]
		rem := remoteByKey[key]

		local, err := e.store.FindByNaturalKey(ctx, partition, key)
		if err != nil {
			res.Errors = append(res.Errors, RecordError{NaturalKey: key, Op: "apply", Message: err.Error()})
			continue
		}

		switch {
		case decision.Source == PickLocal:
			if local == nil {
				res.Errors = append(res.Errors, RecordError{
					NaturalKey: key, Op: "apply", Message: "record not found locally",
				})
				continue
			}
			if rem == nil {
				e.createRemote(ctx, tableRef, local, res)
				continue
			}
			e.pushLocal(ctx, tableRef, local, nil, res)
		case decision.Source == PickRemote:
			if rem == nil {
				res.Errors = append(res.Errors, RecordError{
					NaturalKey: key, Op: "apply", Message: "record not found on remote",
				})
				continue
			}
			if local == nil {
				e.pullRemoteOnly(ctx, rem, res)
				continue
			}
			e.pullRemote(ctx, local, rem, res)
		case len(decision.Fields) > 0:
			if local == nil || rem == nil {
				res.Errors = append(res.Errors, RecordError{
					NaturalKey: key, Op: "apply",
					Message: "per-field decision requires the record on both sides",
				})
				continue
			}
			e.applyFieldDecision(ctx, tableRef, local, rem, decision.Fields, res)
		default:
			res.Errors = append(res.Errors, RecordError{
				NaturalKey: key, Op: "apply", Message: "decision has neither source nor fields",
			})
		}
	}
	return res.finish(), nil
}

// pushLocal overwrites the remote record with the local one. When fieldNames
// is non-empty only those fields are sent. A record without a remote id is
// created remotely with its full payload instead; the next sync collapses
// any resulting per-key duplicate through the dedup resolver.
func (e *Engine) pushLocal(ctx context.Context, tableRef string, rec *models.Record, fieldNames []string, res *ApplyResult) {
	if rec.RemoteID == nil {
		e.createRemote(ctx, tableRef, rec, res)
		return
	}

	var payload map[string]any
	if len(fieldNames) > 0 {
		payload = PartialPayload(rec, e.opts.KeyField, fieldNames)
	} else {
		payload = PayloadFields(rec, e.opts.KeyField)
	}
	if err := e.source.Update(ctx, tableRef, *rec.RemoteID, payload); err != nil {
		res.Errors = append(res.Errors, RecordError{
			NaturalKey: rec.NaturalKey, RemoteID: *rec.RemoteID, Op: "push", Message: err.Error(),
		})
		return
	}

	now := time.Now()
	rec.SyncState = models.StateSynced
	rec.LastSyncedAt = &now
	rec.UpdatedAt = now
	if err := e.store.Upsert(ctx, rec); err != nil {
		res.Errors = append(res.Errors, RecordError{NaturalKey: rec.NaturalKey, Op: "push", Message: err.Error()})
		return
	}
	res.AppliedRemote++
}

// pullRemote overwrites the local record with the remote one.
func (e *Engine) pullRemote(ctx context.Context, rec, rem *models.Record, res *ApplyResult) {
	rec.Fields = rem.Fields
	rec.Checksum = Checksum(rem.Fields)
	rec.SyncState = models.StateSynced
	rec.LocalVersion++
	rec.RemoteCreatedAt = rem.RemoteCreatedAt
	rec.RemoteModifiedAt = rem.RemoteModifiedAt
	if rec.RemoteID == nil {
		rec.RemoteID = rem.RemoteID
		if w := e.checkRemoteID(ctx, e.store, rec, rec); w != nil {
			res.Warnings = append(res.Warnings, *w)
		}
	}
	rec.UpdatedAt = time.Now()
	if err := e.store.Upsert(ctx, rec); err != nil {
		res.Errors = append(res.Errors, RecordError{NaturalKey: rec.NaturalKey, Op: "pull", Message: err.Error()})
		return
	}
	res.AppliedLocal++
}

// pullRemoteOnly creates a local record from a remote-only one.
func (e *Engine) pullRemoteOnly(ctx context.Context, rem *models.Record, res *ApplyResult) {
	if w := e.checkRemoteID(ctx, e.store, rem, nil); w != nil {
		res.Warnings = append(res.Warnings, *w)
	}
	rem.Checksum = Checksum(rem.Fields)
	rem.SyncState = models.StateSynced
	rem.LocalVersion = 1
	if err := e.store.Upsert(ctx, rem); err != nil {
		res.Errors = append(res.Errors, RecordError{NaturalKey: rem.NaturalKey, Op: "pull", Message: err.Error()})
		return
	}
	res.CreatedLocal++
}

// createRemote creates a remote record from a local one and adopts the
// returned id after the uniqueness precheck.
func (e *Engine) createRemote(ctx context.Context, tableRef string, rec *models.Record, res *ApplyResult) {
	id, err := e.source.Create(ctx, tableRef, PayloadFields(rec, e.opts.KeyField))
	if err != nil {
		res.Errors = append(res.Errors, RecordError{NaturalKey: rec.NaturalKey, Op: "create", Message: err.Error()})
		return
	}

	rec.RemoteID = &id
	if w := e.checkRemoteID(ctx, e.store, rec, rec); w != nil {
		res.Warnings = append(res.Warnings, *w)
	}

	now := time.Now()
	rec.SyncState = models.StateSynced
	rec.LastSyncedAt = &now
	rec.UpdatedAt = now
	if err := e.store.Upsert(ctx, rec); err != nil {
		res.Errors = append(res.Errors, RecordError{NaturalKey: rec.NaturalKey, Op: "create", Message: err.Error()})
		return
	}
	res.CreatedRemote++
}

// applyFieldDecision merges a record field by field. Remote picks are
// written locally first, then local picks are pushed as one partial update.
func (e *Engine) applyFieldDecision(ctx context.Context, tableRef string, rec, rem *models.Record, picks map[string]string, res *ApplyResult) {
	var pushFields []string
	localChanged := false

	fields := make([]string, 0, len(picks))
	for name := range picks {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	for _, name := range fields {
		switch picks[name] {
		case PickRemote:
			rv, ok := rem.Fields[name]
			if !ok {
				if _, present := rec.Fields[name]; present {
					delete(rec.Fields, name)
					localChanged = true
				}
				continue
			}
			if cur, present := rec.Fields[name]; !present || !cur.Equal(rv) {
				rec.Fields[name] = rv
				localChanged = true
			}
		case PickLocal:
			pushFields = append(pushFields, name)
		default:
			res.Errors = append(res.Errors, RecordError{
				NaturalKey: rec.NaturalKey, Op: "apply",
				Message: fmt.Sprintf("unknown pick %q for field %s", picks[name], name),
			})
		}
	}

	if localChanged {
		rec.Checksum = Checksum(rec.Fields)
		rec.LocalVersion++
		rec.UpdatedAt = time.Now()
		if err := e.store.Upsert(ctx, rec); err != nil {
			res.Errors = append(res.Errors, RecordError{NaturalKey: rec.NaturalKey, Op: "apply", Message: err.Error()})
			return
		}
		res.AppliedLocal++
	}
	if len(pushFields) > 0 {
		e.pushLocal(ctx, tableRef, rec, pushFields, res)
	}
}
