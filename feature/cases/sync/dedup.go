package sync

import (
	"time"

	"case-mirror/feature/cases/models"
)

// DedupKey is the identity tuple duplicates are grouped by.
type DedupKey struct {
	Partition  string
	NaturalKey string
}

// Resolve picks the canonical record among duplicates sharing a natural key
// and returns the rest as the removal set. Preference order: latest
// RemoteModifiedAt, then latest RemoteCreatedAt, then original sequence
// order, so repeated runs are stable.
func Resolve(records []models.Record) (models.Record, []models.Record) {
	canonical := records[0]
	canonicalIdx := 0

	for i := 1; i < len(records); i++ {
		if newerThan(&records[i], &canonical) {
			canonical = records[i]
			canonicalIdx = i
		}
	}

	removed := make([]models.Record, 0, len(records)-1)
	for i, rec := range records {
		if i != canonicalIdx {
			removed = append(removed, rec)
		}
	}
	return canonical, removed
}

// ResolveAll groups records by (partition, natural key) and resolves each
// group. The canonical records come back in first-seen input order.
func ResolveAll(records []models.Record) (canonical []models.Record, removed []models.Record) {
	groups := make(map[DedupKey][]models.Record)
	order := make([]DedupKey, 0, len(records))

	for _, rec := range records {
		key := DedupKey{Partition: rec.Partition, NaturalKey: rec.NaturalKey}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], rec)
	}

	canonical = make([]models.Record, 0, len(order))
	for _, key := range order {
		keep, drop := Resolve(groups[key])
		canonical = append(canonical, keep)
		removed = append(removed, drop...)
	}
	return canonical, removed
}

// newerThan implements the dedup tie-break: a strictly later
// RemoteModifiedAt wins; on a tie, a strictly later RemoteCreatedAt wins;
// otherwise the earlier record keeps its place.
func newerThan(a, b *models.Record) bool {
	am, bm := tsOrZero(a.RemoteModifiedAt), tsOrZero(b.RemoteModifiedAt)
	if !am.Equal(bm) {
		return am.After(bm)
	}
	ac, bc := tsOrZero(a.RemoteCreatedAt), tsOrZero(b.RemoteCreatedAt)
	return ac.After(bc)
}

func tsOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
