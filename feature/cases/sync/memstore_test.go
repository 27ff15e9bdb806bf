package sync_test

import (
	"context"
	"sort"
	gosync "sync"

	"case-mirror/feature/cases/models"
	"case-mirror/feature/cases/store"
)

// memStore is an in-memory store.Store for engine tests. Transactions are
// not isolated; tests only exercise the happy-path commit flow.
type memStore struct {
	mu     gosync.Mutex
	nextID uint
	recs   map[string]*models.Record
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]*models.Record)}
}

func memKey(partition, key string) string {
	return partition + "\x00" + key
}

func copyRecord(rec *models.Record) *models.Record {
	cp := *rec
	cp.Fields = rec.Fields.Clone()
	return &cp
}

func (s *memStore) FindByNaturalKey(_ context.Context, partition, key string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[memKey(partition, key)]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

func (s *memStore) FindByRemoteID(_ context.Context, remoteID string) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recs {
		if rec.RemoteID != nil && *rec.RemoteID == remoteID {
			return copyRecord(rec), nil
		}
	}
	return nil, nil
}

func (s *memStore) Upsert(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memKey(rec.Partition, rec.NaturalKey)
	if existing, ok := s.recs[key]; ok && rec.ID == 0 {
		rec.ID = existing.ID
	}
	if rec.ID == 0 {
		s.nextID++
		rec.ID = s.nextID
	}
	s.recs[key] = copyRecord(rec)
	return nil
}

func (s *memStore) Delete(_ context.Context, partition, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recs, memKey(partition, key))
	return nil
}

func (s *memStore) DeleteWhereNotIn(_ context.Context, partition string, keepKeys []string) (int64, error) {
	keep := make(map[string]struct{}, len(keepKeys))
	for _, k := range keepKeys {
		keep[k] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for key, rec := range s.recs {
		if rec.Partition != partition {
			continue
		}
		if _, ok := keep[rec.NaturalKey]; ok {
			continue
		}
		delete(s.recs, key)
		removed++
	}
	return removed, nil
}

func (s *memStore) ListByPartition(_ context.Context, partition string) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Record
	for _, rec := range s.recs {
		if rec.Partition == partition {
			out = append(out, *copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NaturalKey < out[j].NaturalKey })
	return out, nil
}

func (s *memStore) ListPartitions(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{})
	for _, rec := range s.recs {
		seen[rec.Partition] = struct{}{}
	}
	var out []string
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (s *memStore) Transaction(_ context.Context, fn func(store.Store) error) error {
	return fn(s)
}
