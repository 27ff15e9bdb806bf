package sync_test

import (
	"context"
	"testing"
	"time"

	"case-mirror/core/remote"
	"case-mirror/core/remote/mocks"
	"case-mirror/feature/cases/models"
	casesync "case-mirror/feature/cases/sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	baseTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
)

func rawRecord(id, key string, fields map[string]any, modified time.Time) remote.RawRecord {
	all := map[string]any{"Key": key}
	for k, v := range fields {
		all[k] = v
	}
	return remote.RawRecord{
		ID:           id,
		Fields:       all,
		CreatedTime:  baseTime,
		ModifiedTime: modified,
	}
}

func newTestEngine(st *memStore, src *mocks.Source) *casesync.Engine {
	return casesync.NewEngine(st, src, zap.NewNop(), casesync.Options{KeyField: "Key"})
}

func TestInitSyncSeedsEmptyMirror(t *testing.T) {
	st := newMemStore()
	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{"Name": "Login"}, baseTime),
		rawRecord("rec-2", "TC-2", map[string]any{"Name": "Logout"}, baseTime),
		rawRecord("rec-3", "TC-3", map[string]any{"Name": "Search"}, baseTime),
	}, nil)

	eng := newTestEngine(st, src)
	res, err := eng.InitSync(context.Background(), "suite-a", "tbl-a")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 3, res.RemoteTotal)
	assert.Equal(t, 3, res.Inserted)
	assert.Equal(t, 0, res.Deleted)

	rec, err := st.FindByNaturalKey(context.Background(), "suite-a", "TC-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "rec-1", *rec.RemoteID)
	assert.Equal(t, models.StateSynced, rec.SyncState)
	assert.Equal(t, casesync.Checksum(rec.Fields), rec.Checksum)
	// Init adopts the remote timestamps as the local display timestamps.
	assert.Equal(t, baseTime, rec.CreatedAt)
	assert.Equal(t, baseTime, rec.UpdatedAt)
}

func TestInitSyncIdempotent(t *testing.T) {
	st := newMemStore()
	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{"Name": "Login"}, baseTime),
		rawRecord("rec-2", "TC-2", map[string]any{"Name": "Logout"}, baseTime),
	}, nil)

	eng := newTestEngine(st, src)
	ctx := context.Background()

	first, err := eng.InitSync(ctx, "suite-a", "tbl-a")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	second, err := eng.InitSync(ctx, "suite-a", "tbl-a")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 0, second.Updated)
	assert.Equal(t, 2, second.Unchanged)
	assert.Equal(t, 0, second.Deleted)

	rec, _ := st.FindByNaturalKey(ctx, "suite-a", "TC-1")
	assert.Equal(t, 1, rec.LocalVersion)
}

func TestInitSyncPrunesLocalOrphans(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()
	require.NoError(t, st.Upsert(ctx, &models.Record{
		Partition:  "suite-a",
		NaturalKey: "TC-GONE",
		Fields:     models.FieldMap{"Name": models.TextValue("stale")},
		SyncState:  models.StateSynced,
	}))

	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{"Name": "Login"}, baseTime),
	}, nil)

	eng := newTestEngine(st, src)
	res, err := eng.InitSync(ctx, "suite-a", "tbl-a")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Deleted)
	gone, _ := st.FindByNaturalKey(ctx, "suite-a", "TC-GONE")
	assert.Nil(t, gone)
}

func TestInitSyncMirrorEquivalence(t *testing.T) {
	st := newMemStore()
	src := new(mocks.Source)
	// A duplicate key on the remote side collapses to the newest record.
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-old", "TC-1", map[string]any{"Name": "old"}, baseTime),
		rawRecord("rec-new", "TC-1", map[string]any{"Name": "new"}, baseTime.Add(time.Hour)),
		rawRecord("rec-2", "TC-2", map[string]any{"Name": "other"}, baseTime),
	}, nil)

	eng := newTestEngine(st, src)
	ctx := context.Background()
	res, err := eng.InitSync(ctx, "suite-a", "tbl-a")
	require.NoError(t, err)

	assert.Equal(t, 3, res.RemoteTotal)
	assert.Equal(t, 2, res.Deduplicated)

	locals, _ := st.ListByPartition(ctx, "suite-a")
	require.Len(t, locals, 2)
	assert.Equal(t, "rec-new", *locals[0].RemoteID)
	assert.Equal(t, "new", locals[0].Fields["Name"].Render())
}

func TestInitSyncRemoteIDConflictWarns(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()
	taken := "rec-1"
	require.NoError(t, st.Upsert(ctx, &models.Record{
		Partition:  "suite-b",
		NaturalKey: "OTHER-1",
		RemoteID:   &taken,
		Fields:     models.FieldMap{},
		SyncState:  models.StateSynced,
	}))

	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{"Name": "Login"}, baseTime),
	}, nil)

	eng := newTestEngine(st, src)
	res, err := eng.InitSync(ctx, "suite-a", "tbl-a")
	require.NoError(t, err)

	// The run stays successful; the conflicting assignment is dropped.
	assert.True(t, res.Success)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, casesync.WarnRemoteIDConflict, res.Warnings[0].Code)

	rec, _ := st.FindByNaturalKey(ctx, "suite-a", "TC-1")
	require.NotNil(t, rec)
	assert.Nil(t, rec.RemoteID)
}

func TestInitSyncRecordsConversionErrors(t *testing.T) {
	st := newMemStore()
	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		{ID: "rec-bad", Fields: map[string]any{"Name": "no key"}},
		rawRecord("rec-1", "TC-1", map[string]any{"Name": "Login"}, baseTime),
	}, nil)

	eng := newTestEngine(st, src)
	res, err := eng.InitSync(context.Background(), "suite-a", "tbl-a")
	require.NoError(t, err)

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "convert", res.Errors[0].Op)
	assert.Equal(t, "rec-bad", res.Errors[0].RemoteID)
	assert.Equal(t, 1, res.Inserted)
}

func TestDiffSyncNeverDeletes(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()

	// Local-only record that no longer exists remotely.
	require.NoError(t, st.Upsert(ctx, &models.Record{
		Partition:  "suite-a",
		NaturalKey: "TC-LOCAL",
		Fields:     models.FieldMap{"Name": models.TextValue("local only")},
		SyncState:  models.StateSynced,
	}))

	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{"Name": "Login"}, baseTime),
	}, nil)

	eng := newTestEngine(st, src)
	res, err := eng.DiffSync(ctx, "suite-a", "tbl-a")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 0, res.Deleted)
	assert.Equal(t, 1, res.PendingMarked)

	local, _ := st.FindByNaturalKey(ctx, "suite-a", "TC-LOCAL")
	require.NotNil(t, local)
	assert.Equal(t, models.StatePending, local.SyncState)
}

func TestDiffSyncAppliesRemoteChanges(t *testing.T) {
	st := newMemStore()
	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{"Name": "Login v1"}, baseTime),
	}, nil).Once()

	eng := newTestEngine(st, src)
	ctx := context.Background()
	_, err := eng.InitSync(ctx, "suite-a", "tbl-a")
	require.NoError(t, err)

	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{"Name": "Login v2"}, baseTime.Add(time.Hour)),
	}, nil)

	res, err := eng.DiffSync(ctx, "suite-a", "tbl-a")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	rec, _ := st.FindByNaturalKey(ctx, "suite-a", "TC-1")
	assert.Equal(t, "Login v2", rec.Fields["Name"].Render())
	assert.Equal(t, 2, rec.LocalVersion)
}

func TestDiffSyncKeepsPendingLocalEdits(t *testing.T) {
	st := newMemStore()
	ctx := context.Background()

	remoteID := "rec-1"
	edited := models.FieldMap{"Name": models.TextValue("local edit")}
	require.NoError(t, st.Upsert(ctx, &models.Record{
		Partition:    "suite-a",
		NaturalKey:   "TC-1",
		RemoteID:     &remoteID,
		Fields:       edited,
		Checksum:     casesync.Checksum(edited),
		SyncState:    models.StatePending,
		LocalVersion: 2,
	}))

	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{"Name": "remote change"}, baseTime),
	}, nil)

	eng := newTestEngine(st, src)
	res, err := eng.DiffSync(ctx, "suite-a", "tbl-a")
	require.NoError(t, err)

	assert.Equal(t, 1, res.PendingKept)
	assert.Equal(t, 0, res.Updated)

	rec, _ := st.FindByNaturalKey(ctx, "suite-a", "TC-1")
	assert.Equal(t, "local edit", rec.Fields["Name"].Render())
	assert.Equal(t, models.StatePending, rec.SyncState)
	assert.Equal(t, 2, rec.LocalVersion)
}

func TestDiffSyncUnchangedConfirmsSyncedState(t *testing.T) {
	st := newMemStore()
	src := new(mocks.Source)
	records := []remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{"Name": "Login"}, baseTime),
	}
	src.On("ListAll", mock.Anything, "tbl-a").Return(records, nil)

	eng := newTestEngine(st, src)
	ctx := context.Background()
	_, err := eng.InitSync(ctx, "suite-a", "tbl-a")
	require.NoError(t, err)

	res, err := eng.DiffSync(ctx, "suite-a", "tbl-a")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unchanged)
	assert.Equal(t, 0, res.Updated)
}

func TestSyncListFailureAborts(t *testing.T) {
	st := newMemStore()
	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").
		Return(nil, &remote.TransientError{Err: context.DeadlineExceeded})

	eng := newTestEngine(st, src)
	_, err := eng.InitSync(context.Background(), "suite-a", "tbl-a")
	assert.Error(t, err)
	assert.True(t, remote.IsTransient(err))
}
