package sync_test

import (
	"context"
	"testing"

	"case-mirror/core/remote"
	"case-mirror/core/remote/mocks"
	"case-mirror/feature/cases/models"
	casesync "case-mirror/feature/cases/sync"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seedLocal(t *testing.T, st *memStore, key string, fields models.FieldMap, remoteID string) {
	t.Helper()
	rec := &models.Record{
		Partition:    "suite-a",
		NaturalKey:   key,
		Fields:       fields,
		Checksum:     casesync.Checksum(fields),
		SyncState:    models.StateSynced,
		LocalVersion: 1,
	}
	if remoteID != "" {
		id := remoteID
		rec.RemoteID = &id
	}
	require.NoError(t, st.Upsert(context.Background(), rec))
}

func TestComputeDiffBuckets(t *testing.T) {
	st := newMemStore()
	seedLocal(t, st, "TC-BOTH", models.FieldMap{"Name": models.TextValue("same")}, "rec-both")
	seedLocal(t, st, "TC-LOCAL", models.FieldMap{"Name": models.TextValue("local only")}, "")

	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-both", "TC-BOTH", map[string]any{"Name": "same"}, baseTime),
		rawRecord("rec-remote", "TC-REMOTE", map[string]any{"Name": "remote only"}, baseTime),
	}, nil)

	eng := newTestEngine(st, src)
	report, err := eng.ComputeDiff(context.Background(), "suite-a", "tbl-a")
	require.NoError(t, err)

	assert.Equal(t, []string{"TC-LOCAL"}, report.OnlyLocal)
	assert.Equal(t, []string{"TC-REMOTE"}, report.OnlyRemote)
	require.Len(t, report.Both, 1)
	assert.Equal(t, "TC-BOTH", report.Both[0].NaturalKey)
	assert.False(t, report.Both[0].HasDifferences)
}

func TestComputeDiffFieldLevel(t *testing.T) {
	st := newMemStore()
	seedLocal(t, st, "TC-1", models.FieldMap{
		"Name":     models.TextValue("local name"),
		"Priority": models.NumberValue(1),
		"Extra":    models.TextValue("only local"),
	}, "rec-1")

	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{
			"Name":     "remote name",
			"Priority": float64(1),
		}, baseTime),
	}, nil)

	eng := newTestEngine(st, src)
	report, err := eng.ComputeDiff(context.Background(), "suite-a", "tbl-a")
	require.NoError(t, err)

	require.Len(t, report.Both, 1)
	entry := report.Both[0]
	assert.True(t, entry.HasDifferences)

	byField := make(map[string]casesync.FieldDiff, len(entry.Fields))
	for _, fd := range entry.Fields {
		byField[fd.Field] = fd
	}

	assert.True(t, byField["Name"].Different)
	assert.Equal(t, "local name", byField["Name"].Local)
	assert.Equal(t, "remote name", byField["Name"].Remote)

	assert.False(t, byField["Priority"].Different)

	assert.True(t, byField["Extra"].Different)
	assert.True(t, byField["Extra"].InLocal)
	assert.False(t, byField["Extra"].InRemote)
}

func TestComputeDiffIgnoresVolatileFields(t *testing.T) {
	st := newMemStore()
	seedLocal(t, st, "TC-1", models.FieldMap{"Name": models.TextValue("same")}, "rec-1")

	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{
			"Name":         "same",
			"Created Time": "2024-06-01T00:00:00Z",
		}, baseTime),
	}, nil)

	eng := newTestEngine(st, src)
	report, err := eng.ComputeDiff(context.Background(), "suite-a", "tbl-a")
	require.NoError(t, err)

	require.Len(t, report.Both, 1)
	assert.False(t, report.Both[0].HasDifferences)
}

func TestComputeDiffDoesNotModifyEitherSide(t *testing.T) {
	st := newMemStore()
	fields := models.FieldMap{"Name": models.TextValue("before")}
	seedLocal(t, st, "TC-1", fields, "rec-1")

	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{"Name": "after"}, baseTime),
	}, nil)

	eng := newTestEngine(st, src)
	ctx := context.Background()
	_, err := eng.ComputeDiff(ctx, "suite-a", "tbl-a")
	require.NoError(t, err)

	rec, _ := st.FindByNaturalKey(ctx, "suite-a", "TC-1")
	assert.Equal(t, "before", rec.Fields["Name"].Render())
	assert.Equal(t, 1, rec.LocalVersion)
	src.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyDiffWholeRecordRemoteWins(t *testing.T) {
	st := newMemStore()
	seedLocal(t, st, "TC-1", models.FieldMap{"Name": models.TextValue("local")}, "rec-1")

	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{"Name": "remote"}, baseTime),
	}, nil)

	eng := newTestEngine(st, src)
	ctx := context.Background()
	res, err := eng.ApplyDiff(ctx, "suite-a", "tbl-a", map[string]casesync.Decision{
		"TC-1": {Source: casesync.PickRemote},
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 1, res.AppliedLocal)

	rec, _ := st.FindByNaturalKey(ctx, "suite-a", "TC-1")
	assert.Equal(t, "remote", rec.Fields["Name"].Render())
	assert.Equal(t, 2, rec.LocalVersion)
}

func TestApplyDiffWholeRecordLocalWins(t *testing.T) {
	st := newMemStore()
	seedLocal(t, st, "TC-1", models.FieldMap{"Name": models.TextValue("local")}, "rec-1")

	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{"Name": "remote"}, baseTime),
	}, nil)
	src.On("Update", mock.Anything, "tbl-a", "rec-1", mock.MatchedBy(func(fields map[string]any) bool {
		return fields["Name"] == "local" && fields["Key"] == "TC-1"
	})).Return(nil)

	eng := newTestEngine(st, src)
	ctx := context.Background()
	res, err := eng.ApplyDiff(ctx, "suite-a", "tbl-a", map[string]casesync.Decision{
		"TC-1": {Source: casesync.PickLocal},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.AppliedRemote)
	src.AssertExpectations(t)

	rec, _ := st.FindByNaturalKey(ctx, "suite-a", "TC-1")
	assert.Equal(t, models.StateSynced, rec.SyncState)
	require.NotNil(t, rec.LastSyncedAt)
}

func TestApplyDiffPerField(t *testing.T) {
	st := newMemStore()
	seedLocal(t, st, "TC-1", models.FieldMap{
		"Name":     models.TextValue("local name"),
		"Priority": models.NumberValue(5),
	}, "rec-1")

	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{
			"Name":     "remote name",
			"Priority": float64(1),
		}, baseTime),
	}, nil)
	src.On("Update", mock.Anything, "tbl-a", "rec-1", mock.MatchedBy(func(fields map[string]any) bool {
		_, hasName := fields["Name"]
		return !hasName && fields["Priority"] == float64(5)
	})).Return(nil)

	eng := newTestEngine(st, src)
	ctx := context.Background()
	res, err := eng.ApplyDiff(ctx, "suite-a", "tbl-a", map[string]casesync.Decision{
		"TC-1": {Fields: map[string]string{
			"Name":     casesync.PickRemote,
			"Priority": casesync.PickLocal,
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.AppliedLocal)
	assert.Equal(t, 1, res.AppliedRemote)
	src.AssertExpectations(t)

	rec, _ := st.FindByNaturalKey(ctx, "suite-a", "TC-1")
	assert.Equal(t, "remote name", rec.Fields["Name"].Render())
	assert.Equal(t, float64(5), rec.Fields["Priority"].Number)
}

func TestApplyDiffCreatesMissingSides(t *testing.T) {
	st := newMemStore()
	seedLocal(t, st, "TC-LOCAL", models.FieldMap{"Name": models.TextValue("local only")}, "")

	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-remote", "TC-REMOTE", map[string]any{"Name": "remote only"}, baseTime),
	}, nil)
	src.On("Create", mock.Anything, "tbl-a", mock.MatchedBy(func(fields map[string]any) bool {
		return fields["Key"] == "TC-LOCAL"
	})).Return("rec-created", nil)

	eng := newTestEngine(st, src)
	ctx := context.Background()
	res, err := eng.ApplyDiff(ctx, "suite-a", "tbl-a", map[string]casesync.Decision{
		"TC-LOCAL":  {Source: casesync.PickLocal},
		"TC-REMOTE": {Source: casesync.PickRemote},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.CreatedRemote)
	assert.Equal(t, 1, res.CreatedLocal)

	local, _ := st.FindByNaturalKey(ctx, "suite-a", "TC-LOCAL")
	require.NotNil(t, local.RemoteID)
	assert.Equal(t, "rec-created", *local.RemoteID)

	pulled, _ := st.FindByNaturalKey(ctx, "suite-a", "TC-REMOTE")
	require.NotNil(t, pulled)
	assert.Equal(t, models.StateSynced, pulled.SyncState)
}

func TestApplyDiffLocalPickWithoutRemoteIDCreates(t *testing.T) {
	st := newMemStore()
	seedLocal(t, st, "TC-1", models.FieldMap{"Name": models.TextValue("local")}, "")

	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{"Name": "remote"}, baseTime),
	}, nil)
	src.On("Create", mock.Anything, "tbl-a", mock.MatchedBy(func(fields map[string]any) bool {
		return fields["Key"] == "TC-1" && fields["Name"] == "local"
	})).Return("rec-new", nil)

	eng := newTestEngine(st, src)
	ctx := context.Background()
	res, err := eng.ApplyDiff(ctx, "suite-a", "tbl-a", map[string]casesync.Decision{
		"TC-1": {Fields: map[string]string{"Name": casesync.PickLocal}},
	})
	require.NoError(t, err)

	// A record present on both sides but without a usable id locally gets
	// re-created remotely instead of failing the decision.
	assert.Empty(t, res.Errors)
	assert.Equal(t, 1, res.CreatedRemote)
	src.AssertExpectations(t)

	rec, _ := st.FindByNaturalKey(ctx, "suite-a", "TC-1")
	require.NotNil(t, rec.RemoteID)
	assert.Equal(t, "rec-new", *rec.RemoteID)
	assert.Equal(t, models.StateSynced, rec.SyncState)
}

func TestApplyDiffPullConflictingRemoteIDLeavesUnset(t *testing.T) {
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
		rawRecord("rec-1", "TC-1", map[string]any{"Name": "remote"}, baseTime),
	}, nil)

	eng := newTestEngine(st, src)
	res, err := eng.ApplyDiff(ctx, "suite-a", "tbl-a", map[string]casesync.Decision{
		"TC-1": {Source: casesync.PickRemote},
	})
	require.NoError(t, err)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, casesync.WarnRemoteIDConflict, res.Warnings[0].Code)

	pulled, _ := st.FindByNaturalKey(ctx, "suite-a", "TC-1")
	require.NotNil(t, pulled)
	assert.Nil(t, pulled.RemoteID)

	holder, _ := st.FindByRemoteID(ctx, "rec-1")
	require.NotNil(t, holder)
	assert.Equal(t, "suite-b", holder.Partition)
	assert.Equal(t, "OTHER-1", holder.NaturalKey)
}

func TestApplyDiffUndecidedKeysUntouched(t *testing.T) {
	st := newMemStore()
	seedLocal(t, st, "TC-1", models.FieldMap{"Name": models.TextValue("local")}, "rec-1")
	seedLocal(t, st, "TC-2", models.FieldMap{"Name": models.TextValue("keep me")}, "rec-2")

	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{
		rawRecord("rec-1", "TC-1", map[string]any{"Name": "remote"}, baseTime),
		rawRecord("rec-2", "TC-2", map[string]any{"Name": "remote too"}, baseTime),
	}, nil)

	eng := newTestEngine(st, src)
	ctx := context.Background()
	_, err := eng.ApplyDiff(ctx, "suite-a", "tbl-a", map[string]casesync.Decision{
		"TC-1": {Source: casesync.PickRemote},
	})
	require.NoError(t, err)

	untouched, _ := st.FindByNaturalKey(ctx, "suite-a", "TC-2")
	assert.Equal(t, "keep me", untouched.Fields["Name"].Render())
}

func TestApplyDiffInvalidDecision(t *testing.T) {
	st := newMemStore()
	src := new(mocks.Source)
	src.On("ListAll", mock.Anything, "tbl-a").Return([]remote.RawRecord{}, nil)

	eng := newTestEngine(st, src)
	res, err := eng.ApplyDiff(context.Background(), "suite-a", "tbl-a", map[string]casesync.Decision{
		"TC-1": {},
	})
	require.NoError(t, err)

	assert.False(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "apply", res.Errors[0].Op)
}
