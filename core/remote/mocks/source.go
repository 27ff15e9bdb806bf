package mocks

import (
	"context"

	"case-mirror/core/remote"

	"github.com/stretchr/testify/mock"
)

// Source is a mock implementation of remote.Source
type Source struct {
	mock.Mock
}

func (m *Source) ListTables(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	if catalog, ok := args.Get(0).(map[string]string); ok {
		return catalog, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Source) ListAll(ctx context.Context, tableRef string) ([]remote.RawRecord, error) {
	args := m.Called(ctx, tableRef)
	if recs, ok := args.Get(0).([]remote.RawRecord); ok {
		return recs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Source) Create(ctx context.Context, tableRef string, fields map[string]any) (string, error) {
	args := m.Called(ctx, tableRef, fields)
	return args.String(0), args.Error(1)
}

func (m *Source) Update(ctx context.Context, tableRef, recordID string, fields map[string]any) error {
	args := m.Called(ctx, tableRef, recordID, fields)
	return args.Error(0)
}

func (m *Source) BatchCreate(ctx context.Context, tableRef string, fieldSets []map[string]any) ([]string, []error) {
	args := m.Called(ctx, tableRef, fieldSets)
	ids, _ := args.Get(0).([]string)
	errs, _ := args.Get(1).([]error)
	return ids, errs
}

func (m *Source) BatchUpdate(ctx context.Context, tableRef string, updates []remote.RecordUpdate) (int, []error) {
	args := m.Called(ctx, tableRef, updates)
	errs, _ := args.Get(1).([]error)
	return args.Int(0), errs
}

func (m *Source) BatchDelete(ctx context.Context, tableRef string, ids []string) (int, []error) {
	args := m.Called(ctx, tableRef, ids)
	errs, _ := args.Get(1).([]error)
	return args.Int(0), errs
}
