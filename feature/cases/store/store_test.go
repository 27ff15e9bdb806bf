package store

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return New(db), mock
}

func TestFindByNaturalKey(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		s, mock := newMockStore(t)

		rows := sqlmock.NewRows([]string{"id", "partition", "natural_key", "sync_state"}).
			AddRow(1, "team-a", "TC-100", "synced")
		mock.ExpectQuery("SELECT \\* FROM `mirror_records` WHERE partition = \\? AND natural_key = \\?").
			WithArgs("team-a", "TC-100", 1).
			WillReturnRows(rows)

		rec, err := s.FindByNaturalKey(context.Background(), "team-a", "TC-100")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "TC-100", rec.NaturalKey)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Absent returns nil without error", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectQuery("SELECT \\* FROM `mirror_records`").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		rec, err := s.FindByNaturalKey(context.Background(), "team-a", "missing")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}

func TestDeleteWhereNotIn(t *testing.T) {
	t.Run("With keep set", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM `mirror_records` WHERE partition = \\? AND natural_key NOT IN \\(\\?,\\?\\)").
			WithArgs("team-a", "TC-1", "TC-2").
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectCommit()

		deleted, err := s.DeleteWhereNotIn(context.Background(), "team-a", []string{"TC-1", "TC-2"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), deleted)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Empty keep set deletes whole partition", func(t *testing.T) {
		s, mock := newMockStore(t)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM `mirror_records` WHERE partition = \\?").
			WithArgs("team-a").
			WillReturnResult(sqlmock.NewResult(0, 5))
		mock.ExpectCommit()

		deleted, err := s.DeleteWhereNotIn(context.Background(), "team-a", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(5), deleted)
	})
}

func TestListPartitions(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"partition"}).AddRow("team-a").AddRow("team-b")
	mock.ExpectQuery("SELECT DISTINCT `partition` FROM `mirror_records`").
		WillReturnRows(rows)

	partitions, err := s.ListPartitions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"team-a", "team-b"}, partitions)
}
