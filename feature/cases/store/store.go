package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"case-mirror/feature/cases/models"

	"gorm.io/gorm"
)

// Store is the transactional local mirror of records, keyed by
// (partition, natural key). It exclusively owns record lifetime within a
// partition.
type Store interface {
	// FindByNaturalKey returns the record for (partition, key), or nil when
	// absent. Absence is a normal branch, not an error.
	FindByNaturalKey(ctx context.Context, partition, key string) (*models.Record, error)
	// FindByRemoteID returns the record holding remoteID, across all
	// partitions, or nil when absent. Backs the global uniqueness precheck.
	FindByRemoteID(ctx context.Context, remoteID string) (*models.Record, error)
	// Upsert inserts or updates a record by (partition, natural key).
	Upsert(ctx context.Context, rec *models.Record) error
	// Delete removes the record for (partition, key) if present.
	Delete(ctx context.Context, partition, key string) error
	// DeleteWhereNotIn removes every record of the partition whose natural
	// key is not in keepKeys, returning the number of rows removed.
	DeleteWhereNotIn(ctx context.Context, partition string, keepKeys []string) (int64, error)
	// ListByPartition returns all records of a partition ordered by natural key.
	ListByPartition(ctx context.Context, partition string) ([]models.Record, error)
	// ListPartitions returns the distinct partitions present locally.
	ListPartitions(ctx context.Context) ([]string, error)
	// Transaction runs fn within a database transaction. The Store handed
	// to fn is scoped to that transaction.
	Transaction(ctx context.Context, fn func(Store) error) error
}

// GormStore implements Store on a GORM connection.
type GormStore struct {
	db *gorm.DB
}

// New creates a Store backed by the given database connection.
func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates the mirror_records table.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Record{}); err != nil {
		return fmt.Errorf("failed to migrate record schema: %w", err)
	}
	return nil
}

func (s *GormStore) FindByNaturalKey(ctx context.Context, partition, key string) (*models.Record, error) {
	var rec models.Record
	err := s.db.WithContext(ctx).
		Where("partition = ? AND natural_key = ?", partition, key).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find record %s/%s: %w", partition, key, err)
	}
	return &rec, nil
}

func (s *GormStore) FindByRemoteID(ctx context.Context, remoteID string) (*models.Record, error) {
	var rec models.Record
	err := s.db.WithContext(ctx).
		Where("remote_id = ?", remoteID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find record by remote id %s: %w", remoteID, err)
	}
	return &rec, nil
}

func (s *GormStore) Upsert(ctx context.Context, rec *models.Record) error {
	db := s.db.WithContext(ctx)

	if rec.ID == 0 {
		existing, err := s.FindByNaturalKey(ctx, rec.Partition, rec.NaturalKey)
		if err != nil {
			return err
		}
		if existing != nil {
			rec.ID = existing.ID
			rec.CreatedAt = existing.CreatedAt
		}
	}

	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	if rec.ID == 0 {
		if err := db.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to insert record %s/%s: %w", rec.Partition, rec.NaturalKey, err)
		}
		return nil
	}

	if err := db.Save(rec).Error; err != nil {
		return fmt.Errorf("failed to update record %s/%s: %w", rec.Partition, rec.NaturalKey, err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, partition, key string) error {
	err := s.db.WithContext(ctx).
		Where("partition = ? AND natural_key = ?", partition, key).
		Delete(&models.Record{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete record %s/%s: %w", partition, key, err)
	}
	return nil
}

func (s *GormStore) DeleteWhereNotIn(ctx context.Context, partition string, keepKeys []string) (int64, error) {
	q := s.db.WithContext(ctx).Where("partition = ?", partition)
	if len(keepKeys) > 0 {
		q = q.Where("natural_key NOT IN ?", keepKeys)
	}

	result := q.Delete(&models.Record{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune partition %s: %w", partition, result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormStore) ListByPartition(ctx context.Context, partition string) ([]models.Record, error) {
	var recs []models.Record
	err := s.db.WithContext(ctx).
		Where("partition = ?", partition).
		Order("natural_key").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list partition %s: %w", partition, err)
	}
	return recs, nil
}

func (s *GormStore) ListPartitions(ctx context.Context) ([]string, error) {
	var partitions []string
	err := s.db.WithContext(ctx).
		Model(&models.Record{}).
		Distinct("partition").
		Order("partition").
		Pluck("partition", &partitions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	return partitions, nil
}

func (s *GormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}
