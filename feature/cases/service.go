package cases

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"case-mirror/core/lookupcache"
	"case-mirror/core/remote"
	"case-mirror/core/storage"
	"case-mirror/feature/cases/models"
	"case-mirror/feature/cases/store"
	casesync "case-mirror/feature/cases/sync"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// ErrRecordNotFound marks lookups for records the local mirror does not hold.
var ErrRecordNotFound = errors.New("record not found")

// ErrUnknownPartition marks partitions without a remote table.
var ErrUnknownPartition = errors.New("no remote table for partition")

const catalogKey = "tables"

// Service orchestrates record CRUD, reconciliation runs, and attachment
// storage for the cases feature.
type Service struct {
	store   store.Store
	source  remote.Source
	engine  *casesync.Engine
	catalog *lookupcache.Cache[map[string]string]
	storage storage.Client
	bucket  string
	logger  *zap.Logger
}

// NewService wires the cases service.
func NewService(
	st store.Store,
	source remote.Source,
	engine *casesync.Engine,
	catalog *lookupcache.Cache[map[string]string],
	storageClient storage.Client,
	bucket string,
	logger *zap.Logger,
) *Service {
	return &Service{
		store:   st,
		source:  source,
		engine:  engine,
		catalog: catalog,
		storage: storageClient,
		bucket:  bucket,
		logger:  logger,
	}
}

// TableRef resolves the remote table for a partition via the cached catalog.
// On a miss the catalog is refreshed once before giving up, so a table
// created after startup is still found.
func (s *Service) TableRef(ctx context.Context, partition string) (string, error) {
	catalog, err := s.catalog.GetOrLoad(ctx, catalogKey, s.source.ListTables)
	if err != nil {
		return "", fmt.Errorf("failed to load remote table catalog: %w", err)
	}
	if ref, ok := catalog[partition]; ok {
		return ref, nil
	}

	s.catalog.Invalidate(catalogKey)
	catalog, err = s.catalog.GetOrLoad(ctx, catalogKey, s.source.ListTables)
	if err != nil {
		return "", fmt.Errorf("failed to reload remote table catalog: %w", err)
	}
	if ref, ok := catalog[partition]; ok {
		return ref, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownPartition, partition)
}

// ListPartitions returns the partitions present in the local mirror.
func (s *Service) ListPartitions(ctx context.Context) ([]string, error) {
	return s.store.ListPartitions(ctx)
}

// ListRecords returns the local records of a partition, optionally filtered
// by sync state. A nil state returns everything.
func (s *Service) ListRecords(ctx context.Context, partition string, state *models.SyncState) ([]models.Record, error) {
	records, err := s.store.ListByPartition(ctx, partition)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return records, nil
	}

	filtered := make([]models.Record, 0, len(records))
	for _, rec := range records {
		if rec.SyncState == *state {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

// GetRecord returns a single local record.
func (s *Service) GetRecord(ctx context.Context, partition, key string) (*models.Record, error) {
	rec, err := s.store.FindByNaturalKey(ctx, partition, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrRecordNotFound, partition, key)
	}
	return rec, nil
}

// SaveRecord creates or updates a record from a local edit. The checksum is
// recomputed and the record goes pending until the next push confirms it.
func (s *Service) SaveRecord(ctx context.Context, partition, key string, fields models.FieldMap) (*models.Record, error) {
	rec, err := s.store.FindByNaturalKey(ctx, partition, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &models.Record{
			Partition:  partition,
			NaturalKey: key,
		}
	}

	sum := casesync.Checksum(fields)
	if rec.ID != 0 && rec.Checksum == sum {
		return rec, nil
	}

	rec.Fields = fields
	rec.Checksum = sum
	rec.SyncState = models.StatePending
	rec.LocalVersion++
	rec.UpdatedAt = time.Now()
	if err := s.store.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// DeleteRecord removes a record and its stored attachments from the local
// mirror. The remote side is untouched; a later init sync would resurrect
// the record, a full update with prune would delete it remotely.
func (s *Service) DeleteRecord(ctx context.Context, partition, key string) error {
	rec, err := s.store.FindByNaturalKey(ctx, partition, key)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: %s/%s", ErrRecordNotFound, partition, key)
	}
	if err := s.store.Delete(ctx, partition, key); err != nil {
		return err
	}
	return s.removeAttachments(ctx, partition, key)
}

// removeAttachments deletes every attachment object under a record's prefix
// so deleted records leave nothing behind in the bucket.
func (s *Service) removeAttachments(ctx context.Context, partition, key string) error {
	objects := s.storage.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    attachmentKey(partition, key, "") + "/",
		Recursive: true,
	})
	for rerr := range s.storage.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			return fmt.Errorf("failed to delete attachments of %s/%s: %w", partition, key, rerr.Err)
		}
	}
	return nil
}

// RunSync executes one reconciliation run for a partition. Dry-run and
// prune only apply to full-update mode.
func (s *Service) RunSync(ctx context.Context, partition string, mode casesync.Mode, dryRun, prune bool) (any, error) {
	if mode != casesync.ModeFullUpdate && (dryRun || prune) {
		return nil, fmt.Errorf("dry-run and prune are only available in %s mode", casesync.ModeFullUpdate)
	}

	tableRef, err := s.TableRef(ctx, partition)
	if err != nil {
		return nil, err
	}

	switch mode {
	case casesync.ModeInit:
		return s.engine.InitSync(ctx, partition, tableRef)
	case casesync.ModeDiff:
		return s.engine.DiffSync(ctx, partition, tableRef)
	case casesync.ModeFullUpdate:
		return s.engine.FullUpdate(ctx, partition, tableRef, casesync.PushOptions{
			DryRun: dryRun,
			Prune:  prune,
		})
	default:
		return nil, fmt.Errorf("unknown sync mode %q", mode)
	}
}

// ComputeDiff reports the differences between the local mirror and the
// remote table without modifying either side.
func (s *Service) ComputeDiff(ctx context.Context, partition string) (*casesync.DiffReport, error) {
	tableRef, err := s.TableRef(ctx, partition)
	if err != nil {
		return nil, err
	}
	return s.engine.ComputeDiff(ctx, partition, tableRef)
}

// ApplyDiff resolves reported differences according to the given decisions.
func (s *Service) ApplyDiff(ctx context.Context, partition string, decisions map[string]casesync.Decision) (*casesync.ApplyResult, error) {
	tableRef, err := s.TableRef(ctx, partition)
	if err != nil {
		return nil, err
	}
	return s.engine.ApplyDiff(ctx, partition, tableRef, decisions)
}

func attachmentKey(partition, key, filename string) string {
	return path.Join("attachments", partition, key, filename)
}

// UploadAttachment stores a file next to a record. The record must exist
// locally so attachments never dangle.
func (s *Service) UploadAttachment(ctx context.Context, partition, key, filename, contentType string, body io.Reader, size int64) error {
	if _, err := s.GetRecord(ctx, partition, key); err != nil {
		return err
	}

	_, err := s.storage.PutObject(ctx, s.bucket, attachmentKey(partition, key, filename), body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to store attachment %s: %w", filename, err)
	}
	return nil
}

// DownloadAttachment streams an attachment back. The caller closes the reader.
func (s *Service) DownloadAttachment(ctx context.Context, partition, key, filename string) (io.ReadCloser, error) {
	obj, err := s.storage.GetObject(ctx, s.bucket, attachmentKey(partition, key, filename), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attachment %s: %w", filename, err)
	}
	return obj, nil
}

// ListAttachments returns the attachment filenames of a record, sorted.
func (s *Service) ListAttachments(ctx context.Context, partition, key string) ([]string, error) {
	prefix := attachmentKey(partition, key, "") + "/"

	var names []string
	for info := range s.storage.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if info.Err != nil {
			return nil, fmt.Errorf("failed to list attachments of %s/%s: %w", partition, key, info.Err)
		}
		names = append(names, path.Base(info.Key))
	}
	sort.Strings(names)
	return names, nil
}

// DeleteAttachment removes one attachment of a record.
func (s *Service) DeleteAttachment(ctx context.Context, partition, key, filename string) error {
	err := s.storage.RemoveObject(ctx, s.bucket, attachmentKey(partition, key, filename), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete attachment %s: %w", filename, err)
	}
	return nil
}
