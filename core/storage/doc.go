// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client to provide a simplified interface for common
// operations like checking bucket existence, uploading attachments, and
// listing objects. The abstraction supports both AWS S3 and self-hosted
// MinIO instances.
//
// # Client Interface
//
// The Client interface abstracts the underlying storage provider, making it
// easy to mock storage interactions for unit testing (see core/storage/mocks).
//
// The cases feature stores record attachments under
// "attachments/<partition>/<natural-key>/<filename>".
package storage
