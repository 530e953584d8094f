package storage

import "context"

// BlobStore persists and retrieves opaque Recording blobs by content hash.
// The local filesystem implementation (Store) is always present; an
// optional cloud-backed implementation (S3Backup) can be paired with it
// through MirroringStore for off-machine redundancy.
type BlobStore interface {
	Put(ctx context.Context, hash string, blob []byte) error
	Get(ctx context.Context, hash string) ([]byte, error)
	Delete(ctx context.Context, hash string) error
	Exists(ctx context.Context, hash string) (bool, error)
}
