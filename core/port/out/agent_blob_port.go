package out

import "context"

// =============================================================================
// Blob Store Port
// =============================================================================

// BlobStorePort reads and writes opaque blobs: classifier artifacts and
// the retrain-state JSON.
type BlobStorePort interface {
	GetBytes(ctx context.Context, path string) ([]byte, error)
	PutBytes(ctx context.Context, path string, data []byte) error
	// Exists reports whether a blob is present without fetching it.
	Exists(ctx context.Context, path string) (bool, error)
}
