// Package storage defines the blob-store contract the disclosure gateway
// serves document content through, plus its S3 implementation. The gateway
// never hands callers a raw storage location except through PresignGet.
package storage

import (
	"context"
	"io"
	"time"
)

// ObjectInfo carries the blob metadata needed to serve a document.
type ObjectInfo struct {
	ContentType string
	SizeBytes   int64
}

// BlobStore is the object-storage collaborator.
type BlobStore interface {
	// Put stores body under key. The write must complete before any
	// metadata referencing key is persisted.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error

	// Head checks existence and returns object metadata. A missing object
	// returns a not-found error so the caller can distinguish inconsistency
	// from transport failure.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// Fetch opens the object for streaming. The caller closes the reader.
	Fetch(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)

	// Delete removes the object. Deleting an absent object is not an error.
	Delete(ctx context.Context, key string) error

	// PresignGet returns a time-bounded URL granting direct GET access.
	PresignGet(ctx context.Context, key string, validity time.Duration) (string, error)
}
