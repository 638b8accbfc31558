package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver compacts aged rows out of hot storage into blob storage.
type Archiver interface {
	// ArchiveBefore exports and deletes rows older than cutoff, returning the
	// number of rows archived.
	ArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
