package s3blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/surebot/surebot/internal/domain"
)

// minPartSize is the minimum allowed part size for S3 multipart uploads (5 MiB).
const minPartSize int64 = 5 * 1024 * 1024

// defaultContentType is used when the caller does not name one. Archive
// batches name theirs explicitly; this covers ad-hoc uploads.
const defaultContentType = "application/octet-stream"

// Writer implements domain.BlobWriter using an S3-compatible backend. Every
// uploaded object is stamped with its upload time so archives can be audited
// without a database lookup.
type Writer struct {
	client       *s3.Client
	bucket       string
	contentType  string
	storageClass types.StorageClass
}

// WriterOption customises a Writer.
type WriterOption func(*Writer)

// WithStorageClass uploads objects under the given S3 storage class. Archive
// batches are written once and read rarely, so an infrequent-access class
// cuts their cost on AWS. Leave unset for providers that only support the
// standard class.
func WithStorageClass(class types.StorageClass) WriterOption {
	return func(w *Writer) {
		w.storageClass = class
	}
}

// WithDefaultContentType sets the content type applied when a caller passes
// an empty one.
func WithDefaultContentType(contentType string) WriterOption {
	return func(w *Writer) {
		w.contentType = contentType
	}
}

// NewWriter creates a new Writer that uploads objects to the given client's
// configured bucket.
func NewWriter(c *Client, opts ...WriterOption) *Writer {
	w := &Writer{
		client:      c.S3(),
		bucket:      c.Bucket(),
		contentType: defaultContentType,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Put uploads data as a single S3 PutObject request. Suitable for objects
// small enough to upload in one shot; for larger payloads prefer
// PutMultipart.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if contentType == "" {
		contentType = w.contentType
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(contentType),
		Metadata:    uploadStamp(),
	}
	if w.storageClass != "" {
		input.StorageClass = w.storageClass
	}

	if _, err := w.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", path, err)
	}
	return nil
}

// PutMultipart uploads data using the S3 multipart upload manager, which
// splits the payload into parts and uploads them concurrently. Part sizes
// below the S3 minimum (5 MiB) are clamped to the minimum.
func (w *Writer) PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error {
	if partSize < minPartSize {
		partSize = minPartSize
	}

	uploader := manager.NewUploader(w.client, func(u *manager.Uploader) {
		u.PartSize = partSize
	})

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(w.contentType),
		Metadata:    uploadStamp(),
	}
	if w.storageClass != "" {
		input.StorageClass = w.storageClass
	}

	if _, err := uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", path, err)
	}
	return nil
}

func uploadStamp() map[string]string {
	return map[string]string{
		"uploaded-at": time.Now().UTC().Format(time.RFC3339),
	}
}

// Compile-time interface check.
var _ domain.BlobWriter = (*Writer)(nil)
