package s3blob

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

func TestWriterOptions(t *testing.T) {
	c := &Client{bucket: "surebot-data"}

	w := NewWriter(c)
	require.Equal(t, "surebot-data", w.bucket)
	require.Equal(t, defaultContentType, w.contentType)
	require.Empty(t, w.storageClass)

	w = NewWriter(c,
		WithDefaultContentType("application/x-ndjson"),
		WithStorageClass(types.StorageClassStandardIa),
	)
	require.Equal(t, "application/x-ndjson", w.contentType)
	require.Equal(t, types.StorageClassStandardIa, w.storageClass)
}
