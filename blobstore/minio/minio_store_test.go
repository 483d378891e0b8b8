package minio

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/hupe1980/sentinel/blobstore"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMinioStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	bucket := "test-sentinel"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	if _, err = client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	data := []byte("hello minio world")
	_, err = client.PutObject(ctx, bucket, "test-prefix/src/curriculum.ts", bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	require.NoError(t, err)

	store := NewStore(client, bucket, "test-prefix/")

	got, err := blobstore.ReadAll(ctx, store, "src/curriculum.ts")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	blob, err := store.Open(ctx, "src/curriculum.ts")
	require.NoError(t, err)
	rc, err := blob.ReadRange(ctx, 6, 5)
	require.NoError(t, err)
	part, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "minio", string(part))
	require.NoError(t, rc.Close())
	require.NoError(t, blob.Close())

	_, err = store.Open(ctx, "src/missing.ts")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	require.NoError(t, client.RemoveObject(ctx, bucket, "test-prefix/src/curriculum.ts", minio.RemoveObjectOptions{}))
}

func TestStore_Key(t *testing.T) {
	s := NewStore(nil, "b", "releases/")
	assert.Equal(t, "releases/src/data/curriculum.ts", s.key("src/data/curriculum.ts"))
	assert.Equal(t, "releases/manifest.json", s.key("/manifest.json"))
}

func TestBlob_PinsObjectRevision(t *testing.T) {
	b := &minioBlob{etag: "abc123", versionID: "v7"}
	opts := b.getOptions()
	assert.Equal(t, "v7", opts.VersionID)
	assert.Equal(t, `"abc123"`, opts.Header().Get("If-Match"))

	opts = (&minioBlob{}).getOptions()
	assert.Empty(t, opts.Header().Get("If-Match"))
}
