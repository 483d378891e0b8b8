package blobstore

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressionFor(t *testing.T) {
	tests := []struct {
		name     string
		expected Compression
	}{
		{"backups/vectors_snapshot_v1.0.json", CompressionNone},
		{"backups/vectors_snapshot_v1.0.json.gz", CompressionGzip},
		{"backups/vectors_snapshot_v1.0.json.zst", CompressionZstd},
		{"backups/vectors_snapshot_v1.0.json.ZSTD", CompressionZstd},
		{"backups/vectors_snapshot_v1.0.json.lz4", CompressionLZ4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CompressionFor(tt.name))
		})
	}
}

func TestDecompress(t *testing.T) {
	payload := []byte(`{"L1":[0.25,0.5,0.75]}`)

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	zw, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zst := zw.EncodeAll(payload, nil)
	require.NoError(t, zw.Close())

	var lz bytes.Buffer
	lw := lz4.NewWriter(&lz)
	_, err = lw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, lw.Close())

	tests := []struct {
		name string
		data []byte
	}{
		{"snapshot.json", payload},
		{"snapshot.json.gz", gz.Bytes()},
		{"snapshot.json.zst", zst},
		{"snapshot.json.lz4", lz.Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Decompress(tt.name, bytes.NewReader(tt.data))
			require.NoError(t, err)
			defer r.Close()

			got, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}
}

func TestDecompress_CorruptGzip(t *testing.T) {
	_, err := Decompress("snapshot.json.gz", bytes.NewReader([]byte("not gzip")))
	require.Error(t, err)
}
