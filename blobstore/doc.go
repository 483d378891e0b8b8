// Package blobstore provides read access to the artifacts Sentinel verifies.
//
// Artifacts are addressed by the path-like identifiers used as manifest keys
// (e.g. "src/data/curriculum.ts"). A BlobStore resolves those identifiers
// against a backend:
//
//   - LocalStore: local filesystem with mmap support
//   - MemoryStore: in-memory, for tests
//   - minio.Store: MinIO and other S3-compatible storage
//   - s3.Store: Amazon S3
//
// A missing artifact is reported as an error satisfying
// errors.Is(err, ErrNotFound); the fingerprint engine turns that into the
// Absent state instead of a failure.
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	}
//
//	type Blob interface {
//	    io.Closer
//	    Size() int64
//	    ReadRange(ctx, off, len int64) (io.ReadCloser, error)
//	}
package blobstore
