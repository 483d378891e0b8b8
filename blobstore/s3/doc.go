// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil { ... }
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "curriculum-artifacts", "prod/")
//
// Range reads use a single GET with a Range header. Whole-object reads of
// large artifacts (the embeddings file is typically the largest) go through
// the s3/manager downloader, which fetches parts concurrently.
package s3
