// Package minio provides a BlobStore implementation using the MinIO client.
//
// Use it when curriculum artifacts are published to MinIO or another
// S3-compatible store (Ceph, Garage, SeaweedFS) instead of a checkout.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "curriculum", "releases/2024-06/")
//	engine := fingerprint.NewEngine(store)
package minio
