// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind the Client interface so snapshot archives can
// be written to AWS S3 or a self-hosted MinIO instance, and so tests can use the
// testify mock in core/storage/mocks.
//
// # Operations
//
//   - BucketExists, MakeBucket: used by EnsureBucket at startup.
//   - PutObject: uploads an archived snapshot.
//   - StatObject, GetObject: read one back.
//   - ListObjects: lists archives under a feed prefix.
//   - RemoveObject, RemoveObjects: pruning.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	err = storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
package storage
