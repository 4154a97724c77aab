package clients

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StorageClient wraps the platform's S3-compatible blob store. Objects are
// keyed by the storage path recorded on the job row.
type StorageClient struct {
	client *minio.Client
	bucket string
}

func NewStorageClient(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*StorageClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("[StorageClient] failed to create client: %w", err)
	}
	return &StorageClient{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the configured bucket when it does not exist yet.
func (s *StorageClient) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("[StorageClient] failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("[StorageClient] failed to create bucket %s: %w", s.bucket, err)
	}
	slog.Info("[StorageClient] Created bucket", slog.String("bucket", s.bucket))
	return nil
}

// Upload stores data under key and reports transferred-byte percentages
// through onProgress as the transport drains the payload. onProgress may be
// nil. Percentages are monotonic and only reported when the integer value
// changes; 100 fires with the final chunk, not on completion of the call.
func (s *StorageClient) Upload(ctx context.Context, key string, data []byte, contentType string, onProgress func(percent int)) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if onProgress != nil {
		opts.Progress = &progressMeter{total: int64(len(data)), onChange: onProgress, last: -1}
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return fmt.Errorf("[StorageClient] failed to upload %s: %w", key, err)
	}
	return nil
}

// Download fetches the object stored under key.
func (s *StorageClient) Download(ctx context.Context, key string) ([]byte, error) {
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("[StorageClient] failed to get %s: %w", key, err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(object); err != nil {
		return nil, fmt.Errorf("[StorageClient] failed to read %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

// Remove deletes the object stored under key.
func (s *StorageClient) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("[StorageClient] failed to remove %s: %w", key, err)
	}
	return nil
}

// progressMeter satisfies the transfer-progress hook: the transport reads
// from it once per chunk written to the wire, with the chunk's size.
type progressMeter struct {
	total    int64
	seen     int64
	last     int
	onChange func(percent int)
}

func (p *progressMeter) Read(b []byte) (int, error) {
	n := len(b)
	p.seen += int64(n)

	percent := 100
	if p.total > 0 {
		percent = int(p.seen * 100 / p.total)
	}
	if percent > 100 {
		percent = 100
	}
	if percent != p.last {
		p.last = percent
		p.onChange(percent)
	}
	return n, nil
}
