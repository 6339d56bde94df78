package exports

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
)

// ReportStorage uploads generated export files to the reports bucket.
// The bucket is created lazily on first use.
type ReportStorage struct {
	client *minio.Client
	bucket string

	ensureOnce sync.Once
	ensureErr  error
}

func NewReportStorage(client *minio.Client, bucket string) *ReportStorage {
	return &ReportStorage{
		client: client,
		bucket: strings.TrimSpace(bucket),
	}
}

func (s *ReportStorage) ensureBucket(ctx context.Context) error {
	s.ensureOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.ensureErr = err
			return
		}
		if exists {
			return
		}
		s.ensureErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	})

	if s.ensureErr != nil {
		return fmt.Errorf("ensure reports bucket %q: %w", s.bucket, s.ensureErr)
	}

	return nil
}

func (s *ReportStorage) Upload(ctx context.Context, key string, body []byte, contentType string) error {
	if s.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if key == "" || len(body) == 0 {
		return fmt.Errorf("empty export object")
	}

	if err := s.ensureBucket(ctx); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put export object: %w", err)
	}

	return nil
}
