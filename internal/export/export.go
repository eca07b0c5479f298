// Package export writes ranking runs as CSV snapshots and uploads them to
// S3-compatible object storage.
package export

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/elonfeng/destradar/internal/config"
	"github.com/elonfeng/destradar/internal/store"
	"github.com/elonfeng/destradar/pkg/rank"
)

// Snapshot renders the ranked table of run as CSV.
func Snapshot(run *store.Run) ([]byte, error) {
	var buf bytes.Buffer
	if err := rank.WriteCSV(&buf, run.Ranked); err != nil {
		return nil, fmt.Errorf("write csv for run %d: %w", run.ID, err)
	}
	return buf.Bytes(), nil
}

// ObjectKey names the snapshot of run under prefix, grouped by origin.
func ObjectKey(prefix string, run *store.Run) string {
	name := fmt.Sprintf("%d_%s_%s.csv", run.ID, run.StartDate, run.EndDate)
	return path.Join(prefix, strings.ToLower(run.Origin), name)
}

// Uploader stores snapshots in a bucket.
type Uploader struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewUploader connects to the configured endpoint. No request is made until
// the first upload.
func NewUploader(cfg config.MinIOConfig) (*Uploader, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio export needs endpoint, access key and secret key")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio export needs a bucket")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: "us-east-1",
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Uploader{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket %s: %w", u.bucket, err)
	}
	return nil
}

// Upload writes the CSV snapshot of run and returns its object key.
func (u *Uploader) Upload(ctx context.Context, run *store.Run) (string, error) {
	data, err := Snapshot(run)
	if err != nil {
		return "", err
	}

	if err := u.EnsureBucket(ctx); err != nil {
		return "", err
	}

	key := ObjectKey(u.prefix, run)
	_, err = u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/csv"})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}
