package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStorage issues presigned uploads against a MinIO (or any S3
// compatible) bucket. Clients upload directly; the server never proxies
// file bodies.
type MinIOStorage struct {
	client    *minio.Client
	bucket    string
	endpoint  string
	publicURL string // External URL
	useSSL    bool
}

// Config holds MinIO connection configuration
type Config struct {
	Endpoint  string
	PublicURL string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// NewMinIO creates a new MinIO storage client and makes sure the bucket
// exists with public read access
func NewMinIO(ctx context.Context, cfg Config, logger *slog.Logger) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("📦 Created MinIO bucket", "bucket", cfg.Bucket)

		if err := client.SetBucketPolicy(ctx, cfg.Bucket, publicReadPolicy(cfg.Bucket)); err != nil {
			logger.Warn("⚠️  Failed to set bucket policy", "bucket", cfg.Bucket, "error", err)
		}
	}

	return newMinIOStorage(client, cfg), nil
}

func newMinIOStorage(client *minio.Client, cfg Config) *MinIOStorage {
	return &MinIOStorage{
		client:    client,
		bucket:    cfg.Bucket,
		endpoint:  cfg.Endpoint,
		publicURL: cfg.PublicURL,
		useSSL:    cfg.UseSSL,
	}
}

// PresignUpload returns a URL that accepts one PUT of objectKey with the
// given content type until expiry elapses
func (s *MinIOStorage) PresignUpload(ctx context.Context, objectKey, contentType string, expiry time.Duration) (string, error) {
	headers := http.Header{}
	headers.Set("Content-Type", contentType)

	u, err := s.client.PresignHeader(ctx, http.MethodPut, s.bucket, objectKey, expiry, nil, headers)
	if err != nil {
		return "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return u.String(), nil
}

// Delete removes an object
func (s *MinIOStorage) Delete(ctx context.Context, objectKey string) error {
	return s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{})
}

// PublicURL returns the URL an uploaded object is served from
func (s *MinIOStorage) PublicURL(objectKey string) string {
	return s.bucketURL() + objectKey
}

// ObjectKey is the inverse of PublicURL. URLs pointing anywhere else
// report false.
func (s *MinIOStorage) ObjectKey(publicURL string) (string, bool) {
	key, ok := strings.CutPrefix(publicURL, s.bucketURL())
	if !ok || key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

func (s *MinIOStorage) bucketURL() string {
	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s/", strings.TrimRight(s.publicURL, "/"), s.bucket)
	}

	scheme := "http"
	if s.useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/", scheme, s.endpoint, s.bucket)
}

func publicReadPolicy(bucket string) string {
	return `{
		"Version": "2012-10-17",
		"Statement": [{
			"Effect": "Allow",
			"Principal": {"AWS": ["*"]},
			"Action": ["s3:GetObject"],
			"Resource": ["arn:aws:s3:::` + bucket + `/*"]
		}]
	}`
}
