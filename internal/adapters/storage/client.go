package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"leadmarket_backend/platform/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PresignedURLTTL is the expiration time for presigned URLs.
const PresignedURLTTL = 15 * time.Minute

// MinIOService implements ProofStore using MinIO.
type MinIOService struct {
	client      *minio.Client
	bucket      string
	maxFileSize int64
}

// NewMinIOService creates a new MinIO storage service bound to the payment
// proof bucket.
func NewMinIOService(cfg config.MinIOConfig) (*MinIOService, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIOService{
		client:      client,
		bucket:      cfg.GetMinioBucketPaymentProofs(),
		maxFileSize: cfg.GetMinIOMaxFileSize(),
	}, nil
}

// EnsureBucketExists creates the proof bucket if it doesn't exist.
func (s *MinIOService) EnsureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}

	return nil
}

// PresignUpload creates a presigned PUT URL for a payment proof. The caller
// supplies the full object key; uniqueness is the caller's concern.
func (s *MinIOService) PresignUpload(ctx context.Context, objectKey, contentType string) (string, time.Time, error) {
	if err := ValidateContentType(contentType); err != nil {
		return "", time.Time{}, err
	}

	expiresAt := time.Now().Add(PresignedURLTTL)
	presignedURL, err := s.client.PresignedPutObject(ctx, s.bucket, objectKey, PresignedURLTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate presigned upload URL: %w", err)
	}
	return presignedURL.String(), expiresAt, nil
}

// PresignDownload creates a presigned GET URL for an uploaded proof.
func (s *MinIOService) PresignDownload(ctx context.Context, objectKey string) (string, time.Time, error) {
	expiresAt := time.Now().Add(PresignedURLTTL)

	reqParams := make(url.Values)
	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucket, objectKey, PresignedURLTTL, reqParams)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate presigned download URL: %w", err)
	}
	return presignedURL.String(), expiresAt, nil
}

// DownloadFile downloads a proof directly from storage.
// The caller is responsible for closing the returned io.ReadCloser.
func (s *MinIOService) DownloadFile(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", objectKey, err)
	}
	return obj, nil
}

// DeleteObject removes a proof from storage.
func (s *MinIOService) DeleteObject(ctx context.Context, objectKey string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", objectKey, err)
	}
	return nil
}

// GetMaxFileSize returns the configured maximum file size in bytes.
func (s *MinIOService) GetMaxFileSize() int64 {
	return s.maxFileSize
}
