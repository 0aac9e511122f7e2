// Package storage wraps S3-compatible object storage for payment proof
// files. Sellers upload proofs through presigned PUT URLs; administrators
// review them through presigned GET URLs. The service never proxies file
// bytes itself.
package storage

import (
	"context"
	"io"
	"time"
)

// PresignedURL contains the URL and metadata for a presigned operation.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ProofStore defines the object storage operations the marketplace uses.
type ProofStore interface {
	// PresignUpload creates a presigned PUT URL for the given object key.
	PresignUpload(ctx context.Context, objectKey, contentType string) (string, time.Time, error)

	// PresignDownload creates a presigned GET URL for an existing object.
	PresignDownload(ctx context.Context, objectKey string) (string, time.Time, error)

	// DownloadFile reads an object directly. The caller closes the reader.
	DownloadFile(ctx context.Context, objectKey string) (io.ReadCloser, error)

	// DeleteObject removes an object.
	DeleteObject(ctx context.Context, objectKey string) error

	// EnsureBucketExists creates the proof bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context) error
}
