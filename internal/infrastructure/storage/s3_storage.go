// Package storage provides object storage implementations for export archival.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	platforminfra "github.com/shopsight/backend/internal/infrastructure/platform"
	infraconfig "github.com/shopsight/backend/internal/infrastructure/config"
)

// Ensure S3ExportArchive implements the fetcher's archive sink
var _ platforminfra.ArchiveSink = (*S3ExportArchive)(nil)

// jsonlContentType is the content type stored with archived export payloads
const jsonlContentType = "application/jsonl"

// S3ExportArchive stores raw export payloads in S3-compatible object storage
// (AWS S3, MinIO, etc.) so a suspect ingest can be replayed or audited
// without asking the platform for a fresh export.
type S3ExportArchive struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	presignExpiration time.Duration
	logger            *zap.Logger
}

// S3ExportArchiveOption is a functional option for configuring S3ExportArchive
type S3ExportArchiveOption func(*S3ExportArchive)

// WithLogger sets a custom logger for S3ExportArchive
func WithLogger(logger *zap.Logger) S3ExportArchiveOption {
	return func(s *S3ExportArchive) {
		s.logger = logger
	}
}

// WithPresignExpiration sets a custom presign expiration duration
func WithPresignExpiration(d time.Duration) S3ExportArchiveOption {
	return func(s *S3ExportArchive) {
		s.presignExpiration = d
	}
}

// NewS3ExportArchive creates a new S3ExportArchive from configuration.
// It supports any S3-compatible storage backend.
func NewS3ExportArchive(cfg *infraconfig.StorageConfig, opts ...S3ExportArchiveOption) (*S3ExportArchive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}

	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:9000" // MinIO default
	}

	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}

	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"", // session token (not used for static credentials)
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	archive := &S3ExportArchive{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		logger:        zap.NewNop(),
	}

	for _, opt := range opts {
		opt(archive)
	}

	if archive.presignExpiration == 0 {
		archive.presignExpiration = 15 * time.Minute
	}

	return archive, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup.
func (s *S3ExportArchive) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("creating archive bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// Ignore "BucketAlreadyOwnedByYou" error (race condition)
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// Store streams one raw export payload into the archive. The reader is
// consumed fully; it is the tee side of an in-flight result download.
func (s *S3ExportArchive) Store(ctx context.Context, storageKey string, r io.Reader) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(storageKey),
		Body:        r,
		ContentType: aws.String(jsonlContentType),
	})
	if err != nil {
		return fmt.Errorf("failed to archive export payload: %w", err)
	}

	s.logger.Debug("export payload archived",
		zap.String("bucket", s.bucket),
		zap.String("key", storageKey))
	return nil
}

// GenerateDownloadURL generates a presigned URL for retrieving an archived
// payload, valid for the configured presign expiration.
func (s *S3ExportArchive) GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error) {
	if storageKey == "" {
		return "", time.Time{}, errors.New("storage key is required")
	}

	if expiresIn <= 0 {
		expiresIn = s.presignExpiration
	}

	presignReq, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	}, s3.WithPresignExpires(expiresIn))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate download URL: %w", err)
	}

	return presignReq.URL, time.Now().Add(expiresIn), nil
}

// DeleteObject removes an archived payload, used by retention cleanup
func (s *S3ExportArchive) DeleteObject(ctx context.Context, storageKey string) error {
	if storageKey == "" {
		return errors.New("storage key is required")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		return fmt.Errorf("failed to delete archived payload: %w", err)
	}

	return nil
}

// ObjectExists checks if an archived payload exists
func (s *S3ExportArchive) ObjectExists(ctx context.Context, storageKey string) (bool, error) {
	if storageKey == "" {
		return false, errors.New("storage key is required")
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		var notFound *types.NotFound
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
			return false, nil
		}
		// Some S3-compatible services report not-found differently
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey") {
			return false, nil
		}
		return false, fmt.Errorf("failed to check object existence: %w", err)
	}

	return true, nil
}

// GetBucket returns the bucket name
func (s *S3ExportArchive) GetBucket() string {
	return s.bucket
}
