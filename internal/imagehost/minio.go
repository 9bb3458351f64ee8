package imagehost

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOConfig holds the settings for the MinIO host.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base URL objects are served from. Defaults to the
	// endpoint URL followed by the bucket.
	PublicURL string
}

// MinIO stores images in an S3-compatible bucket.
type MinIO struct {
	client  *minio.Client
	bucket  string
	baseURL string
	log     *zap.Logger
}

// NewMinIO connects to the endpoint and creates the bucket if it is missing.
func NewMinIO(ctx context.Context, cfg MinIOConfig, log *zap.Logger) (*MinIO, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client for endpoint %s: %w", cfg.Endpoint, err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
		log.Info("created image bucket", zap.String("bucket", cfg.Bucket))
	}

	baseURL := strings.TrimRight(cfg.PublicURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("%s/%s", client.EndpointURL().String(), cfg.Bucket)
	}
	return &MinIO{client: client, bucket: cfg.Bucket, baseURL: baseURL, log: log.Named("minio")}, nil
}

func (m *MinIO) Upload(ctx context.Context, u Upload) (Image, error) {
	key := ObjectKey(u.Filename)
	size := u.Size
	if size <= 0 {
		size = -1
	}

	info, err := m.client.PutObject(ctx, m.bucket, key, u.Body, size, minio.PutObjectOptions{
		ContentType: u.ContentType,
	})
	if err != nil {
		return Image{}, fmt.Errorf("failed to upload object %s to bucket %s: %w", key, m.bucket, err)
	}

	m.log.Debug("image uploaded", zap.String("key", info.Key), zap.Int64("bytes", info.Size))
	return Image{URL: m.baseURL + "/" + key, PublicID: key}, nil
}

func (m *MinIO) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	if err := m.client.RemoveObject(ctx, m.bucket, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %s: %w", publicID, err)
	}
	return nil
}

// ObjectKey builds a unique object name under notes/, keeping the file extension.
func ObjectKey(filename string) string {
	return fmt.Sprintf("notes/%s%s", uuid.NewString(), strings.ToLower(filepath.Ext(filename)))
}
