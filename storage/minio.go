package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"playdeck/config"
	"playdeck/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var minioClient *minio.Client

// InitMinio connects the MinIO client and ensures the artwork bucket exists.
func InitMinio(cfg *config.Config) error {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("created artwork bucket", logger.String("bucket", cfg.MinioBucket))
	}

	minioClient = client
	logger.Info("minio client initialized", logger.String("bucket", cfg.MinioBucket))
	return nil
}

// ArtworkStore keeps track artwork as objects under the artwork/ prefix.
type ArtworkStore struct {
	client *minio.Client
	bucket string
}

// NewArtworkStore creates an artwork store over the shared MinIO client.
// Returns nil when MinIO is not initialized; callers treat a nil store as
// "artwork disabled".
func NewArtworkStore(bucket string) *ArtworkStore {
	if minioClient == nil {
		return nil
	}
	return &ArtworkStore{client: minioClient, bucket: bucket}
}

// Put uploads an artwork blob and returns its object path.
func (s *ArtworkStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	objectName := "artwork/" + name
	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload artwork %s: %w", objectName, err)
	}
	return objectName, nil
}

// Get streams an artwork object. The caller closes the reader.
func (s *ArtworkStore) Get(ctx context.Context, objectName string) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch artwork %s: %w", objectName, err)
	}
	return object, nil
}
