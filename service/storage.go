package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Amaz3n/inkwell/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArtifactStorage is the object-storage collaborator. Paths are org-scoped;
// implementations must refuse paths outside the org prefix and refuse
// overwrite unless upsert is set. Executed artifacts are append-only.
type ArtifactStorage interface {
	Download(ctx context.Context, orgID, path string) ([]byte, error)
	Upload(ctx context.Context, orgID, path string, data []byte, contentType string, upsert bool) error
}

// MinioStorage stores artifacts in a MinIO bucket.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

func NewMinioStorage(cfg *config.MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinioStorage{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// checkScope rejects paths that escape the org's prefix.
func checkScope(orgID, path string) error {
	if orgID == "" || !strings.HasPrefix(path, orgID+"/") || strings.Contains(path, "..") {
		return NewError(CodeStorageFailure, "artifact path is not scoped to the org")
	}
	return nil
}

func (s *MinioStorage) Download(ctx context.Context, orgID, path string) ([]byte, error) {
	if err := checkScope(orgID, path); err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

func (s *MinioStorage) Upload(ctx context.Context, orgID, path string, data []byte, contentType string, upsert bool) error {
	if err := checkScope(orgID, path); err != nil {
		return err
	}

	if !upsert {
		_, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
		if err == nil {
			return NewError(CodeStorageFailure, "artifact already exists at %s", path)
		}
	}

	_, err := s.client.PutObject(ctx, s.bucket, path, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}

	return nil
}
