package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrArtifactNotFound is returned when no model artifact has been saved yet.
// Expected on first boot; the service stays operational without a model.
var ErrArtifactNotFound = errors.New("model artifact not found")

// MinIOConfig holds MinIO connection configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
	Object    string
}

// ArtifactStore persists the model artifact as a single object. An artifact
// is never partially overwritten: save is one PutObject of the whole bundle.
type ArtifactStore interface {
	SaveArtifact(ctx context.Context, data []byte) error
	LoadArtifact(ctx context.Context) ([]byte, error)
}

// MinIOClient wraps a MinIO client with the artifact bucket/object location
type MinIOClient struct {
	client *minio.Client
	bucket string
	object string
}

// NewMinIOClient creates a MinIO client with explicit configuration
func NewMinIOClient(config MinIOConfig) (*MinIOClient, error) {
	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	log.Printf("MinIO client initialized (endpoint: %s, bucket: %s)", config.Endpoint, config.Bucket)

	return &MinIOClient{
		client: minioClient,
		bucket: config.Bucket,
		object: config.Object,
	}, nil
}

// EnsureBucket creates the artifact bucket if it doesn't exist
func (m *MinIOClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		log.Printf("Creating MinIO bucket: %s", m.bucket)
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// SaveArtifact writes the whole artifact bundle in one object write
func (m *MinIOClient) SaveArtifact(ctx context.Context, data []byte) error {
	if err := m.EnsureBucket(ctx); err != nil {
		return err
	}

	info, err := m.client.PutObject(ctx, m.bucket, m.object,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("failed to save model artifact: %w", err)
	}

	log.Printf("Model artifact saved: %s/%s (size: %d bytes)", m.bucket, m.object, info.Size)
	return nil
}

// LoadArtifact reads the artifact bundle; ErrArtifactNotFound when no model
// has ever been trained.
func (m *MinIOClient) LoadArtifact(ctx context.Context) ([]byte, error) {
	object, err := m.client.GetObject(ctx, m.bucket, m.object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get model artifact: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && (resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket") {
			return nil, ErrArtifactNotFound
		}
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}
	return data, nil
}
