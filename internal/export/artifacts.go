package export

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const artifactURLTTL = 24 * time.Hour

// ArtifactStore keeps generated exports in S3-compatible object storage so
// repeated downloads don't re-render the document.
type ArtifactStore struct {
	client *minio.Client
	bucket string
}

func NewArtifactStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*ArtifactStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &ArtifactStore{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the artifact bucket when it does not exist yet.
func (s *ArtifactStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// Put uploads an artifact and returns a presigned download URL valid for 24
// hours.
func (s *ArtifactStore) Put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload artifact: %w", err)
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, artifactURLTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign artifact: %w", err)
	}
	return presigned.String(), nil
}
