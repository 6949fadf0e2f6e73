package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioOptions configures the MinIO backend
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// MinioStore implements ObjectStore on a MinIO server
type MinioStore struct {
	client  *minio.Client
	baseURL string
}

// NewMinioStore creates a MinIO client
func NewMinioStore(opts MinioOptions) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	scheme := "http"
	if opts.UseSSL {
		scheme = "https"
	}
	return &MinioStore{client: client, baseURL: scheme + "://" + opts.Endpoint}, nil
}

func classifyMinio(err error) error {
	return classify(minio.ToErrorResponse(err).Code, err)
}

// Check lists the buckets visible to the credentials
func (s *MinioStore) Check(ctx context.Context) ([]string, error) {
	buckets, err := s.client.ListBuckets(ctx)
	if err != nil {
		return nil, classifyMinio(err)
	}
	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
	}
	return names, nil
}

// Upload puts a local file at bucket/key
func (s *MinioStore) Upload(ctx context.Context, localPath, bucket, key string) (string, error) {
	if _, err := statLocal(localPath); err != nil {
		return "", err
	}
	_, err := s.client.FPutObject(ctx, bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		return "", classifyMinio(err)
	}
	return publicURL(s.baseURL, bucket, key), nil
}

// Download writes bucket/key to localPath
func (s *MinioStore) Download(ctx context.Context, bucket, key, localPath string) error {
	if err := s.client.FGetObject(ctx, bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return classifyMinio(err)
	}
	return nil
}
