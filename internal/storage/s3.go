package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Options configures the S3 backend
type S3Options struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string // custom S3-compatible endpoint; enables path-style addressing
}

// S3Store implements ObjectStore on AWS S3
type S3Store struct {
	client   *s3.Client
	endpoint string
}

// NewS3Store creates an S3 client from static credentials, falling back to the
// default AWS credential chain when none are configured
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, endpoint: opts.Endpoint}, nil
}

func classifyS3(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return classify(apiErr.ErrorCode(), err)
	}
	return classify("", err)
}

// Check lists the buckets visible to the credentials
func (s *S3Store) Check(ctx context.Context) ([]string, error) {
	out, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, classifyS3(err)
	}
	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

// Upload puts a local file at bucket/key
func (s *S3Store) Upload(ctx context.Context, localPath, bucket, key string) (string, error) {
	info, err := statLocal(localPath)
	if err != nil {
		return "", err
	}
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLocalFile, err)
	}
	defer f.Close()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType(localPath)),
	})
	if err != nil {
		return "", classifyS3(err)
	}
	return publicURL(s.endpoint, bucket, key), nil
}

// Download writes bucket/key to localPath, removing the partial file on failure
func (s *S3Store) Download(ctx context.Context, bucket, key, localPath string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classifyS3(err)
	}
	defer out.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLocalFile, err)
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		os.Remove(localPath)
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(localPath)
		return fmt.Errorf("%w: %w", ErrLocalFile, err)
	}
	return nil
}
