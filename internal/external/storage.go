package external

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"quickai/internal/config"
	"quickai/internal/types"
)

// S3MediaStore implements MediaStore against any S3-compatible object store
// (AWS S3, MinIO, LocalStack). Generated and edited images are written here
// and served by public URL.
type S3MediaStore struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

// NewS3MediaStore creates an S3MediaStore from media configuration.
// When cfg.Endpoint is set (local development), path-style addressing is used
// against that endpoint; otherwise the standard AWS endpoint for the region.
func NewS3MediaStore(ctx context.Context, cfg config.MediaConfig) (*S3MediaStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("media bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey.Unmask(), "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicBase := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if publicBase == "" {
		if cfg.Endpoint != "" {
			publicBase = fmt.Sprintf("%s/%s", strings.TrimSuffix(cfg.Endpoint, "/"), cfg.Bucket)
		} else {
			publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}

	return &S3MediaStore{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: publicBase,
	}, nil
}

// Upload implements MediaStore.
func (s *S3MediaStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamStorage, "failed to store media object", err)
	}
	return s.publicBaseURL + "/" + key, nil
}
