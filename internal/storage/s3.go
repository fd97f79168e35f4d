package storage

import (
	"context"
	"io"
	"strings"
	"time"

	"alcyxob/physiotrack/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config" // Alias config to avoid clash
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// s3Storage implements the FileStorage interface using an S3-compatible backend.
type s3Storage struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucketName    string
	log           *zap.Logger
}

// NewS3Storage creates a new S3 storage service instance.
func NewS3Storage(ctx context.Context, cfg config.S3Config, log *zap.Logger) (FileStorage, error) {
	log = log.Named("s3")

	endpoint := endpointURL(cfg.Endpoint, cfg.UseSSL)

	// Custom resolver for S3-compatible endpoints (MinIO, DigitalOcean Spaces)
	customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if endpoint != "" {
			return aws.Endpoint{
				PartitionID:   "aws",
				URL:           endpoint,
				SigningRegion: cfg.Region,
			}, nil
		}
		// Fall back to default AWS endpoint resolution
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	loadOpts := []func(*awsCfg.LoadOptions) error{
		awsCfg.WithRegion(cfg.Region),
		awsCfg.WithEndpointResolverWithOptions(customResolver),
	}
	// Without static keys the default chain (env, shared profile, instance role) applies.
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsCfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsSDKConfig, err := awsCfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		log.Error("Failed to load AWS SDK config for S3", zap.Error(err))
		return nil, err
	}

	// Path-style addressing is required by most S3-compatible services
	s3Client := s3.NewFromConfig(awsSDKConfig, func(o *s3.Options) {
		o.UsePathStyle = endpoint != ""
	})

	log.Info("S3 storage initialized", zap.String("endpoint", endpoint), zap.String("bucket", cfg.BucketName))

	return &s3Storage{
		client:        s3Client,
		presignClient: s3.NewPresignClient(s3Client),
		bucketName:    cfg.BucketName,
		log:           log,
	}, nil
}

// endpointURL adds a scheme to a bare host:port endpoint, https unless useSSL is off.
func endpointURL(endpoint string, useSSL bool) string {
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

// PutObject uploads a prescription sheet.
func (s *s3Storage) PutObject(ctx context.Context, objectKey, contentType string, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
		Body:        body,
	})
	if err != nil {
		s.log.Error("Failed to put object", zap.String("key", objectKey), zap.Error(err))
		return err
	}
	s.log.Debug("Stored object", zap.String("key", objectKey))
	return nil
}

// GeneratePresignedDownloadURL creates a temporary URL for downloading (GET).
func (s *s3Storage) GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	if expires <= 0 {
		expires = DefaultPresignedURLExpiry
	}

	presignParams := &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	}

	req, err := s.presignClient.PresignGetObject(ctx, presignParams, s3.WithPresignExpires(expires))
	if err != nil {
		s.log.Error("Failed to generate presigned GET URL", zap.String("key", objectKey), zap.Error(err))
		return "", err
	}

	return req.URL, nil
}
