package syncer

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/devlens/devlens/internal/server/models"
)

// s3Client is the slice of the S3 API the archiver uses.
type s3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes each successful sync run's raw provider payload to an S3
// bucket, keyed by user, provider, day, and run id.
type S3Archiver struct {
	client s3Client
	bucket string
	now    func() time.Time
}

// S3Config carries the settings needed to reach the archive bucket. Endpoint
// is set when targeting an S3-compatible store (MinIO, localstack).
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

func NewS3Archiver(ctx context.Context, cfg S3Config) (*S3Archiver, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Archiver{client: client, bucket: cfg.Bucket, now: time.Now}, nil
}

func (a *S3Archiver) Archive(ctx context.Context, userID string, provider models.Provider, runID string, raw []byte) error {
	key := fmt.Sprintf("raw/%s/%s/%s/%s.json", userID, provider, a.now().UTC().Format("2006-01-02"), runID)

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(raw),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("error archiving payload: %w", err)
	}
	return nil
}
