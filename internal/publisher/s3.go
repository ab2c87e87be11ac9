package publisher

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"cnft-drop/go-backend/internal/content"
)

type S3Config struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint (MinIO, R2, LocalStack) and
	// switches to path-style addressing.
	Endpoint string
	Prefix   string
	// PublicBaseURL is prepended to the object key to form the returned
	// URI. Empty derives it from the bucket and endpoint.
	PublicBaseURL   string
	AccessKeyID     string
	SecretAccessKey string
}

// S3 publishes records to an S3 bucket under content-addressed keys.
type S3 struct {
	client  *s3.Client
	bucket  string
	prefix  string
	baseURL string
}

func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 publisher: bucket is required")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, fmt.Errorf("s3 publisher: region is required")
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3 publisher: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		if cfg.Endpoint != "" {
			baseURL = joinURL(cfg.Endpoint, cfg.Bucket)
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return &S3{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, baseURL: baseURL}, nil
}

func (s *S3) Publish(ctx context.Context, record content.Record) (string, error) {
	obj, err := newObject(s.prefix, record)
	if err != nil {
		return "", err
	}
	// Keys are content addressed, so an existing object already holds
	// these exact bytes.
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(obj.Key),
	}); err == nil {
		return joinURL(s.baseURL, obj.Key), nil
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(obj.Key),
		Body:        bytes.NewReader(obj.Body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", obj.Key, err)
	}
	return joinURL(s.baseURL, obj.Key), nil
}
