package sink

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"arbscan/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the archive bucket settings. Endpoint is set for S3-compatible providers
// such as MinIO or R2 and left empty for AWS.
type S3Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	KeyPrefix      string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
	Prefix         string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver uploads the CSV table of each scan to a bucket.
type S3Archiver struct {
	client    putObjectAPI
	bucket    string
	keyPrefix string
	prefix    string
}

// NewS3Archiver builds an S3 client from cfg.
func NewS3Archiver(ctx context.Context, cfg S3Config) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("sink: s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sink: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return newS3Archiver(client, cfg), nil
}

func newS3Archiver(client putObjectAPI, cfg S3Config) *S3Archiver {
	return &S3Archiver{
		client:    client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
		prefix:    cfg.Prefix,
	}
}

func (a *S3Archiver) Name() string {
	return "s3"
}

// Write uploads the table and returns its s3:// location.
func (a *S3Archiver) Write(ctx context.Context, run model.ScanRun, rows []model.Opportunity) (string, error) {
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, run, rows); err != nil {
		return "", fmt.Errorf("sink: encode csv: %w", err)
	}

	key := path.Join(a.keyPrefix, FileName(a.prefix, run.StartedAt))
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
		Metadata:    map[string]string{"scan-id": run.ID},
	})
	if err != nil {
		return "", fmt.Errorf("sink: put object %s: %w", key, err)
	}
	return "s3://" + a.bucket + "/" + key, nil
}

// normaliseEndpoint adds an https scheme to bare host endpoints.
func normaliseEndpoint(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return "https://" + endpoint
}
