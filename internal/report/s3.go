package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aqrpole/kube-ai-sre-agent/internal/config"
)

const s3ReporterName = "s3"

// S3Client is the interface for uploading objects, allowing test injection
// of a mock.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Reporter archives reports as JSON objects in an S3 bucket, partitioned
// by date. Authentication uses the default AWS credential chain
// (IRSA-compatible).
type S3Reporter struct {
	client   S3Client
	bucket   string
	prefix   string
	logger   *slog.Logger
	retryCfg retryConfig
}

// NewS3Reporter creates an S3 reporter from config.
func NewS3Reporter(ctx context.Context, cfg config.S3ReporterConfig, logger *slog.Logger) (*S3Reporter, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 reporter: region must not be empty")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("s3 reporter: loading AWS config: %w", err)
	}

	return newS3ReporterWithClient(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix, logger)
}

// newS3ReporterWithClient creates an S3Reporter with an injected client
// (for testing).
func newS3ReporterWithClient(client S3Client, bucket, prefix string, logger *slog.Logger) (*S3Reporter, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 reporter: client must not be nil")
	}
	if bucket == "" {
		return nil, fmt.Errorf("s3 reporter: bucket must not be empty")
	}
	if logger == nil {
		return nil, errNilLogger
	}
	return &S3Reporter{
		client:   client,
		bucket:   bucket,
		prefix:   prefix,
		logger:   logger,
		retryCfg: defaultRetryConfig(),
	}, nil
}

func (s *S3Reporter) Name() string { return s3ReporterName }

// Deliver uploads the report as JSON with retry logic.
func (s *S3Reporter) Deliver(ctx context.Context, r *Report) error {
	if r == nil {
		return errNilReport
	}
	return deliverWithRetry(ctx, s.logger, s3ReporterName, s.retryCfg, func(ctx context.Context) error {
		return s.deliver(ctx, r)
	})
}

func (s *S3Reporter) deliver(ctx context.Context, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("s3 reporter: marshaling report: %w", err)
	}

	key := s.objectKey(r)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 reporter: uploading to s3://%s/%s: %w", s.bucket, key, err)
	}

	s.logger.Info("report archived to S3",
		"reporter", s3ReporterName,
		"bucket", s.bucket,
		"key", key,
		"incident_id", r.IncidentID,
	)
	return nil
}

// objectKey builds the S3 key from the configured prefix, a date partition,
// and the incident ID.
func (s *S3Reporter) objectKey(r *Report) string {
	ts := r.GeneratedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return fmt.Sprintf("%s%s/%s.json", s.prefix, ts.Format("2006/01/02"), r.IncidentID)
}

var _ Reporter = (*S3Reporter)(nil)
