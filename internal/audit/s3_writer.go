package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"image_gateway/internal/utils"
)

// BatchWriter ships a batch of encoded audit records somewhere durable
// and returns an identifier for the written batch.
type BatchWriter interface {
	WriteBatch(ctx context.Context, records [][]byte) (string, error)
}

// S3Writer writes batches to S3 as date-partitioned JSON Lines objects.
type S3Writer struct {
	client   *s3.Client
	bucket   string
	prefix   string
	instance string
	logger   *utils.Logger
}

// NewS3Writer creates a new S3 batch writer
func NewS3Writer(ctx context.Context, bucket, region, prefix, instance string) (*S3Writer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Writer{
		client:   s3.NewFromConfig(cfg),
		bucket:   bucket,
		prefix:   prefix,
		instance: instance,
		logger:   utils.NewLogger("audit-s3"),
	}, nil
}

// WriteBatch uploads the records as one JSON Lines object.
// Key format: audit/2026/08/28/gateway-0-20260828-143022-123456789.jsonl
func (w *S3Writer) WriteBatch(ctx context.Context, records [][]byte) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	now := time.Now()
	key := fmt.Sprintf("%s%04d/%02d/%02d/%s-%s-%d.jsonl",
		w.prefix,
		now.Year(),
		now.Month(),
		now.Day(),
		w.instance,
		now.Format("20060102-150405"),
		now.Nanosecond(),
	)

	var buf bytes.Buffer
	for _, rec := range records {
		if !json.Valid(rec) {
			w.logger.Warn("Skipping malformed audit record")
			continue
		}
		buf.Write(rec)
		buf.WriteByte('\n')
	}

	_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audit batch: %w", err)
	}

	w.logger.Info("Wrote audit batch", "key", key, "count", len(records), "bytes", buf.Len())
	return key, nil
}
