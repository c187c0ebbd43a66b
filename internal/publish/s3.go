package publish

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"image_gateway/internal/utils"
)

// S3Publisher uploads images to durable object storage and returns the
// provider's public URL.
type S3Publisher struct {
	client     *s3.Client
	bucket     string
	prefix     string
	region     string
	publicBase string
	httpClient *http.Client
	logger     *utils.Logger
}

// S3Config holds settings for the object-storage publisher
type S3Config struct {
	Bucket     string
	Region     string
	Prefix     string // key prefix, e.g. "images/"
	PublicBase string // optional CDN base; defaults to the bucket endpoint
}

// NewS3Publisher creates an S3 publisher from the ambient AWS config
func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Publisher{
		client:     s3.NewFromConfig(awsCfg),
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		region:     cfg.Region,
		publicBase: strings.TrimSuffix(cfg.PublicBase, "/"),
		httpClient: newFetchClient(),
		logger:     utils.NewLogger("publish-s3"),
	}, nil
}

// PublishBytes stages the image in a scoped temporary file, uploads it,
// and removes the temporary artifact on both success and failure paths.
func (p *S3Publisher) PublishBytes(ctx context.Context, data []byte, ext string) (string, error) {
	tmp, err := os.CreateTemp("", "imgpub-*"+ext)
	if err != nil {
		return "", fmt.Errorf("%w: failed to stage image: %v", ErrPublish, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("Failed to delete staged image", "path", tmpPath, "error", err)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: failed to stage image: %v", ErrPublish, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: failed to stage image: %v", ErrPublish, err)
	}

	staged, err := os.Open(tmpPath)
	if err != nil {
		return "", fmt.Errorf("%w: failed to reopen staged image: %v", ErrPublish, err)
	}
	defer staged.Close()

	key := p.prefix + uuid.NewString() + ext
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        staged,
		ContentType: aws.String(contentTypeForExt(ext)),
	})
	if err != nil {
		return "", fmt.Errorf("%w: upload failed: %v", ErrPublish, err)
	}

	return p.publicURL(key), nil
}

// PublishRemote fetches the remote image and uploads it.
func (p *S3Publisher) PublishRemote(ctx context.Context, remoteURL string) (string, error) {
	data, err := fetchBytes(ctx, p.httpClient, remoteURL)
	if err != nil {
		return "", err
	}

	return p.PublishBytes(ctx, data, ".jpg")
}

func (p *S3Publisher) publicURL(key string) string {
	if p.publicBase != "" {
		return fmt.Sprintf("%s/%s", p.publicBase, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.bucket, p.region, key)
}

func contentTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
