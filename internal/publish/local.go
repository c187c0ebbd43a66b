package publish

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoder for transcoding
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // register WebP decoder for transcoding

	"image_gateway/internal/utils"
)

const jpegQuality = 90

// LocalPublisher persists images under a publicly served temp directory
// and schedules their deletion after a fixed retention window, whether or
// not a client ever fetched them. Lossy by design.
type LocalPublisher struct {
	dir       string
	baseURL   string
	retention time.Duration
	client    *http.Client
	logger    *utils.Logger
}

// LocalConfig holds settings for the local temp-serving publisher
type LocalConfig struct {
	Dir       string        // served directory, created if absent
	BaseURL   string        // public base URL of this server
	Retention time.Duration // how long a published file survives
}

// NewLocalPublisher creates a local publisher and its serving directory
func NewLocalPublisher(cfg LocalConfig) (*LocalPublisher, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create temp image dir: %w", err)
	}

	retention := cfg.Retention
	if retention <= 0 {
		retention = 120 * time.Second
	}

	return &LocalPublisher{
		dir:       cfg.Dir,
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		retention: retention,
		client:    newFetchClient(),
		logger:    utils.NewLogger("publish-local"),
	}, nil
}

// PublishBytes writes the image under a collision-resistant filename and
// schedules its removal after the retention window.
func (p *LocalPublisher) PublishBytes(ctx context.Context, data []byte, ext string) (string, error) {
	filename := uuid.NewString() + ext
	path := filepath.Join(p.dir, filename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: failed to write image: %v", ErrPublish, err)
	}

	p.scheduleDeletion(path)

	return fmt.Sprintf("%s/temp/images/%s", p.baseURL, filename), nil
}

// PublishRemote fetches the remote image, normalizes it to JPEG, and
// publishes the result locally.
func (p *LocalPublisher) PublishRemote(ctx context.Context, remoteURL string) (string, error) {
	data, err := fetchBytes(ctx, p.client, remoteURL)
	if err != nil {
		return "", err
	}

	return p.PublishBytes(ctx, normalizeJPEG(data), ".jpg")
}

// scheduleDeletion removes the file after the retention window elapses.
// Fire-and-forget: the response cycle never waits on it, and failures are
// logged and dropped.
func (p *LocalPublisher) scheduleDeletion(path string) {
	time.AfterFunc(p.retention, func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("Failed to delete expired temp image", "path", path, "error", err)
		}
	})
}

// normalizeJPEG re-encodes decodable images (JPEG, PNG, WebP) as JPEG.
// Undecodable payloads pass through unchanged rather than failing the
// publish.
func normalizeJPEG(data []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return data
	}
	return buf.Bytes()
}
