package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrPublish is returned when an image could not be made publicly
// fetchable, after best-effort cleanup of any temporary artifacts.
var ErrPublish = errors.New("publish failed")

// Publisher turns generated image bytes or a remote URL into a stable,
// publicly fetchable URL.
type Publisher interface {
	// PublishBytes publishes raw image bytes under the given extension
	PublishBytes(ctx context.Context, data []byte, ext string) (string, error)

	// PublishRemote fetches the image behind the URL and publishes it
	PublishRemote(ctx context.Context, remoteURL string) (string, error)
}

// fetchBytes downloads the image behind a remote URL.
func fetchBytes(ctx context.Context, client *http.Client, remoteURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create fetch request: %v", ErrPublish, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch failed: %v", ErrPublish, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch returned status %d", ErrPublish, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read image: %v", ErrPublish, err)
	}

	return data, nil
}

func newFetchClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
