package providers

import (
	"context"
	"errors"
	"time"

	"image_gateway/internal/utils"
)

const (
	retryAttempts = 3
	retryBackoff  = 500 * time.Millisecond
)

// RetryProvider wraps a backend with bounded retries for transient
// upstream failures. A backend that answered but produced no image is not
// retried; the deny is the answer.
type RetryProvider struct {
	inner  ImageProvider
	logger *utils.Logger
}

// WithRetry wraps the given provider with retry behavior
func WithRetry(inner ImageProvider) *RetryProvider {
	return &RetryProvider{
		inner:  inner,
		logger: utils.NewLogger("provider-retry"),
	}
}

// Name returns the wrapped backend identifier
func (p *RetryProvider) Name() string {
	return p.inner.Name()
}

// Generate calls the wrapped backend, retrying transient failures with
// linear backoff.
func (p *RetryProvider) Generate(ctx context.Context, prompt string) (*ImageResult, error) {
	var lastErr error

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		result, err := p.inner.Generate(ctx, prompt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !errors.Is(err, ErrUpstream) {
			return nil, err
		}
		if attempt == retryAttempts {
			break
		}

		p.logger.Warn("Upstream call failed, retrying",
			"backend", p.inner.Name(), "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}

	return nil, lastErr
}

// Animate passes through the optional secondary capability when the
// wrapped backend supports it. Best-effort, never retried.
func (p *RetryProvider) Animate(ctx context.Context, mediaSetID, conversationID string) []Media {
	if animator, ok := p.inner.(Animator); ok {
		return animator.Animate(ctx, mediaSetID, conversationID)
	}
	return nil
}

// Close closes the wrapped backend
func (p *RetryProvider) Close() error {
	return p.inner.Close()
}
