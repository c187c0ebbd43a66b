package providers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider for testing the retry wrapper
type stubProvider struct {
	results []error
	calls   int
	closed  bool
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Generate(ctx context.Context, prompt string) (*ImageResult, error) {
	err := s.results[s.calls]
	s.calls++
	if err != nil {
		return nil, err
	}
	return &ImageResult{ImageURL: "https://cdn.example/ok.jpg", RawPrompt: prompt}, nil
}

func (s *stubProvider) Close() error {
	s.closed = true
	return nil
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	stub := &stubProvider{results: []error{nil}}
	provider := WithRetry(stub)

	result, err := provider.Generate(context.Background(), "a fox")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/ok.jpg", result.ImageURL)
	assert.Equal(t, 1, stub.calls)
}

func TestRetry_RecoversFromTransientFailure(t *testing.T) {
	stub := &stubProvider{results: []error{
		fmt.Errorf("%w: status 502", ErrUpstream),
		nil,
	}}
	provider := WithRetry(stub)

	result, err := provider.Generate(context.Background(), "a fox")
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, 2, stub.calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	upstream := fmt.Errorf("%w: status 502", ErrUpstream)
	stub := &stubProvider{results: []error{upstream, upstream, upstream}}
	provider := WithRetry(stub)

	_, err := provider.Generate(context.Background(), "a fox")
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, retryAttempts, stub.calls)
}

func TestRetry_DoesNotRetryEmptyResult(t *testing.T) {
	stub := &stubProvider{results: []error{ErrNoImageProduced}}
	provider := WithRetry(stub)

	_, err := provider.Generate(context.Background(), "a fox")
	assert.ErrorIs(t, err, ErrNoImageProduced)
	assert.Equal(t, 1, stub.calls, "a definitive empty answer is final")
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	upstream := fmt.Errorf("%w: status 502", ErrUpstream)
	stub := &stubProvider{results: []error{upstream, upstream, upstream}}
	provider := WithRetry(stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Generate(ctx, "a fox")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stub.calls)
}

func TestRetry_PassthroughMethods(t *testing.T) {
	stub := &stubProvider{}
	provider := WithRetry(stub)

	assert.Equal(t, "stub", provider.Name())

	// A backend without the animate capability yields nothing.
	assert.Nil(t, provider.Animate(context.Background(), "ms-1", "conv-1"))

	require.NoError(t, provider.Close())
	assert.True(t, stub.closed)
}

func TestFactory(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		_, err := NewProvider(FactoryConfig{Backend: "nonsense"})
		assert.Error(t, err)
	})

	t.Run("synthesis", func(t *testing.T) {
		provider, err := NewProvider(FactoryConfig{
			Backend:   BackendSynthesis,
			Synthesis: SynthesisConfig{Endpoint: "http://localhost:1"},
		})
		require.NoError(t, err)
		assert.Equal(t, "synthesis", provider.Name())
	})

	t.Run("conversational", func(t *testing.T) {
		provider, err := NewProvider(FactoryConfig{
			Backend:        BackendConversational,
			Conversational: ConversationalConfig{Cookies: "session=abc"},
		})
		require.NoError(t, err)
		assert.Equal(t, "conversational", provider.Name())
	})

	t.Run("propagates constructor errors", func(t *testing.T) {
		_, err := NewProvider(FactoryConfig{Backend: BackendConversational})
		assert.Error(t, err)
	})
}
