package providers

import (
	"context"
	"errors"
)

var (
	// ErrUpstream is returned when a backend call fails or returns a
	// malformed body. Raw transport errors never escape the adapter.
	ErrUpstream = errors.New("upstream error")

	// ErrNoImageProduced is returned when the backend answered but no
	// terminal record or media could be extracted.
	ErrNoImageProduced = errors.New("no image produced")
)

// ImageResult is the normalized outcome of a generation call. Exactly one
// of ImageURL/ImageData is populated, depending on the backend shape.
type ImageResult struct {
	ImageURL  string // remote URL of the generated image
	ImageData []byte // raw image bytes, for backends that return them inline
	RawPrompt string

	// Conversational-session bookkeeping, empty for direct backends.
	MediaSetID     string
	ConversationID string
}

// Media describes one produced media item (image or animated variant).
type Media struct {
	URL    string
	Type   string
	Prompt string
}

// ImageProvider is implemented by each interchangeable image-generation
// backend. The brittle, reverse-engineered session logic stays fully
// contained inside adapter implementations so it can be swapped or mocked
// without touching policy code.
type ImageProvider interface {
	// Name returns the backend identifier used in config and audit records
	Name() string

	// Generate turns a validated prompt into a normalized image result
	Generate(ctx context.Context, prompt string) (*ImageResult, error)

	// Close performs cleanup when the provider is no longer needed
	Close() error
}

// Animator is an optional secondary capability: request an animated
// variant of previously produced media. Best-effort; implementations
// return an empty slice on failure rather than propagating an error.
type Animator interface {
	Animate(ctx context.Context, mediaSetID, conversationID string) []Media
}
