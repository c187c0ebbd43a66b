package providers

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"image_gateway/internal/utils"
)

const synthesisTimeout = 120 * time.Second

// Fixed stylistic and sampling parameters sent with every request. Only
// the prompt and the seed vary per call.
const (
	synthesisWidth    = 1024
	synthesisHeight   = 1024
	synthesisSteps    = 30
	synthesisCfgScale = 7.0
	synthesisSampler  = "DPM++ 2M Karras"
)

// SynthesisProvider generates images through a direct image-synthesis
// backend: one request in, bytes or a CDN key out.
type SynthesisProvider struct {
	name       string
	endpoint   string
	apiKey     string
	cdnBaseURL string
	client     *http.Client
	logger     *utils.Logger
}

// SynthesisConfig holds the settings for the direct-synthesis backend
type SynthesisConfig struct {
	Endpoint   string // full URL of the synthesis endpoint
	APIKey     string // optional bearer token
	CDNBaseURL string // base URL for key-shaped responses
}

// NewSynthesisProvider creates a new direct image-synthesis provider
func NewSynthesisProvider(cfg SynthesisConfig) (*SynthesisProvider, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required for the synthesis provider")
	}

	return &SynthesisProvider{
		name:       "synthesis",
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		cdnBaseURL: strings.TrimSuffix(cfg.CDNBaseURL, "/"),
		client: &http.Client{
			Timeout: synthesisTimeout,
		},
		logger: utils.NewLogger("provider-synthesis"),
	}, nil
}

// Name returns the backend identifier
func (p *SynthesisProvider) Name() string {
	return p.name
}

// Generate issues a single synthesis request with fixed sampling
// parameters and a cryptographically random 32-bit seed.
func (p *SynthesisProvider) Generate(ctx context.Context, prompt string) (*ImageResult, error) {
	payload, err := json.Marshal(map[string]any{
		"prompt":    prompt,
		"width":     synthesisWidth,
		"height":    synthesisHeight,
		"steps":     synthesisSteps,
		"cfg_scale": synthesisCfgScale,
		"sampler":   synthesisSampler,
		"seed":      randomSeed(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal request: %v", ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: backend returned status %d", ErrUpstream, resp.StatusCode)
	}

	var result struct {
		Images []string `json:"images"`
		Key    string   `json:"key"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: malformed response body: %v", ErrUpstream, err)
	}

	switch {
	case len(result.Images) > 0:
		data, err := base64.StdEncoding.DecodeString(result.Images[0])
		if err != nil {
			return nil, fmt.Errorf("%w: malformed image payload: %v", ErrUpstream, err)
		}
		return &ImageResult{ImageData: data, RawPrompt: prompt}, nil

	case result.Key != "":
		return &ImageResult{
			ImageURL:  fmt.Sprintf("%s/%s", p.cdnBaseURL, result.Key),
			RawPrompt: prompt,
		}, nil
	}

	return nil, ErrNoImageProduced
}

// Close cleans up idle connections
func (p *SynthesisProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// randomSeed returns a cryptographically random 32-bit seed.
func randomSeed() uint32 {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return uint32(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint32(buf[:])
}
