package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrAccountNotFound is returned when the auth provider has no account
// for the given ID.
var ErrAccountNotFound = errors.New("account not found")

// Verifier answers the single question the prompt path asks of the
// external auth provider: does this account exist, and is its email
// verified? The provider is opaque beyond this boundary.
type Verifier interface {
	EmailVerified(ctx context.Context, accountID string) (bool, error)
}

// NoopVerifier treats every account as verified. Used when no auth
// provider credentials are configured.
type NoopVerifier struct{}

func NewNoopVerifier() *NoopVerifier {
	return &NoopVerifier{}
}

func (v *NoopVerifier) EmailVerified(ctx context.Context, accountID string) (bool, error) {
	return true, nil
}

const identityToolkitBaseURL = "https://identitytoolkit.googleapis.com"

// IdentityToolkitVerifier checks email verification through the Google
// Identity Toolkit accounts:lookup endpoint.
type IdentityToolkitVerifier struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewIdentityToolkitVerifier creates a verifier using the given API key
func NewIdentityToolkitVerifier(apiKey string) *IdentityToolkitVerifier {
	return &IdentityToolkitVerifier{
		apiKey:  apiKey,
		baseURL: identityToolkitBaseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// EmailVerified looks up the account and reports its email status.
func (v *IdentityToolkitVerifier) EmailVerified(ctx context.Context, accountID string) (bool, error) {
	body, err := json.Marshal(map[string]any{
		"localId": []string{accountID},
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal lookup request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/accounts:lookup?key=%s", v.baseURL, v.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("account lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("account lookup returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Users []struct {
			LocalID       string `json:"localId"`
			EmailVerified bool   `json:"emailVerified"`
		} `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to decode lookup response: %w", err)
	}

	if len(result.Users) == 0 {
		return false, ErrAccountNotFound
	}

	return result.Users[0].EmailVerified, nil
}
