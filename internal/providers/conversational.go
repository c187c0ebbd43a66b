package providers

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"image_gateway/internal/utils"
)

const (
	conversationalBaseURL = "https://www.meta.ai"
	conversationalTimeout = 60 * time.Second

	// Anti-forgery tokens are scraped out of the landing page HTML by
	// locating these fixed marker substrings.
	lsdMarker  = `"LSD",[],{"token":"`
	dtsgMarker = `"DTSGInitialData",[],{"token":"`
	markerEnd  = `"}`

	sendMessageDocID  = "7783822248314888"
	animateDocID      = "7938413782872932"
	streamingDoneMark = "OVERALL_DONE"
)

// ConversationalProvider generates images through an undocumented
// conversational-session backend: it scrapes session tokens from a landing
// page, issues an authenticated GraphQL mutation, and picks the terminal
// record out of a newline-delimited JSON stream.
type ConversationalProvider struct {
	name    string
	baseURL string
	cookies string
	client  *http.Client
	logger  *utils.Logger
}

// ConversationalConfig holds the settings for the conversational backend
type ConversationalConfig struct {
	Cookies string // session cookies, env-provided
	BaseURL string // override for tests; defaults to the public site
}

// NewConversationalProvider creates a new conversational-session provider
func NewConversationalProvider(cfg ConversationalConfig) (*ConversationalProvider, error) {
	if cfg.Cookies == "" {
		return nil, fmt.Errorf("cookies are required for the conversational provider")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = conversationalBaseURL
	}

	return &ConversationalProvider{
		name:    "conversational",
		baseURL: baseURL,
		cookies: cfg.Cookies,
		client: &http.Client{
			Timeout: conversationalTimeout,
		},
		logger: utils.NewLogger("provider-conversational"),
	}, nil
}

// Name returns the backend identifier
func (p *ConversationalProvider) Name() string {
	return p.name
}

// session holds the per-call anti-forgery tokens.
type session struct {
	lsd  string
	dtsg string
}

// newSession fetches the landing page and scrapes the two tokens. Tokens
// are ephemeral and refreshed on every call: the external site invalidates
// sessions unpredictably, so nothing is cached across calls.
func (p *ConversationalProvider) newSession(ctx context.Context) (*session, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session request: %v", ErrUpstream, err)
	}
	req.Header.Set("Cookie", p.cookies)
	req.Header.Set("Origin", p.baseURL)
	req.Header.Set("Referer", p.baseURL+"/")
	req.Header.Set("X-ASBD-ID", "129477")
	req.Header.Set("User-Agent", "okhttp/4.3.1")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: session fetch failed: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read session page: %v", ErrUpstream, err)
	}

	lsd := extractBetween(string(body), lsdMarker, markerEnd)
	dtsg := extractBetween(string(body), dtsgMarker, markerEnd)
	if lsd == "" || dtsg == "" {
		return nil, fmt.Errorf("%w: session tokens not found in landing page", ErrUpstream)
	}

	return &session{lsd: lsd, dtsg: dtsg}, nil
}

// Generate sends the prompt through a fresh session and extracts the
// first generated image from the terminal streaming record.
func (p *ConversationalProvider) Generate(ctx context.Context, prompt string) (*ImageResult, error) {
	sess, err := p.newSession(ctx)
	if err != nil {
		return nil, err
	}

	conversationID := uuid.NewString()

	variables, err := json.Marshal(map[string]any{
		"message":                map[string]string{"sensitive_string_value": prompt},
		"externalConversationId": conversationID,
		"offlineThreadingId":     offlineThreadingID(),
		"suggestedPromptIndex":   nil,
		"promptPrefix":           nil,
		"entrypoint":             "ABRA__CHAT__TEXT",
		"icebreaker_type":        "TEXT_V2",
		"attachments":            []any{},
		"attachmentsV2":          []any{},
		"activeMediaSets":        nil,
		"activeCardVersions":     []any{},
		"gkAbraArtifactsEnabled": false,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal variables: %v", ErrUpstream, err)
	}

	form := url.Values{}
	form.Set("fb_dtsg", sess.dtsg)
	form.Set("lsd", sess.lsd)
	form.Set("fb_api_caller_class", "RelayModern")
	form.Set("fb_api_req_friendly_name", "useAbraSendMessageMutation")
	form.Set("variables", string(variables))
	form.Set("server_timestamps", "true")
	form.Set("doc_id", sendMessageDocID)

	endpoint := fmt.Sprintf("%s/api/graphql/?fb_dtsg=%s&lsd=%s",
		p.baseURL, url.QueryEscape(sess.dtsg), url.QueryEscape(sess.lsd))

	body, err := p.postForm(ctx, endpoint, sess, form, "")
	if err != nil {
		return nil, err
	}

	terminal := lastTerminalRecord(body)
	if terminal == nil {
		return nil, ErrNoImageProduced
	}

	medias, mediaSetID := extractImagineMedia(&terminal.Data.Node.BotResponseMessage)
	if len(medias) == 0 {
		return nil, ErrNoImageProduced
	}

	return &ImageResult{
		ImageURL:       medias[0].URL,
		RawPrompt:      prompt,
		MediaSetID:     mediaSetID,
		ConversationID: terminal.Data.Node.Conversation.ExternalConversationID,
	}, nil
}

// Animate requests an animated variant of previously produced media
// through a fresh session. Best-effort: any failure is logged and an
// empty slice returned.
func (p *ConversationalProvider) Animate(ctx context.Context, mediaSetID, conversationID string) []Media {
	sess, err := p.newSession(ctx)
	if err != nil {
		p.logger.Warn("Animate session failed", "error", err)
		return nil
	}

	variables, err := json.Marshal(map[string]any{
		"input": map[string]any{
			"client_mutation_id":       "2",
			"actor_id":                 "512054858655166",
			"external_conversation_id": conversationID,
			"image_id":                 nil,
			"media_set_id":             mediaSetID,
			"media_type":               "IMAGE",
		},
	})
	if err != nil {
		p.logger.Warn("Animate marshal failed", "error", err)
		return nil
	}

	form := url.Values{}
	form.Set("fb_dtsg", sess.dtsg)
	form.Set("lsd", sess.lsd)
	form.Set("fb_api_caller_class", "RelayModern")
	form.Set("fb_api_req_friendly_name", "useAbraImagineAnimateMutation")
	form.Set("variables", string(variables))
	form.Set("server_timestamps", "true")
	form.Set("doc_id", animateDocID)

	body, err := p.postForm(ctx, p.baseURL+"/api/graphql/", sess, form, conversationID)
	if err != nil {
		p.logger.Warn("Animate request failed", "error", err)
		return nil
	}

	var envelope struct {
		Data struct {
			MediaSet struct {
				ImagineMedia []imagineMedia `json:"imagine_media"`
			} `json:"media_set"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		p.logger.Warn("Animate response malformed", "error", err)
		return nil
	}

	medias := make([]Media, 0, len(envelope.Data.MediaSet.ImagineMedia))
	for _, m := range envelope.Data.MediaSet.ImagineMedia {
		medias = append(medias, Media{URL: m.URI, Type: m.MediaType, Prompt: m.Prompt})
	}
	return medias
}

// Close cleans up idle connections
func (p *ConversationalProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

func (p *ConversationalProvider) postForm(ctx context.Context, endpoint string, sess *session, form url.Values, conversationID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrUpstream, err)
	}

	referer := p.baseURL + "/"
	if conversationID != "" {
		referer = fmt.Sprintf("%s/c/%s", p.baseURL, conversationID)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-FB-LSD", sess.lsd)
	req.Header.Set("X-ASBD-ID", "129477")
	req.Header.Set("Origin", p.baseURL)
	req.Header.Set("Referer", referer)
	req.Header.Set("Cookie", p.cookies)

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

	return body, nil
}

// streamEnvelope mirrors the nested shape of one streamed GraphQL record.
type streamEnvelope struct {
	Data struct {
		Node struct {
			BotResponseMessage botResponseMessage `json:"bot_response_message"`
			Conversation       struct {
				ExternalConversationID string `json:"external_conversation_id"`
			} `json:"conversation"`
		} `json:"node"`
	} `json:"data"`
}

type botResponseMessage struct {
	StreamingState string `json:"streaming_state"`
	Snippet        string `json:"snippet"`
	ImagineCard    *struct {
		Session struct {
			MediaSets []struct {
				MediaSetID   string         `json:"media_set_id"`
				ImagineMedia []imagineMedia `json:"imagine_media"`
			} `json:"media_sets"`
		} `json:"session"`
	} `json:"imagine_card"`
}

type imagineMedia struct {
	URI       string `json:"uri"`
	MediaType string `json:"media_type"`
	Prompt    string `json:"prompt"`
}

// lastTerminalRecord scans the newline-delimited JSON stream, parses each
// line independently (unparsable lines are skipped), and keeps the last
// record whose streaming state equals the terminal marker.
func lastTerminalRecord(body []byte) *streamEnvelope {
	var terminal *streamEnvelope
	for _, line := range strings.Split(string(body), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var envelope streamEnvelope
		if err := json.Unmarshal([]byte(line), &envelope); err != nil {
			continue
		}
		if envelope.Data.Node.BotResponseMessage.StreamingState == streamingDoneMark {
			record := envelope
			terminal = &record
		}
	}
	return terminal
}

// extractImagineMedia flattens the nested media-set structure of a
// terminal record into the normalized media list.
func extractImagineMedia(msg *botResponseMessage) ([]Media, string) {
	if msg.ImagineCard == nil {
		return nil, ""
	}

	var medias []Media
	var mediaSetID string
	for _, set := range msg.ImagineCard.Session.MediaSets {
		if mediaSetID == "" {
			mediaSetID = set.MediaSetID
		}
		for _, m := range set.ImagineMedia {
			medias = append(medias, Media{URL: m.URI, Type: m.MediaType, Prompt: m.Prompt})
		}
	}
	return medias, mediaSetID
}

// extractBetween returns the substring of text between the first
// occurrence of start and the following occurrence of end, or "".
func extractBetween(text, start, end string) string {
	i := strings.Index(text, start)
	if i < 0 {
		return ""
	}
	i += len(start)
	j := strings.Index(text[i:], end)
	if j < 0 {
		return ""
	}
	return text[i : i+j]
}

// offlineThreadingID composes a 64-bit threading ID from a millisecond
// timestamp shifted left 22 bits OR-ed with 22 low bits of randomness,
// returned in decimal form. Two calls in the same millisecond still
// differ with high probability via the random component.
func offlineThreadingID() string {
	const mask22 = uint64(0x3FFFFF)

	var buf [8]byte
	randomBits := mask22 / 2
	if _, err := rand.Read(buf[:]); err == nil {
		randomBits = binary.BigEndian.Uint64(buf[:]) & mask22
	}

	timestamp := uint64(time.Now().UnixMilli())
	return strconv.FormatUint(timestamp<<22|randomBits, 10)
}
