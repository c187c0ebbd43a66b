package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"image_gateway/internal/audit"
	"image_gateway/internal/identity"
	"image_gateway/internal/providers"
	"image_gateway/internal/quota"
	"image_gateway/internal/utils"
	"image_gateway/internal/verify"
)

// promptRequest is the inbound body for POST /prompt. Field names are the
// client contract and cannot change.
type promptRequest struct {
	Prompt    string `json:"prompt"`
	IP        string `json:"ip"`
	DeviceID  string `json:"androidId"`
	AccountID string `json:"uid"`
}

// handlePrompt is the generation entry point.
//
// Flow:
//  1. Decode body, blocklist prefilter
//  2. Required-field check
//  3. Per-IP rate limit
//  4. Account email verification (when an account ID is supplied)
//  5. Identity resolve (lazy create)
//  6. Quota authorize
//  7. Upstream generate
//  8. Publish, respond with the public URL
func (d *Dependencies) handlePrompt(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}

	rec := &audit.Record{
		Timestamp: start,
		RequestID: uuid.NewString(),
		Prompt:    req.Prompt,
		Backend:   d.Provider.Name(),
	}

	if term, blocked := d.Blocklist.Match(req.Prompt); blocked {
		d.logger.Info("Prompt blocked", "term", term)
		d.finish(rec, "blocked_content", "", start)
		utils.RespondWithError(w, http.StatusBadRequest, "The provided prompt contains a restricted term.")
		return
	}

	if req.Prompt == "" || req.IP == "" || (req.DeviceID == "" && req.AccountID == "") {
		utils.RespondWithError(w, http.StatusBadRequest, "Please update your application.")
		return
	}

	allowed, err := d.RateLimit.Allow(ctx, req.IP)
	if err != nil {
		// Limiter outage fails open; the daily quota still applies.
		d.logger.Warn("Rate limiter unavailable", "error", err)
	} else if !allowed {
		d.finish(rec, "rate_limited", "", start)
		utils.RespondWithError(w, http.StatusTooManyRequests, "Too many requests. Slow down.")
		return
	}

	if req.AccountID != "" {
		verified, err := d.Verifier.EmailVerified(ctx, req.AccountID)
		if err != nil && !errors.Is(err, verify.ErrAccountNotFound) {
			d.logger.Error("Account verification failed", "error", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
			return
		}
		if err != nil || !verified {
			d.finish(rec, "unverified_account", "", start)
			utils.RespondWithError(w, http.StatusForbidden, "Email is not verified.")
			return
		}
	}

	user, err := d.Resolver.Resolve(ctx, req.DeviceID, req.AccountID, start)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidIdentity):
			utils.RespondWithError(w, http.StatusForbidden, "Invalid device ID.")
		case errors.Is(err, identity.ErrMissingIdentity):
			utils.RespondWithError(w, http.StatusBadRequest, "Please update your application.")
		default:
			d.logger.Error("Identity resolution failed", "error", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		}
		return
	}
	rec.Identity = user.Identity()

	decision, err := d.Quota.Authorize(ctx, user, start)
	if err != nil {
		d.logger.Error("Quota authorization failed", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		return
	}
	rec.Decision = decision.String()

	switch decision {
	case quota.DeniedBanned:
		d.finish(rec, rec.Decision, "", start)
		utils.RespondWithError(w, http.StatusForbidden, "User is banned. Upgrade to pro to access the service.")
		return
	case quota.DeniedQuota:
		d.finish(rec, rec.Decision, "", start)
		utils.RespondWithError(w, http.StatusForbidden, "Daily limit exceeded for free users. Upgrade to pro for unlimited access.")
		return
	}

	result, err := d.Provider.Generate(ctx, req.Prompt)
	if err != nil {
		d.logger.Error("Image generation failed", "backend", d.Provider.Name(), "error", err)
		rec.Error = err.Error()
		d.finish(rec, rec.Decision, "", start)
		if errors.Is(err, providers.ErrNoImageProduced) {
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to generate image.")
		} else {
			utils.RespondWithError(w, http.StatusInternalServerError, "An error occurred while generating the image.")
		}
		return
	}

	publicURL, err := d.publishResult(ctx, result)
	if err != nil {
		d.logger.Error("Publish failed", "error", err)
		rec.Error = err.Error()
		d.finish(rec, rec.Decision, "", start)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to publish image.")
		return
	}

	// Secondary animate capability: detached, best-effort, never awaited.
	if animator, ok := d.Provider.(providers.Animator); ok && result.MediaSetID != "" {
		go func(mediaSetID, conversationID string) {
			actx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			videos := animator.Animate(actx, mediaSetID, conversationID)
			d.logger.Debug("Animate finished", "videos", len(videos))
		}(result.MediaSetID, result.ConversationID)
	}

	d.finish(rec, rec.Decision, publicURL, start)

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{
		"url": publicURL,
		"img": publicURL,
	})
}

func (d *Dependencies) publishResult(ctx context.Context, result *providers.ImageResult) (string, error) {
	if len(result.ImageData) > 0 {
		return d.Publisher.PublishBytes(ctx, result.ImageData, ".jpg")
	}
	return d.Publisher.PublishRemote(ctx, result.ImageURL)
}

func (d *Dependencies) finish(rec *audit.Record, decision, imageURL string, start time.Time) {
	rec.Decision = decision
	rec.ImageURL = imageURL
	rec.LatencyMS = time.Since(start).Milliseconds()
	d.Audit.Enqueue(rec)
}
