package httpapi

import (
	"encoding/json"
	"net/http"

	"image_gateway/internal/auth"
	"image_gateway/internal/utils"
)

type adminLoginRequest struct {
	Key string `json:"key"`
}

// handleAdminLogin exchanges the raw admin key for a short-lived JWT.
func (d *Dependencies) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if d.AdminKeyHash == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Admin access is not configured.")
		return
	}

	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	if !auth.VerifyAdminKey(d.AdminKeyHash, req.Key) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid admin key.")
		return
	}

	token, expiresAt, err := auth.GenerateAdminJWT(d.JWTSecret)
	if err != nil {
		d.logger.Error("Token generation failed", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": expiresAt,
	})
}
