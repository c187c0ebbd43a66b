package httpapi

import (
	"errors"
	"net/http"
	"time"

	"image_gateway/internal/identity"
	"image_gateway/internal/models"
	"image_gateway/internal/storage"
	"image_gateway/internal/utils"
)

// handleGrantYear upgrades the record for ?id= to a 1-year PAID tier,
// creating the record if absent.
func (d *Dependencies) handleGrantYear(w http.ResponseWriter, r *http.Request) {
	d.handleGrant(w, r, 365, "Account upgraded to yearly premium successfully.")
}

// handleGrantMonth upgrades the record for ?id= to a 30-day PAID tier.
func (d *Dependencies) handleGrantMonth(w http.ResponseWriter, r *http.Request) {
	d.handleGrant(w, r, 30, "Account upgraded to premium successfully.")
}

func (d *Dependencies) handleGrant(w http.ResponseWriter, r *http.Request, days int, message string) {
	deviceID := r.URL.Query().Get("id")
	if deviceID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Device ID is required.")
		return
	}
	if !identity.IsValidDeviceID(deviceID) {
		utils.RespondWithError(w, http.StatusForbidden, "Invalid device ID.")
		return
	}

	if err := d.Quota.Grant(r.Context(), deviceID, models.TierPaid, days, time.Now()); err != nil {
		d.logger.Error("Grant failed", "device_id", deviceID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"code":    200,
		"message": message,
	})
}

// handleCheck reports the effective tier for the device ID: PAID, or FREE
// for anything else (including banned records).
func (d *Dependencies) handleCheck(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("id")
	if !identity.IsValidDeviceID(deviceID) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid device ID.")
		return
	}

	user, err := d.Resolver.Lookup(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "User not found.")
			return
		}
		d.logger.Error("Check failed", "device_id", deviceID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		return
	}

	tier := "FREE"
	if user.IsPaid() {
		tier = "PAID"
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"msg": tier})
}

// handleInfo returns the full record snapshot for the device ID.
func (d *Dependencies) handleInfo(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("id")
	if !identity.IsValidDeviceID(deviceID) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid device ID format.")
		return
	}

	user, err := d.Resolver.Lookup(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "User not found.")
			return
		}
		d.logger.Error("Info failed", "device_id", deviceID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{
		"deviceId":             user.DeviceID,
		"accountId":            user.AccountID,
		"lastRequestTimestamp": user.LastRequestAt,
		"requestsCount":        user.RequestsCount,
		"tier":                 user.Tier,
		"tierExpiresAt":        user.TierExpiresAt,
	})
}

// handleBan marks the record for the device ID as BANNED.
func (d *Dependencies) handleBan(w http.ResponseWriter, r *http.Request) {
	deviceID := r.PathValue("id")
	if !identity.IsValidDeviceID(deviceID) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid device ID.")
		return
	}

	if err := d.Quota.Ban(r.Context(), deviceID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "User not found.")
			return
		}
		d.logger.Error("Ban failed", "device_id", deviceID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "User banned successfully."})
}

// handleBanlist returns the identities of all banned records.
func (d *Dependencies) handleBanlist(w http.ResponseWriter, r *http.Request) {
	banned, err := d.Quota.ListBanned(r.Context())
	if err != nil {
		d.logger.Error("Banlist failed", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		return
	}

	if banned == nil {
		banned = []string{}
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"bannedUsers": banned})
}
