package httpapi

import (
	"context"
	"net/http"
	"time"

	"image_gateway/internal/utils"
)

// handleHealth reports liveness plus database reachability.
func (d *Dependencies) handleHealth(w http.ResponseWriter, r *http.Request) {
	if d.DB == nil {
		utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := d.DB.Health(ctx); err != nil {
		d.logger.Error("Health check failed", "error", err)
		utils.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"reason": "database unreachable",
		})
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
