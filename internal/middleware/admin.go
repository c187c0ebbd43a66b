package middleware

import (
	"net/http"
	"strings"

	"image_gateway/internal/auth"
	"image_gateway/internal/utils"
)

// AdminGuard protects administrative endpoints when an admin key hash is
// configured. With no hash configured it is a pass-through, preserving
// the historical public surface.
//
// Callers authenticate with either the raw admin key in X-Admin-Key or a
// JWT minted by the login endpoint in Authorization.
func AdminGuard(adminKeyHash string, jwtSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKeyHash == "" {
				next.ServeHTTP(w, r)
				return
			}

			if key := r.Header.Get("X-Admin-Key"); key != "" {
				if auth.VerifyAdminKey(adminKeyHash, key) {
					next.ServeHTTP(w, r)
					return
				}
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid admin key.")
				return
			}

			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing admin credentials.")
				return
			}
			if err := auth.ValidateAdminJWT(token, jwtSecret); err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
