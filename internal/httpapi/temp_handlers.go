package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"image_gateway/internal/utils"
)

func isServableImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".gif":
		return true
	}
	return false
}

// handleTempImage serves a single published image from the local temp
// directory. Files expire shortly after publication, so a 404 here is
// routine.
func (d *Dependencies) handleTempImage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if name != filepath.Base(name) || !isServableImage(name) {
		utils.RespondWithError(w, http.StatusNotFound, "Image not found.")
		return
	}

	path := filepath.Join(d.TempImageDir, name)
	if _, err := os.Stat(path); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Image not found.")
		return
	}

	http.ServeFile(w, r, path)
}

// handleTempImagesList returns public URLs for every image currently in
// the temp directory.
func (d *Dependencies) handleTempImagesList(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(d.TempImageDir)
	if err != nil {
		if os.IsNotExist(err) {
			utils.RespondWithJSON(w, http.StatusOK, map[string]any{"images": []string{}})
			return
		}
		d.logger.Error("Temp image listing failed", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error. Please try again later.")
		return
	}

	images := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !isServableImage(entry.Name()) {
			continue
		}
		images = append(images, d.PublicBaseURL+"/temp/images/"+entry.Name())
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"images": images})
}
