package handlers

import (
	"net/http"
	"strconv"

	"github.com/captionworks/backend/internal/library"
)

type LibraryHandler struct {
	mediaRoot string
}

func NewLibraryHandler(mediaRoot string) *LibraryHandler {
	return &LibraryHandler{mediaRoot: mediaRoot}
}

// Scan lists video files that have no captions yet.
func (h *LibraryHandler) Scan(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	files, err := library.Scan(h.mediaRoot, limit)
	if err != nil {
		jsonError(w, "scan failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if files == nil {
		files = []library.ScanResult{}
	}

	jsonResponse(w, map[string]interface{}{
		"files": files,
		"count": len(files),
	}, http.StatusOK)
}
