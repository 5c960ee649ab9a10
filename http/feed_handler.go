package httpapi

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/commute-feed/internal/jobs"
)

type FeedDeps struct {
	ExportPath string
}

// RegisterFeed serves the latest exported feed. The export job owns the
// file; this endpoint only reads it, so a feed is available as soon as the
// pipeline has run once.
func RegisterFeed(r chi.Router, d FeedDeps) {
	r.Get("/v1/feed", func(w http.ResponseWriter, req *http.Request) {
		b, err := os.ReadFile(d.ExportPath)
		if err != nil {
			render.Status(req, http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "feed_not_ready", "detail": "no export has been produced yet"})
			return
		}
		var records []jobs.FeedRecord
		if err := json.Unmarshal(b, &records); err != nil {
			render.Status(req, http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "feed_corrupt", "detail": err.Error()})
			return
		}
		render.JSON(w, req, map[string]any{"ok": true, "count": len(records), "listings": records})
	})
}
