package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/yourorg/commute-feed/http"
	"github.com/yourorg/commute-feed/internal/store"
)

func BuildRouter(st *store.Store, exportPath string) http.Handler {
	r := chi.NewRouter()
	r.Use(httprate.LimitByIP(100, 1*time.Minute))
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"ok":true}`)) })
	r.Handle("/metrics", promhttp.Handler())

	httpapi.RegisterFeed(r, httpapi.FeedDeps{ExportPath: exportPath})
	httpapi.RegisterStations(r, httpapi.StationsDeps{Store: st})

	return r
}
