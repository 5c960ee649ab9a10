package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/yourorg/commute-feed/internal/store"
)

type StationsDeps struct {
	Store *store.Store
}

type stationView struct {
	Source    string  `json:"source"`
	Name      string  `json:"name"`
	URL       string  `json:"url,omitempty"`
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func RegisterStations(r chi.Router, d StationsDeps) {
	r.Get("/v1/stations", func(w http.ResponseWriter, req *http.Request) {
		stations, err := d.Store.StationsWithCoords(req.Context())
		if err != nil {
			render.Status(req, http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "store_error", "detail": err.Error()})
			return
		}
		views := make([]stationView, 0, len(stations))
		for _, st := range stations {
			views = append(views, stationView{
				Source:    st.Source,
				Name:      st.Name,
				URL:       st.URL.String,
				Address:   st.Address.String,
				Latitude:  st.Latitude.Float64,
				Longitude: st.Longitude.Float64,
			})
		}
		render.JSON(w, req, map[string]any{"ok": true, "count": len(views), "stations": views})
	})

	r.Get("/v1/travel-times", func(w http.ResponseWriter, req *http.Request) {
		times, err := d.Store.TravelTimes(req.Context())
		if err != nil {
			render.Status(req, http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "store_error", "detail": err.Error()})
			return
		}
		type view struct {
			Station       string  `json:"station"`
			Destination   string  `json:"destination"`
			Minutes       int     `json:"minutes"`
			BestDeparture string  `json:"best_departure"`
			Latitude      float64 `json:"latitude"`
			Longitude     float64 `json:"longitude"`
		}
		views := make([]view, 0, len(times))
		for _, tt := range times {
			views = append(views, view(tt))
		}
		render.JSON(w, req, map[string]any{"ok": true, "count": len(views), "travel_times": views})
	})
}
