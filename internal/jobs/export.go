package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"

	"github.com/yourorg/commute-feed/internal/geo"
	"github.com/yourorg/commute-feed/internal/logger"
	"github.com/yourorg/commute-feed/internal/store"
)

// ExportStore is the slice of the row store the export job reads.
type ExportStore interface {
	StationsWithCoords(ctx context.Context) ([]store.Station, error)
	GeocodedListings(ctx context.Context) ([]store.GeocodedListing, error)
}

// FeedRecord is one exported listing enriched with its nearest station.
// Computed fresh on every run, never persisted.
type FeedRecord struct {
	URL               string   `json:"url"`
	Title             string   `json:"title"`
	Price             *int64   `json:"price"`
	Size              *float64 `json:"size"`
	ZipCode           string   `json:"zip_code"`
	City              string   `json:"city"`
	Region            string   `json:"region"`
	Latitude          float64  `json:"latitude"`
	Longitude         float64  `json:"longitude"`
	NearestStation    string   `json:"nearest_station"`
	DistanceToStation float64  `json:"distance_to_station"`
}

// ExportResult accumulates what one run did.
type ExportResult struct {
	Listings int
	Stations int
}

// ExportJob joins every geocoded listing to its nearest station by
// great-circle distance and writes the full feed as one JSON array,
// replacing any previous export. The scan is O(listings x stations) with no
// spatial index; fine while the station count stays in the tens, and the
// simple loop keeps the first-seen tie-break deterministic.
type ExportJob struct {
	Store      ExportStore
	Logger     *logger.Logger
	OutputPath string
}

func (j *ExportJob) Run(ctx context.Context) (ExportResult, error) {
	var res ExportResult
	if j == nil || j.Store == nil {
		return res, errors.New("export job missing store")
	}
	if j.Logger == nil {
		j.Logger = logger.New()
	}
	if j.OutputPath == "" {
		return res, errors.New("export job missing output path")
	}

	stations, err := j.Store.StationsWithCoords(ctx)
	if err != nil {
		return res, err
	}
	if len(stations) == 0 {
		return res, errors.New("no stations with coordinates; run the geocode job first")
	}
	listings, err := j.Store.GeocodedListings(ctx)
	if err != nil {
		return res, err
	}
	j.Logger.Info("[export] loaded %d stations, %d geocoded listings", len(stations), len(listings))

	records := make([]FeedRecord, 0, len(listings))
	for i, l := range listings {
		name, dist := nearestStation(l.Latitude, l.Longitude, stations)
		records = append(records, toFeedRecord(l, name, dist))
		if (i+1)%100 == 0 || i+1 == len(listings) {
			j.Logger.Info("[export] processed %d/%d listings", i+1, len(listings))
		}
	}

	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return res, err
	}
	if dir := filepath.Dir(j.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return res, err
		}
	}
	if err := os.WriteFile(j.OutputPath, b, 0644); err != nil {
		return res, err
	}

	res.Listings = len(records)
	res.Stations = len(stations)
	j.Logger.Info("[export] wrote %d listings to %s", res.Listings, j.OutputPath)
	return res, nil
}

// nearestStation scans all stations and keeps the minimum distance. Strict
// less-than means the first station in query order wins exact ties.
func nearestStation(lat, lon float64, stations []store.Station) (string, float64) {
	minDist := math.Inf(1)
	name := ""
	for _, st := range stations {
		d := geo.Haversine(lat, lon, st.Latitude.Float64, st.Longitude.Float64)
		if d < minDist {
			minDist = d
			name = st.Name
		}
	}
	return name, roundMeters(minDist)
}

func roundMeters(d float64) float64 {
	return math.Round(d*100) / 100
}

func toFeedRecord(l store.GeocodedListing, station string, dist float64) FeedRecord {
	rec := FeedRecord{
		URL:               l.URL,
		Title:             l.Title,
		ZipCode:           l.ZipCode,
		City:              l.City,
		Region:            l.Region,
		Latitude:          l.Latitude,
		Longitude:         l.Longitude,
		NearestStation:    station,
		DistanceToStation: dist,
	}
	if l.Price.Valid {
		v := l.Price.Int64
		rec.Price = &v
	}
	if l.Size.Valid {
		v := l.Size.Float64
		rec.Size = &v
	}
	return rec
}
