package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "commutefeed_"

var (
	GeocodeCalls = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "geocode_api_calls_total",
		Help: "External geocoding API calls",
	})
	GeocodeCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "geocode_cache_hits_total",
		Help: "Geocode lookups served from the location cache",
	})
	RouteCalls = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "route_api_calls_total",
		Help: "External transit routing API calls",
	})
	FailedItems = prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricPrefix + "failure_log_appends_total",
		Help: "Items appended to a failure log",
	})
)

func init() {
	prometheus.MustRegister(GeocodeCalls, GeocodeCacheHits, RouteCalls, FailedItems)
}

// RegisterDBGauges exposes row counts of the pipeline tables so an operator can
// watch backlog drain without querying the database.
func RegisterDBGauges(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "listings_missing_coords",
			Help: "Listings still waiting for geocoding",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM listings WHERE latitude IS NULL OR longitude IS NULL")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "location_cache_entries",
			Help: "Memoized geocode results",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM location_cache")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "travel_time_observations",
			Help: "Recorded (station, destination) travel times",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM travel_times")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
