package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/yourorg/commute-feed/gmaps"
	"github.com/yourorg/commute-feed/internal/config"
	"github.com/yourorg/commute-feed/internal/faillog"
	"github.com/yourorg/commute-feed/internal/geocache"
	"github.com/yourorg/commute-feed/internal/ingest"
	"github.com/yourorg/commute-feed/internal/jobs"
	"github.com/yourorg/commute-feed/internal/logger"
	"github.com/yourorg/commute-feed/internal/redisx"
	"github.com/yourorg/commute-feed/internal/store"
)

// The pipeline runs its jobs in a fixed sequence: optional ingest, then
// geocoding, then travel-time sampling, then the nearest-station export.
// Every job commits per row, so rerunning after a crash only does the
// remaining work.
func main() {
	cfg := config.Load()
	lg := logger.New()

	st, err := store.Open(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("store open error: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := st.Ping(ctx); err != nil {
		cancel()
		log.Fatalf("postgres ping error: %v", err)
	}
	if err := st.Migrate(ctx); err != nil {
		cancel()
		log.Fatalf("postgres migrate error: %v", err)
	}
	cancel()

	destinations, err := config.LoadDestinations(cfg.DestinationsPath)
	if err != nil {
		log.Fatalf("destinations error: %v", err)
	}

	var rds *redisx.Client
	if cfg.RedisAddr != "" {
		rds = redisx.New(cfg.RedisAddr, "", cfg.RedisDB)
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rds.Ping(pingCtx); err != nil {
			lg.Warn("[pipeline] redis unavailable, continuing without it: %v", err)
			rds = nil
		}
		pingCancel()
	}

	client := gmaps.NewClient(cfg.GoogleKey)
	limiter := rate.NewLimiter(rate.Every(cfg.CallInterval), 1)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RawListingsPath != "" {
		raws, err := ingest.LoadRawListings(cfg.RawListingsPath)
		if err != nil {
			log.Fatalf("ingest error: %v", err)
		}
		ig := &ingest.Ingestor{Store: st, Logger: lg}
		res, err := ig.Run(rootCtx, raws)
		if err != nil {
			log.Fatalf("ingest error: %v", err)
		}
		lg.Info("[pipeline] ingest: %d inserted, %d skipped, %d dropped", res.Inserted, res.Skipped, res.Dropped)
	}

	if cfg.RawStationsPath != "" {
		rs, err := ingest.LoadRawStations(cfg.RawStationsPath)
		if err != nil {
			log.Fatalf("station ingest error: %v", err)
		}
		added, err := ingest.MergeStations(rootCtx, st, lg, rs.Rail, rs.Tram)
		if err != nil {
			log.Fatalf("station merge error: %v", err)
		}
		lg.Info("[pipeline] station merge: %d added", added)
	}

	cache := &geocache.Cache{Store: st, Geo: client, Redis: rds}

	geocode := &jobs.GeocodeJob{
		Store:   st,
		Cache:   cache,
		Geo:     client,
		Limiter: limiter,
		Logger:  lg,
		FailLog: faillog.New(cfg.GeocodeFailLog),
	}
	geoRes, err := geocode.Run(rootCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("geocode job failed: %v", err)
	}
	lg.Info("[pipeline] geocode: %d listings, %d stations updated", geoRes.ListingsUpdated, geoRes.StationsUpdated)

	travel := &jobs.TravelTimeJob{
		Store:        st,
		Router:       client,
		Destinations: destinations,
		Limiter:      limiter,
		Logger:       lg,
		FailLog:      faillog.New(cfg.TravelTimeFailLog),
		Config:       jobs.TravelTimeConfig{Refresh: cfg.RefreshTravelTimes},
	}
	travelRes, err := travel.Run(rootCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("travel-time job failed: %v", err)
	}
	lg.Info("[pipeline] travel-time: %d recorded, %d skipped, %d failed", travelRes.Recorded, travelRes.Skipped, travelRes.Failed)

	export := &jobs.ExportJob{Store: st, Logger: lg, OutputPath: cfg.ExportPath}
	exportRes, err := export.Run(rootCtx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("export job failed: %v", err)
	}
	lg.Info("[pipeline] export: %d listings against %d stations", exportRes.Listings, exportRes.Stations)
}
