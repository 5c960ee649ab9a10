package jobs

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/yourorg/commute-feed/gmaps"
	"github.com/yourorg/commute-feed/internal/faillog"
	"github.com/yourorg/commute-feed/internal/logger"
	"github.com/yourorg/commute-feed/internal/metrics"
	"github.com/yourorg/commute-feed/internal/store"
)

// GeocodeStore is the slice of the row store the geocoding job reads and
// writes. Every call commits on its own, so a crash mid-run loses nothing
// already written and the next run picks up the remaining rows.
type GeocodeStore interface {
	ListingsMissingCoords(ctx context.Context) ([]store.ListingAddress, error)
	UpdateListingCoords(ctx context.Context, url string, lat, lon float64) error
	StationsMissingCoords(ctx context.Context) ([]store.Station, error)
	UpdateStationCoords(ctx context.Context, source, name string, lat, lon float64) error
}

// Resolver resolves a zip/city/region triple to coordinates, caching as it
// goes.
type Resolver interface {
	Resolve(ctx context.Context, zip, city, region string) (gmaps.Coordinates, bool)
}

// Geocoder performs a direct free-text lookup, used for stations whose
// address does not decompose into zip/city.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (gmaps.Coordinates, bool)
}

// GeocodeResult accumulates what one run did. Counters live here, not in
// globals, so callers and logs see exactly this run's work.
type GeocodeResult struct {
	ListingsUpdated int
	ListingsFailed  int
	StationsUpdated int
	StationsFailed  int
}

// GeocodeJob fills in missing coordinates on listings (via the location
// cache) and stations (via direct address lookup). Rows that fail stay
// unmodified and naturally retry on the next run, since they still match the
// missing-coordinates query.
type GeocodeJob struct {
	Store   GeocodeStore
	Cache   Resolver
	Geo     Geocoder
	Limiter *rate.Limiter
	Logger  *logger.Logger
	FailLog *faillog.Log
}

func (j *GeocodeJob) validate() error {
	if j == nil {
		return errors.New("nil geocode job")
	}
	if j.Store == nil {
		return errors.New("geocode job missing store")
	}
	if j.Cache == nil {
		return errors.New("geocode job missing resolver")
	}
	if j.Limiter == nil {
		j.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if j.Logger == nil {
		j.Logger = logger.New()
	}
	return nil
}

func (j *GeocodeJob) Run(ctx context.Context) (GeocodeResult, error) {
	var res GeocodeResult
	if err := j.validate(); err != nil {
		return res, err
	}
	if err := j.runListings(ctx, &res); err != nil {
		return res, err
	}
	if j.Geo != nil {
		if err := j.runStations(ctx, &res); err != nil {
			return res, err
		}
	}
	j.Logger.Info("[geocode] run complete: %d listings updated, %d failed; %d stations updated, %d failed",
		res.ListingsUpdated, res.ListingsFailed, res.StationsUpdated, res.StationsFailed)
	return res, nil
}

func (j *GeocodeJob) runListings(ctx context.Context, res *GeocodeResult) error {
	rows, err := j.Store.ListingsMissingCoords(ctx)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		j.Logger.Info("[geocode] all listings already geocoded")
		return nil
	}
	for _, row := range rows {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		coords, ok := j.Cache.Resolve(ctx, row.ZipCode, row.City, row.Region)
		if ok {
			if err := j.Store.UpdateListingCoords(ctx, row.URL, coords.Lat, coords.Lon); err != nil {
				return err
			}
			j.Logger.Info("[geocode] updated %s: %f, %f", row.URL, coords.Lat, coords.Lon)
			res.ListingsUpdated++
		} else {
			j.Logger.Warn("[geocode] could not determine location for %s (%s, %s)", row.URL, row.ZipCode, row.City)
			res.ListingsFailed++
		}
		// Wait even after a cache hit. Conservative, but it bounds the
		// worst-case external call rate without tracking hit/miss here.
		if err := j.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (j *GeocodeJob) runStations(ctx context.Context, res *GeocodeResult) error {
	stations, err := j.Store.StationsMissingCoords(ctx)
	if err != nil {
		return err
	}
	for _, st := range stations {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		address := st.Name
		if st.Address.Valid && st.Address.String != "" {
			address = st.Address.String
		}
		coords, ok := j.Geo.Geocode(ctx, address)
		if ok {
			if err := j.Store.UpdateStationCoords(ctx, st.Source, st.Name, coords.Lat, coords.Lon); err != nil {
				return err
			}
			j.Logger.Info("[geocode] station %s: %f, %f", st.Name, coords.Lat, coords.Lon)
			res.StationsUpdated++
		} else {
			j.Logger.Warn("[geocode] station lookup failed: %s", st.Name)
			res.StationsFailed++
			if j.FailLog != nil {
				if err := j.FailLog.Append(st.Name, address); err != nil {
					j.Logger.Error("[geocode] failure log: %v", err)
				}
				metrics.FailedItems.Inc()
			}
		}
		if err := j.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
