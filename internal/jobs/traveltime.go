package jobs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/yourorg/commute-feed/gmaps"
	"github.com/yourorg/commute-feed/internal/config"
	"github.com/yourorg/commute-feed/internal/faillog"
	"github.com/yourorg/commute-feed/internal/logger"
	"github.com/yourorg/commute-feed/internal/metrics"
	"github.com/yourorg/commute-feed/internal/store"
)

// TravelTimeStore is the slice of the row store the travel-time job uses.
type TravelTimeStore interface {
	StationsWithCoords(ctx context.Context) ([]store.Station, error)
	HasTravelTime(ctx context.Context, station, destination string) (bool, error)
	InsertTravelTime(ctx context.Context, tt store.TravelTime) (bool, error)
	ReplaceTravelTime(ctx context.Context, tt store.TravelTime) error
}

// Router samples one transit route.
type Router interface {
	Route(ctx context.Context, origin, destination gmaps.Coordinates, departure time.Time) (int, bool)
}

// TravelTimeConfig tunes the departure grid. The defaults match a working-day
// commute window: 09:00 to 18:00 in 30 minute steps, 19 samples per pair.
type TravelTimeConfig struct {
	GridStart   string // "HH:MM"
	GridEnd     string // "HH:MM"
	StepMinutes int
	// Refresh re-samples pairs that already have an observation. Off by
	// default: a recorded pair is terminal and skipped forever.
	Refresh bool
	// Now is the clock used to anchor the grid to a calendar day.
	Now func() time.Time
}

// TravelTimeResult accumulates what one run did.
type TravelTimeResult struct {
	Recorded int
	Skipped  int
	Failed   int
}

// TravelTimeJob records, for every (station, destination) pair without an
// observation, the minimum transit time across the departure grid. Grid
// points that return nothing are simply skipped; a pair where every point
// came back empty goes to the failure log and is NOT written, so the next
// run retries it from scratch.
type TravelTimeJob struct {
	Store        TravelTimeStore
	Router       Router
	Destinations []config.Destination
	Limiter      *rate.Limiter
	Logger       *logger.Logger
	FailLog      *faillog.Log
	Config       TravelTimeConfig
}

func (j *TravelTimeJob) validate() error {
	if j == nil {
		return errors.New("nil travel-time job")
	}
	if j.Store == nil {
		return errors.New("travel-time job missing store")
	}
	if j.Router == nil {
		return errors.New("travel-time job missing router")
	}
	if len(j.Destinations) == 0 {
		return errors.New("travel-time job requires at least one destination")
	}
	if j.Config.GridStart == "" {
		j.Config.GridStart = "09:00"
	}
	if j.Config.GridEnd == "" {
		j.Config.GridEnd = "18:00"
	}
	if j.Config.StepMinutes <= 0 {
		j.Config.StepMinutes = 30
	}
	if j.Config.Now == nil {
		j.Config.Now = time.Now
	}
	if j.Limiter == nil {
		j.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if j.Logger == nil {
		j.Logger = logger.New()
	}
	return nil
}

func (j *TravelTimeJob) Run(ctx context.Context) (TravelTimeResult, error) {
	var res TravelTimeResult
	if err := j.validate(); err != nil {
		return res, err
	}
	grid, err := departureGrid(j.Config)
	if err != nil {
		return res, err
	}
	stations, err := j.Store.StationsWithCoords(ctx)
	if err != nil {
		return res, err
	}
	for _, st := range stations {
		for _, dest := range j.Destinations {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if err := j.samplePair(ctx, st, dest, grid, &res); err != nil {
				return res, err
			}
		}
	}
	j.Logger.Info("[travel-time] run complete: %d recorded, %d skipped, %d failed",
		res.Recorded, res.Skipped, res.Failed)
	return res, nil
}

func (j *TravelTimeJob) samplePair(ctx context.Context, st store.Station, dest config.Destination, grid []time.Time, res *TravelTimeResult) error {
	if !j.Config.Refresh {
		exists, err := j.Store.HasTravelTime(ctx, st.Name, dest.Name)
		if err != nil {
			return err
		}
		if exists {
			j.Logger.Info("[travel-time] skipping (already recorded): %s -> %s", st.Name, dest.Name)
			res.Skipped++
			return nil
		}
	}
	j.Logger.Info("[travel-time] sampling %s -> %s", st.Name, dest.Name)

	origin := gmaps.Coordinates{Lat: st.Latitude.Float64, Lon: st.Longitude.Float64}
	target := gmaps.Coordinates{Lat: dest.Latitude, Lon: dest.Longitude}

	best := -1
	bestDeparture := ""
	for _, departure := range grid {
		if err := j.Limiter.Wait(ctx); err != nil {
			return err
		}
		minutes, ok := j.Router.Route(ctx, origin, target, departure)
		if !ok {
			continue // empty grid points are not failures
		}
		// Strict less-than: on a tie the earliest departure in grid
		// order keeps the record.
		if best < 0 || minutes < best {
			best = minutes
			bestDeparture = departure.Format("15:04")
		}
	}

	if best < 0 {
		j.Logger.Warn("[travel-time] no valid samples for %s -> %s", st.Name, dest.Name)
		res.Failed++
		if j.FailLog != nil {
			if err := j.FailLog.Append(st.Name, dest.Name,
				strconv.FormatFloat(st.Latitude.Float64, 'f', -1, 64),
				strconv.FormatFloat(st.Longitude.Float64, 'f', -1, 64)); err != nil {
				j.Logger.Error("[travel-time] failure log: %v", err)
			}
			metrics.FailedItems.Inc()
		}
		return nil
	}

	tt := store.TravelTime{
		Station:       st.Name,
		Destination:   dest.Name,
		Minutes:       best,
		BestDeparture: bestDeparture,
		Latitude:      st.Latitude.Float64,
		Longitude:     st.Longitude.Float64,
	}
	if j.Config.Refresh {
		if err := j.Store.ReplaceTravelTime(ctx, tt); err != nil {
			return err
		}
	} else {
		if _, err := j.Store.InsertTravelTime(ctx, tt); err != nil {
			return err
		}
	}
	j.Logger.Info("[travel-time] recorded %s -> %s: %d min, best at %s", st.Name, dest.Name, best, bestDeparture)
	res.Recorded++
	return nil
}

// departureGrid builds the candidate departure times on the run's calendar
// day, inclusive of both ends.
func departureGrid(cfg TravelTimeConfig) ([]time.Time, error) {
	start, err := anchorClock(cfg.Now(), cfg.GridStart)
	if err != nil {
		return nil, err
	}
	end, err := anchorClock(cfg.Now(), cfg.GridEnd)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("grid end %s before start %s", cfg.GridEnd, cfg.GridStart)
	}
	step := time.Duration(cfg.StepMinutes) * time.Minute
	var grid []time.Time
	for t := start; !t.After(end); t = t.Add(step) {
		grid = append(grid, t)
	}
	return grid, nil
}

func anchorClock(day time.Time, clock string) (time.Time, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad grid time %q: %w", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, day.Location()), nil
}
