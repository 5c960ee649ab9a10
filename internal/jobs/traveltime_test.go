package jobs

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yourorg/commute-feed/gmaps"
	"github.com/yourorg/commute-feed/internal/config"
	"github.com/yourorg/commute-feed/internal/faillog"
	"github.com/yourorg/commute-feed/internal/store"
)

type fakeTravelStore struct {
	stations []store.Station
	recorded map[string]store.TravelTime
	replaced int
}

func newFakeTravelStore(stations ...store.Station) *fakeTravelStore {
	return &fakeTravelStore{stations: stations, recorded: make(map[string]store.TravelTime)}
}

func (f *fakeTravelStore) StationsWithCoords(context.Context) ([]store.Station, error) {
	return f.stations, nil
}

func (f *fakeTravelStore) HasTravelTime(_ context.Context, station, destination string) (bool, error) {
	_, ok := f.recorded[station+"|"+destination]
	return ok, nil
}

func (f *fakeTravelStore) InsertTravelTime(_ context.Context, tt store.TravelTime) (bool, error) {
	key := tt.Station + "|" + tt.Destination
	if _, exists := f.recorded[key]; exists {
		return false, nil
	}
	f.recorded[key] = tt
	return true, nil
}

func (f *fakeTravelStore) ReplaceTravelTime(_ context.Context, tt store.TravelTime) error {
	f.recorded[tt.Station+"|"+tt.Destination] = tt
	f.replaced++
	return nil
}

// fakeRouter answers with the minutes mapped to the departure's clock time,
// counting calls.
type fakeRouter struct {
	byClock map[string]int
	calls   int
}

func (f *fakeRouter) Route(_ context.Context, _, _ gmaps.Coordinates, departure time.Time) (int, bool) {
	f.calls++
	m, ok := f.byClock[departure.Format("15:04")]
	return m, ok
}

func coord(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

func testStation(name string) store.Station {
	return store.Station{Source: "oebb", Name: name, Latitude: coord(48.2), Longitude: coord(16.3)}
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 14, 7, 0, 0, 0, time.UTC)
}

func TestDepartureGridHasNineteenPoints(t *testing.T) {
	grid, err := departureGrid(TravelTimeConfig{GridStart: "09:00", GridEnd: "18:00", StepMinutes: 30, Now: fixedClock})
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	if len(grid) != 19 {
		t.Fatalf("grid has %d points, want 19", len(grid))
	}
	if grid[0].Format("15:04") != "09:00" || grid[18].Format("15:04") != "18:00" {
		t.Fatalf("grid ends = %s .. %s", grid[0].Format("15:04"), grid[18].Format("15:04"))
	}
}

func TestTravelTimeTieBreakEarliestWins(t *testing.T) {
	st := newFakeTravelStore(testStation("Wien Meidling"))
	router := &fakeRouter{byClock: map[string]int{"09:30": 42, "10:00": 42}}
	job := &TravelTimeJob{
		Store:        st,
		Router:       router,
		Destinations: []config.Destination{{Name: "Gloggnitz", Latitude: 47.67, Longitude: 15.94}},
		Config:       TravelTimeConfig{Now: fixedClock},
	}

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Recorded != 1 {
		t.Fatalf("Recorded = %d, want 1", res.Recorded)
	}
	tt := st.recorded["Wien Meidling|Gloggnitz"]
	if tt.Minutes != 42 {
		t.Fatalf("minutes = %d, want 42", tt.Minutes)
	}
	if tt.BestDeparture != "09:30" {
		t.Fatalf("best departure = %s, want 09:30 (earliest of the tie)", tt.BestDeparture)
	}
}

func TestTravelTimeRecordedPairIsSkipped(t *testing.T) {
	st := newFakeTravelStore(testStation("Wien Meidling"))
	st.recorded["Wien Meidling|Gloggnitz"] = store.TravelTime{Minutes: 42}
	router := &fakeRouter{byClock: map[string]int{"09:00": 10}}
	job := &TravelTimeJob{
		Store:        st,
		Router:       router,
		Destinations: []config.Destination{{Name: "Gloggnitz"}},
		Config:       TravelTimeConfig{Now: fixedClock},
	}

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Skipped != 1 || res.Recorded != 0 {
		t.Fatalf("res = %+v, want one skip", res)
	}
	if router.calls != 0 {
		t.Fatalf("recorded pair triggered %d route calls", router.calls)
	}
	if st.recorded["Wien Meidling|Gloggnitz"].Minutes != 42 {
		t.Fatal("recorded observation must stay untouched")
	}
}

func TestTravelTimeRefreshResamples(t *testing.T) {
	st := newFakeTravelStore(testStation("Wien Meidling"))
	st.recorded["Wien Meidling|Gloggnitz"] = store.TravelTime{Minutes: 42}
	router := &fakeRouter{byClock: map[string]int{"09:00": 10}}
	job := &TravelTimeJob{
		Store:        st,
		Router:       router,
		Destinations: []config.Destination{{Name: "Gloggnitz"}},
		Config:       TravelTimeConfig{Refresh: true, Now: fixedClock},
	}

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.recorded["Wien Meidling|Gloggnitz"].Minutes != 10 {
		t.Fatal("refresh run should overwrite the observation")
	}
	if st.replaced != 1 {
		t.Fatalf("replaced = %d, want 1", st.replaced)
	}
}

func TestTravelTimeAllEmptyGoesToFailureLog(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "failed.txt")

	st := newFakeTravelStore(testStation("Wien Meidling"))
	router := &fakeRouter{byClock: map[string]int{}} // every grid point empty
	job := &TravelTimeJob{
		Store:        st,
		Router:       router,
		Destinations: []config.Destination{{Name: "Sopron"}},
		FailLog:      faillog.New(logPath),
		Config:       TravelTimeConfig{Now: fixedClock},
	}

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", res.Failed)
	}
	if len(st.recorded) != 0 {
		t.Fatal("no observation may be written for a failed pair")
	}
	if router.calls != 19 {
		t.Fatalf("expected the full grid to be sampled, got %d calls", router.calls)
	}

	b, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read failure log: %v", err)
	}
	line := strings.TrimSpace(string(b))
	if !strings.HasPrefix(line, "Wien Meidling|Sopron|") {
		t.Fatalf("failure log line = %q", line)
	}
}

func TestTravelTimeEmptyPointsAreSkippedNotFatal(t *testing.T) {
	st := newFakeTravelStore(testStation("Wien Meidling"))
	router := &fakeRouter{byClock: map[string]int{"13:30": 55}}
	job := &TravelTimeJob{
		Store:        st,
		Router:       router,
		Destinations: []config.Destination{{Name: "Sopron"}},
		Config:       TravelTimeConfig{Now: fixedClock},
	}

	res, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Recorded != 1 || res.Failed != 0 {
		t.Fatalf("res = %+v, want one recorded pair", res)
	}
	tt := st.recorded["Wien Meidling|Sopron"]
	if tt.Minutes != 55 || tt.BestDeparture != "13:30" {
		t.Fatalf("observation = %+v", tt)
	}
}
