package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/yourorg/commute-feed/internal/logger"
	"github.com/yourorg/commute-feed/internal/store"
)

// Station source tags. Rail stations arrive url-keyed with a full address;
// tram stations arrive as bare names.
const (
	SourceRail = "oebb"
	SourceTram = "badner"
)

// RawRailStation is a scraped rail station: url-keyed, address in free text.
type RawRailStation struct {
	URL     string `json:"url"`
	Address string `json:"address"`
}

// StationWriter is the slice of the row store the merge step needs.
type StationWriter interface {
	UpsertStation(ctx context.Context, st store.Station) (bool, error)
}

// MergeStations normalizes both station sources into the single tagged
// stations table. This replaces the ad-hoc positional union the two source
// tables would otherwise need before the travel-time job.
func MergeStations(ctx context.Context, w StationWriter, lg *logger.Logger, rail []RawRailStation, tramNames []string) (int, error) {
	added := 0
	for _, r := range rail {
		if r.URL == "" {
			continue
		}
		st := store.Station{
			Source:  SourceRail,
			Name:    r.URL, // rail stations are identified by their detail-page url
			URL:     sql.NullString{String: r.URL, Valid: true},
			Address: nullString(r.Address),
		}
		inserted, err := w.UpsertStation(ctx, st)
		if err != nil {
			return added, fmt.Errorf("merge rail station %s: %w", r.URL, err)
		}
		if inserted {
			added++
		}
	}
	for _, name := range tramNames {
		if name == "" {
			continue
		}
		st := store.Station{
			Source:  SourceTram,
			Name:    name,
			Address: sql.NullString{String: name, Valid: true},
		}
		inserted, err := w.UpsertStation(ctx, st)
		if err != nil {
			return added, fmt.Errorf("merge tram station %s: %w", name, err)
		}
		if inserted {
			added++
		}
	}
	if lg != nil {
		lg.Info("[ingest] station merge added %d new stations", added)
	}
	return added, nil
}

// RawStations is the file handoff format for the two station sources.
type RawStations struct {
	Rail []RawRailStation `json:"rail"`
	Tram []string         `json:"tram"`
}

func LoadRawStations(path string) (RawStations, error) {
	var rs RawStations
	b, err := os.ReadFile(path)
	if err != nil {
		return rs, fmt.Errorf("raw stations read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, &rs); err != nil {
		return rs, fmt.Errorf("raw stations parse %s: %w", path, err)
	}
	return rs, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
