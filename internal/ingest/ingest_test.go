package ingest

import (
	"context"
	"testing"

	"github.com/yourorg/commute-feed/internal/store"
)

type fakeListingWriter struct {
	urls map[string]bool
}

func newFakeListingWriter() *fakeListingWriter {
	return &fakeListingWriter{urls: make(map[string]bool)}
}

func (f *fakeListingWriter) InsertListing(_ context.Context, in store.ListingInput) (bool, error) {
	if f.urls[in.URL] {
		return false, nil
	}
	f.urls[in.URL] = true
	return true, nil
}

func TestIngestDuplicateURLIsSkippedSilently(t *testing.T) {
	w := newFakeListingWriter()
	ig := &Ingestor{Store: w}
	raws := []RawListing{
		{URL: "https://example.at/ad/1", PriceText: "100.000", SizeText: "50 m²"},
		{URL: "https://example.at/ad/1", PriceText: "999.999", SizeText: "1 m²"},
	}

	res, err := ig.Run(context.Background(), raws)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Inserted != 1 || res.Skipped != 1 {
		t.Fatalf("res = %+v, want 1 inserted / 1 skipped", res)
	}
}

func TestIngestDropsEmptyURL(t *testing.T) {
	w := newFakeListingWriter()
	ig := &Ingestor{Store: w}

	res, err := ig.Run(context.Background(), []RawListing{{Title: "no url"}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Dropped != 1 || res.Inserted != 0 {
		t.Fatalf("res = %+v, want 1 dropped", res)
	}
}

type fakeStationWriter struct {
	stations map[string]store.Station
}

func (f *fakeStationWriter) UpsertStation(_ context.Context, st store.Station) (bool, error) {
	key := st.Source + "|" + st.Name
	if _, exists := f.stations[key]; exists {
		return false, nil
	}
	f.stations[key] = st
	return true, nil
}

func TestMergeStationsTagsBothSources(t *testing.T) {
	w := &fakeStationWriter{stations: make(map[string]store.Station)}

	added, err := MergeStations(context.Background(), w, nil,
		[]RawRailStation{{URL: "https://example.at/station/1", Address: "1120, Wien"}},
		[]string{"Wien Oper Karlsplatz"})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if added != 2 {
		t.Fatalf("added = %d, want 2", added)
	}

	rail, ok := w.stations[SourceRail+"|https://example.at/station/1"]
	if !ok {
		t.Fatal("rail station missing")
	}
	if !rail.Address.Valid || rail.Address.String != "1120, Wien" {
		t.Fatalf("rail address = %+v", rail.Address)
	}
	tram, ok := w.stations[SourceTram+"|Wien Oper Karlsplatz"]
	if !ok {
		t.Fatal("tram station missing")
	}
	if tram.Address.String != "Wien Oper Karlsplatz" {
		t.Fatalf("tram address = %+v", tram.Address)
	}
}

func TestMergeStationsIdempotent(t *testing.T) {
	w := &fakeStationWriter{stations: make(map[string]store.Station)}
	tram := []string{"Wien Meidling"}

	if _, err := MergeStations(context.Background(), w, nil, nil, tram); err != nil {
		t.Fatal(err)
	}
	added, err := MergeStations(context.Background(), w, nil, nil, tram)
	if err != nil {
		t.Fatal(err)
	}
	if added != 0 {
		t.Fatalf("second merge added %d, want 0", added)
	}
}
