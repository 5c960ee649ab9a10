package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/yourorg/commute-feed/internal/logger"
	"github.com/yourorg/commute-feed/internal/store"
)

// RawListing is the record shape the scraping collaborator produces. Price
// and size arrive as source-locale text and are cleaned here.
type RawListing struct {
	URL               string            `json:"url"`
	Title             string            `json:"title"`
	PriceText         string            `json:"price"`
	SizeText          string            `json:"size"`
	ZipCode           string            `json:"zip_code"`
	City              string            `json:"city"`
	Region            string            `json:"region"`
	Attributes        map[string]string `json:"attributes,omitempty"`
	EnergyCertificate map[string]string `json:"energy_certificate,omitempty"`
	PriceInfo         map[string]string `json:"price_info,omitempty"`
}

// ListingWriter is the slice of the row store the ingestor needs.
type ListingWriter interface {
	InsertListing(ctx context.Context, in store.ListingInput) (bool, error)
}

type Ingestor struct {
	Store  ListingWriter
	Logger *logger.Logger
}

// Result reports one ingest run.
type Result struct {
	Inserted int
	Skipped  int
	Dropped  int
}

// Run cleans and inserts raw listings. A url already in the store is a
// silent skip, not an error; records without a url are dropped.
func (ig *Ingestor) Run(ctx context.Context, raws []RawListing) (Result, error) {
	var res Result
	if ig.Logger == nil {
		ig.Logger = logger.New()
	}
	for _, raw := range raws {
		if raw.URL == "" {
			ig.Logger.Warn("[ingest] dropping record with empty url (title %q)", raw.Title)
			res.Dropped++
			continue
		}
		in, err := BuildListing(raw)
		if err != nil {
			ig.Logger.Warn("[ingest] dropping %s: %v", raw.URL, err)
			res.Dropped++
			continue
		}
		inserted, err := ig.Store.InsertListing(ctx, in)
		if err != nil {
			return res, fmt.Errorf("ingest insert %s: %w", raw.URL, err)
		}
		if inserted {
			ig.Logger.Info("[ingest] added %s (%s)", raw.URL, raw.City)
			res.Inserted++
		} else {
			ig.Logger.Info("[ingest] skipped (already stored): %s", raw.URL)
			res.Skipped++
		}
	}
	return res, nil
}

// LoadRawListings reads a JSON array of raw listings, the file handoff format
// between the scraping collaborator and this pipeline.
func LoadRawListings(path string) ([]RawListing, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("raw listings read %s: %w", path, err)
	}
	var raws []RawListing
	if err := json.Unmarshal(b, &raws); err != nil {
		return nil, fmt.Errorf("raw listings parse %s: %w", path, err)
	}
	return raws, nil
}
