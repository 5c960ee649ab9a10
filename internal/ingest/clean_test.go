package ingest

import (
	"math"
	"testing"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw   string
		want  int64
		valid bool
	}{
		{"€ 249.000", 249000, true},
		{"249.000,-", 249000, true},
		{"1500", 1500, true},
		{"auf Anfrage", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got := ParsePrice(tt.raw)
		if got.Valid != tt.valid {
			t.Errorf("ParsePrice(%q).Valid = %v, want %v", tt.raw, got.Valid, tt.valid)
			continue
		}
		if got.Valid && got.Int64 != tt.want {
			t.Errorf("ParsePrice(%q) = %d, want %d", tt.raw, got.Int64, tt.want)
		}
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		raw   string
		want  float64
		valid bool
	}{
		{"74,5 m²", 74.5, true},
		{"100 m²", 100, true},
		{"k.A.", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got := ParseSize(tt.raw)
		if got.Valid != tt.valid {
			t.Errorf("ParseSize(%q).Valid = %v, want %v", tt.raw, got.Valid, tt.valid)
			continue
		}
		if got.Valid && math.Abs(got.Float64-tt.want) > 1e-9 {
			t.Errorf("ParseSize(%q) = %f, want %f", tt.raw, got.Float64, tt.want)
		}
	}
}

func TestBuildListingPricePerM2(t *testing.T) {
	in, err := BuildListing(RawListing{
		URL:       "https://example.at/ad/1",
		PriceText: "€ 200.000",
		SizeText:  "80 m²",
	})
	if err != nil {
		t.Fatalf("BuildListing: %v", err)
	}
	if !in.PricePerM2.Valid {
		t.Fatal("expected price_per_m2 to be set")
	}
	if math.Abs(in.PricePerM2.Float64-2500) > 1e-9 {
		t.Fatalf("price_per_m2 = %f, want 2500", in.PricePerM2.Float64)
	}
}

func TestBuildListingMissingSize(t *testing.T) {
	in, err := BuildListing(RawListing{
		URL:       "https://example.at/ad/2",
		PriceText: "€ 200.000",
	})
	if err != nil {
		t.Fatalf("BuildListing: %v", err)
	}
	if in.PricePerM2.Valid {
		t.Fatal("price_per_m2 should be null when size is missing")
	}
}
