package ingest

import (
	"database/sql"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/yourorg/commute-feed/internal/store"
)

var (
	// digitsRegexp keeps the integer part of a currency value like "€ 249.000,-".
	digitsRegexp = regexp.MustCompile(`[^\d]`)
	// sizeRegexp keeps digits and the decimal comma of a size like "74,5 m²".
	sizeRegexp = regexp.MustCompile(`[^\d,]`)
)

// ParsePrice extracts a whole currency amount from source text.
func ParsePrice(raw string) sql.NullInt64 {
	cleaned := digitsRegexp.ReplaceAllString(raw, "")
	if cleaned == "" {
		return sql.NullInt64{}
	}
	v, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

// ParseSize extracts a floating-point area from source text, treating the
// comma as the decimal separator.
func ParseSize(raw string) sql.NullFloat64 {
	cleaned := sizeRegexp.ReplaceAllString(raw, "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	if cleaned == "" {
		return sql.NullFloat64{}
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v <= 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// BuildListing cleans a raw record into a store input. price_per_m2 is fixed
// here, at first sight of the listing; it is never recomputed on re-insert.
func BuildListing(raw RawListing) (store.ListingInput, error) {
	price := ParsePrice(raw.PriceText)
	size := ParseSize(raw.SizeText)

	var perM2 sql.NullFloat64
	if price.Valid && size.Valid {
		perM2 = sql.NullFloat64{Float64: float64(price.Int64) / size.Float64, Valid: true}
	}

	in := store.ListingInput{
		URL:        strings.TrimSpace(raw.URL),
		Title:      strings.TrimSpace(raw.Title),
		Price:      price,
		Size:       size,
		PricePerM2: perM2,
		ZipCode:    strings.TrimSpace(raw.ZipCode),
		City:       strings.TrimSpace(raw.City),
		Region:     strings.TrimSpace(raw.Region),
	}
	var err error
	if in.PriceInfo, err = marshalMap(raw.PriceInfo); err != nil {
		return in, err
	}
	if in.EnergyCertificate, err = marshalMap(raw.EnergyCertificate); err != nil {
		return in, err
	}
	if in.Attributes, err = marshalMap(raw.Attributes); err != nil {
		return in, err
	}
	return in, nil
}

func marshalMap(m map[string]string) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}
