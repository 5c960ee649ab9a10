package geocache

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/yourorg/commute-feed/gmaps"
	"github.com/yourorg/commute-feed/internal/canon"
	"github.com/yourorg/commute-feed/internal/metrics"
	"github.com/yourorg/commute-feed/internal/redisx"
)

// CacheStore is the durable location_cache table. It is the source of truth
// for memoized geocode results.
type CacheStore interface {
	LookupLocation(ctx context.Context, zip, city string) (lat, lon float64, ok bool, err error)
	SaveLocation(ctx context.Context, zip, city string, lat, lon float64) (bool, error)
}

// Geocoder performs a live address lookup.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (gmaps.Coordinates, bool)
}

// Cache deduplicates geocode lookups by (zip, city). Region is deliberately
// not part of the identity: two inputs differing only in region text share
// one entry, trading precision for reuse of expensive calls. An optional
// Redis layer sits in front of the table; the table alone carries the
// first-result-wins invariant.
type Cache struct {
	Store CacheStore
	Geo   Geocoder
	Redis *redisx.Client
	TTL   time.Duration
}

// Resolve returns coordinates for a zip/city/region triple. It never returns
// an error: persistence trouble is logged and treated as a miss, lookup
// trouble as not-ok.
func (c *Cache) Resolve(ctx context.Context, zip, city, region string) (gmaps.Coordinates, bool) {
	zip, city = canon.Normalize(zip, city)
	if zip == "" && city == "" {
		// Not enough input to geocode anything meaningful.
		return gmaps.Coordinates{}, false
	}

	key := "geo:" + canon.CacheKey(zip, city)
	if c.Redis != nil {
		if val, err := c.Redis.Get(ctx, key); err == nil && val != "" {
			var coords gmaps.Coordinates
			if err := json.Unmarshal([]byte(val), &coords); err == nil {
				metrics.GeocodeCacheHits.Inc()
				return coords, true
			}
		}
	}

	lat, lon, ok, err := c.Store.LookupLocation(ctx, zip, city)
	if err != nil {
		log.Printf("[WARN] location cache lookup failed for %s/%s: %v", zip, city, err)
	} else if ok {
		metrics.GeocodeCacheHits.Inc()
		coords := gmaps.Coordinates{Lat: lat, Lon: lon}
		c.fillRedis(ctx, key, coords)
		return coords, true
	}

	address := canon.JoinAddress(zip, city, region)
	coords, ok := c.Geo.Geocode(ctx, address)
	if !ok {
		return gmaps.Coordinates{}, false
	}

	// Ignore-on-conflict keeps this correct when two job instances race on
	// the same pair: one wins, the other no-ops.
	if _, err := c.Store.SaveLocation(ctx, zip, city, coords.Lat, coords.Lon); err != nil {
		log.Printf("[WARN] location cache save failed for %s/%s: %v", zip, city, err)
	}
	c.fillRedis(ctx, key, coords)
	return coords, true
}

func (c *Cache) fillRedis(ctx context.Context, key string, coords gmaps.Coordinates) {
	if c.Redis == nil {
		return
	}
	b, _ := json.Marshal(coords)
	ttl := c.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := c.Redis.Set(ctx, key, string(b), ttl); err != nil {
		log.Printf("[WARN] redis set failed for %s: %v", key, err)
	}
}
