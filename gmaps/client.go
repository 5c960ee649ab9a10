package gmaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/yourorg/commute-feed/internal/metrics"
)

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Client wraps the Google Maps geocoding and directions endpoints. Any
// failure (transport error, non-2xx, non-OK API status, malformed or empty
// payload) is logged with the failing input and surfaced as not-ok; the
// client never returns an error. Rate limiting is the caller's job.
type Client struct {
	key     string
	baseURL string
	http    *retryablehttp.Client
}

func NewClient(apiKey string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 900 * time.Millisecond
	rc.RetryMax = 2
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil

	return &Client{
		key:     apiKey,
		baseURL: "https://maps.googleapis.com",
		http:    rc,
	}
}

// SetBaseURL points the client at a different host. Used by tests.
func (c *Client) SetBaseURL(base string) { c.baseURL = base }

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves a free-text address to coordinates.
func (c *Client) Geocode(ctx context.Context, address string) (Coordinates, bool) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("key", c.key)
	u := fmt.Sprintf("%s/maps/api/geocode/json?%s", c.baseURL, q.Encode())

	metrics.GeocodeCalls.Inc()
	body, err := c.get(ctx, u)
	if err != nil {
		log.Printf("[WARN] geocode failed for %q: %v", address, err)
		return Coordinates{}, false
	}
	var resp geocodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Printf("[WARN] geocode bad payload for %q: %v", address, err)
		return Coordinates{}, false
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		log.Printf("[WARN] geocode no result for %q (status %s)", address, resp.Status)
		return Coordinates{}, false
	}
	loc := resp.Results[0].Geometry.Location
	return Coordinates{Lat: loc.Lat, Lon: loc.Lng}, true
}

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		Legs []struct {
			Duration struct {
				Value int `json:"value"` // seconds
			} `json:"duration"`
		} `json:"legs"`
	} `json:"routes"`
}

// Route returns the transit travel time in whole minutes from origin to
// destination for the given departure time.
func (c *Client) Route(ctx context.Context, origin, destination Coordinates, departure time.Time) (int, bool) {
	q := url.Values{}
	q.Set("origin", fmt.Sprintf("%f,%f", origin.Lat, origin.Lon))
	q.Set("destination", fmt.Sprintf("%f,%f", destination.Lat, destination.Lon))
	q.Set("mode", "transit")
	q.Set("transit_routing_preference", "fewer_transfers")
	q.Set("departure_time", fmt.Sprintf("%d", departure.Unix()))
	q.Set("key", c.key)
	u := fmt.Sprintf("%s/maps/api/directions/json?%s", c.baseURL, q.Encode())

	metrics.RouteCalls.Inc()
	body, err := c.get(ctx, u)
	if err != nil {
		log.Printf("[WARN] route failed for %v -> %v: %v", origin, destination, err)
		return 0, false
	}
	var resp directionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		log.Printf("[WARN] route bad payload for %v -> %v: %v", origin, destination, err)
		return 0, false
	}
	if resp.Status != "OK" || len(resp.Routes) == 0 || len(resp.Routes[0].Legs) == 0 {
		log.Printf("[WARN] route no result for %v -> %v (status %s)", origin, destination, resp.Status)
		return 0, false
	}
	return resp.Routes[0].Legs[0].Duration.Value / 60, true
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil { return nil, err }
	req.Header.Set("accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil { return nil, err }
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var body map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, fmt.Errorf("maps error %d: %v", resp.StatusCode, body)
	}
	return ioReadAllLimit(resp.Body, 4<<20) // 4MB guard
}

func ioReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	lr := io.LimitReader(r, limit+1)
	b, err := io.ReadAll(lr)
	if err != nil { return nil, err }
	if int64(len(b)) > limit { return nil, errors.New("payload too large") }
	return b, nil
}
