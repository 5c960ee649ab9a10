package gmaps

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient("test-key")
	c.SetBaseURL(srv.URL)
	c.http.RetryMax = 0
	return c, srv
}

func TestGeocodeOK(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("address"); got != "1010, Wien" {
			t.Errorf("address = %q", got)
		}
		w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":48.2082,"lng":16.3738}}}]}`))
	})
	defer srv.Close()

	coords, ok := c.Geocode(context.Background(), "1010, Wien")
	if !ok {
		t.Fatal("expected geocode to succeed")
	}
	if coords.Lat != 48.2082 || coords.Lon != 16.3738 {
		t.Fatalf("coords = %+v", coords)
	}
}

func TestGeocodeNonOKStatusIsEmpty(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	})
	defer srv.Close()

	if _, ok := c.Geocode(context.Background(), "nowhere"); ok {
		t.Fatal("ZERO_RESULTS must surface as empty")
	}
}

func TestGeocodeHTTPErrorIsEmpty(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"denied"}`, http.StatusForbidden)
	})
	defer srv.Close()

	if _, ok := c.Geocode(context.Background(), "1010, Wien"); ok {
		t.Fatal("HTTP 403 must surface as empty, not an error")
	}
}

func TestGeocodeMalformedPayloadIsEmpty(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})
	defer srv.Close()

	if _, ok := c.Geocode(context.Background(), "1010, Wien"); ok {
		t.Fatal("malformed payload must surface as empty")
	}
}

func TestRouteMinutesFromSeconds(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("mode") != "transit" {
			t.Errorf("mode = %q", q.Get("mode"))
		}
		if q.Get("departure_time") == "" {
			t.Error("missing departure_time")
		}
		// 2550 seconds truncates to 42 minutes.
		w.Write([]byte(`{"status":"OK","routes":[{"legs":[{"duration":{"value":2550}}]}]}`))
	})
	defer srv.Close()

	minutes, ok := c.Route(context.Background(),
		Coordinates{Lat: 48.2, Lon: 16.3}, Coordinates{Lat: 47.6, Lon: 15.9}, time.Now())
	if !ok {
		t.Fatal("expected route to succeed")
	}
	if minutes != 42 {
		t.Fatalf("minutes = %d, want 42", minutes)
	}
}

func TestRouteNoRoutesIsEmpty(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","routes":[]}`))
	})
	defer srv.Close()

	if _, ok := c.Route(context.Background(), Coordinates{}, Coordinates{}, time.Now()); ok {
		t.Fatal("empty routes must surface as empty")
	}
}
