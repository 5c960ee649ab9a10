package store

import (
    "context"
    "database/sql"
    "time"

    _ "github.com/jackc/pgx/v5/stdlib"
)

type Store struct { DB *sql.DB }

func Open(dsn string) (*Store, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil { return nil, err }
    db.SetMaxOpenConns(10)
    db.SetMaxIdleConns(5)
    db.SetConnMaxLifetime(30 * time.Minute)
    return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) Migrate(ctx context.Context) error {
    stmts := []string{
        `CREATE TABLE IF NOT EXISTS listings (
            id SERIAL PRIMARY KEY,
            url                TEXT NOT NULL,
            title              TEXT,
            price              BIGINT,
            size               DOUBLE PRECISION,
            price_per_m2       DOUBLE PRECISION,
            zip_code           TEXT,
            city               TEXT,
            region             TEXT,
            price_info         JSONB,
            energy_certificate JSONB,
            attributes         JSONB,
            latitude           DOUBLE PRECISION,
            longitude          DOUBLE PRECISION,
            date_scraped       TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
        `CREATE UNIQUE INDEX IF NOT EXISTS ux_listings_url ON listings(url);`,
        `CREATE INDEX IF NOT EXISTS idx_listings_missing_coords ON listings(id) WHERE latitude IS NULL OR longitude IS NULL;`,
        `CREATE TABLE IF NOT EXISTS stations (
            id SERIAL PRIMARY KEY,
            source    TEXT NOT NULL,
            name      TEXT NOT NULL,
            url       TEXT,
            address   TEXT,
            latitude  DOUBLE PRECISION,
            longitude DOUBLE PRECISION
        );`,
        `CREATE UNIQUE INDEX IF NOT EXISTS ux_stations_source_name ON stations(source, name);`,
        `CREATE TABLE IF NOT EXISTS location_cache (
            id SERIAL PRIMARY KEY,
            zip_code  TEXT NOT NULL,
            city      TEXT NOT NULL,
            latitude  DOUBLE PRECISION NOT NULL,
            longitude DOUBLE PRECISION NOT NULL
        );`,
        `CREATE UNIQUE INDEX IF NOT EXISTS ux_location_cache_zip_city ON location_cache(zip_code, city);`,
        `CREATE TABLE IF NOT EXISTS travel_times (
            id SERIAL PRIMARY KEY,
            station        TEXT NOT NULL,
            destination    TEXT NOT NULL,
            minutes        INTEGER NOT NULL,
            best_departure TEXT NOT NULL,
            latitude       DOUBLE PRECISION,
            longitude      DOUBLE PRECISION
        );`,
        `CREATE UNIQUE INDEX IF NOT EXISTS ux_travel_times_pair ON travel_times(station, destination);`,
    }
    for _, q := range stmts {
        if _, err := s.DB.ExecContext(ctx, q); err != nil { return err }
    }
    return nil
}

// ListingInput carries one cleaned listing for insertion.
type ListingInput struct {
    URL               string
    Title             string
    Price             sql.NullInt64
    Size              sql.NullFloat64
    PricePerM2        sql.NullFloat64
    ZipCode           string
    City              string
    Region            string
    PriceInfo         []byte
    EnergyCertificate []byte
    Attributes        []byte
}

// InsertListing inserts a listing if its url is not already present. A
// duplicate url is a silent no-op; the existing row, including its
// price_per_m2, is never touched. Returns whether a row was inserted.
func (s *Store) InsertListing(ctx context.Context, in ListingInput) (bool, error) {
    res, err := s.DB.ExecContext(ctx, `
        INSERT INTO listings (url, title, price, size, price_per_m2, zip_code, city, region, price_info, energy_certificate, attributes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        ON CONFLICT (url) DO NOTHING`,
        in.URL, in.Title, in.Price, in.Size, in.PricePerM2, in.ZipCode, in.City, in.Region,
        nullJSON(in.PriceInfo), nullJSON(in.EnergyCertificate), nullJSON(in.Attributes),
    )
    if err != nil { return false, err }
    n, err := res.RowsAffected()
    if err != nil { return false, err }
    return n > 0, nil
}

func nullJSON(b []byte) any {
    if len(b) == 0 { return nil }
    return string(b)
}

// ListingAddress is the slice of a listing the geocoding job works on.
type ListingAddress struct {
    URL     string
    ZipCode string
    City    string
    Region  string
}

// ListingsMissingCoords returns listings still lacking coordinates, in
// insertion order.
func (s *Store) ListingsMissingCoords(ctx context.Context) ([]ListingAddress, error) {
    rows, err := s.DB.QueryContext(ctx, `
        SELECT url, COALESCE(zip_code,''), COALESCE(city,''), COALESCE(region,'')
        FROM listings
        WHERE latitude IS NULL OR longitude IS NULL
        ORDER BY id`)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []ListingAddress
    for rows.Next() {
        var a ListingAddress
        if err := rows.Scan(&a.URL, &a.ZipCode, &a.City, &a.Region); err != nil { return nil, err }
        out = append(out, a)
    }
    return out, rows.Err()
}

func (s *Store) UpdateListingCoords(ctx context.Context, url string, lat, lon float64) error {
    _, err := s.DB.ExecContext(ctx,
        `UPDATE listings SET latitude=$1, longitude=$2 WHERE url=$3`, lat, lon, url)
    return err
}

// GeocodedListing is the export slice of a listing.
type GeocodedListing struct {
    URL       string
    Title     string
    Price     sql.NullInt64
    Size      sql.NullFloat64
    ZipCode   string
    City      string
    Region    string
    Latitude  float64
    Longitude float64
}

// GeocodedListings returns all listings that have coordinates, in insertion
// order. Listings still missing coordinates are excluded from the export.
func (s *Store) GeocodedListings(ctx context.Context) ([]GeocodedListing, error) {
    rows, err := s.DB.QueryContext(ctx, `
        SELECT url, COALESCE(title,''), price, size, COALESCE(zip_code,''), COALESCE(city,''), COALESCE(region,''), latitude, longitude
        FROM listings
        WHERE latitude IS NOT NULL AND longitude IS NOT NULL
        ORDER BY id`)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []GeocodedListing
    for rows.Next() {
        var l GeocodedListing
        if err := rows.Scan(&l.URL, &l.Title, &l.Price, &l.Size, &l.ZipCode, &l.City, &l.Region, &l.Latitude, &l.Longitude); err != nil {
            return nil, err
        }
        out = append(out, l)
    }
    return out, rows.Err()
}

// Station is the normalized union of the station sources. The source tag keeps
// the two upstream tables (url-keyed and name-keyed) apart without positional
// merging.
type Station struct {
    Source    string
    Name      string
    URL       sql.NullString
    Address   sql.NullString
    Latitude  sql.NullFloat64
    Longitude sql.NullFloat64
}

// UpsertStation inserts a station if the (source, name) pair is new.
func (s *Store) UpsertStation(ctx context.Context, st Station) (bool, error) {
    res, err := s.DB.ExecContext(ctx, `
        INSERT INTO stations (source, name, url, address, latitude, longitude)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (source, name) DO NOTHING`,
        st.Source, st.Name, st.URL, st.Address, st.Latitude, st.Longitude,
    )
    if err != nil { return false, err }
    n, err := res.RowsAffected()
    if err != nil { return false, err }
    return n > 0, nil
}

func (s *Store) StationsMissingCoords(ctx context.Context) ([]Station, error) {
    rows, err := s.DB.QueryContext(ctx, `
        SELECT source, name, url, address, latitude, longitude
        FROM stations
        WHERE latitude IS NULL OR longitude IS NULL
        ORDER BY id`)
    if err != nil { return nil, err }
    defer rows.Close()
    return scanStations(rows)
}

func (s *Store) UpdateStationCoords(ctx context.Context, source, name string, lat, lon float64) error {
    _, err := s.DB.ExecContext(ctx,
        `UPDATE stations SET latitude=$1, longitude=$2 WHERE source=$3 AND name=$4`,
        lat, lon, source, name)
    return err
}

// StationsWithCoords returns geocoded stations in insertion order. Stations
// without coordinates can never be a nearest-station candidate, so they are
// filtered here.
func (s *Store) StationsWithCoords(ctx context.Context) ([]Station, error) {
    rows, err := s.DB.QueryContext(ctx, `
        SELECT source, name, url, address, latitude, longitude
        FROM stations
        WHERE latitude IS NOT NULL AND longitude IS NOT NULL
        ORDER BY id`)
    if err != nil { return nil, err }
    defer rows.Close()
    return scanStations(rows)
}

func scanStations(rows *sql.Rows) ([]Station, error) {
    var out []Station
    for rows.Next() {
        var st Station
        if err := rows.Scan(&st.Source, &st.Name, &st.URL, &st.Address, &st.Latitude, &st.Longitude); err != nil {
            return nil, err
        }
        out = append(out, st)
    }
    return out, rows.Err()
}

// LookupLocation checks the durable geocode cache for a zip/city pair.
func (s *Store) LookupLocation(ctx context.Context, zip, city string) (lat, lon float64, ok bool, err error) {
    err = s.DB.QueryRowContext(ctx,
        `SELECT latitude, longitude FROM location_cache WHERE zip_code=$1 AND city=$2`,
        zip, city).Scan(&lat, &lon)
    if err == sql.ErrNoRows { return 0, 0, false, nil }
    if err != nil { return 0, 0, false, err }
    return lat, lon, true, nil
}

// SaveLocation memoizes a geocode result. First result wins; a concurrent
// insert for the same pair is a harmless no-op.
func (s *Store) SaveLocation(ctx context.Context, zip, city string, lat, lon float64) (bool, error) {
    res, err := s.DB.ExecContext(ctx, `
        INSERT INTO location_cache (zip_code, city, latitude, longitude)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (zip_code, city) DO NOTHING`,
        zip, city, lat, lon,
    )
    if err != nil { return false, err }
    n, err := res.RowsAffected()
    if err != nil { return false, err }
    return n > 0, nil
}

// TravelTime is one recorded best transit time from a station to a
// destination, with a denormalized copy of the station coordinates.
type TravelTime struct {
    Station       string
    Destination   string
    Minutes       int
    BestDeparture string
    Latitude      float64
    Longitude     float64
}

func (s *Store) HasTravelTime(ctx context.Context, station, destination string) (bool, error) {
    var one int
    err := s.DB.QueryRowContext(ctx,
        `SELECT 1 FROM travel_times WHERE station=$1 AND destination=$2`,
        station, destination).Scan(&one)
    if err == sql.ErrNoRows { return false, nil }
    if err != nil { return false, err }
    return true, nil
}

func (s *Store) InsertTravelTime(ctx context.Context, tt TravelTime) (bool, error) {
    res, err := s.DB.ExecContext(ctx, `
        INSERT INTO travel_times (station, destination, minutes, best_departure, latitude, longitude)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (station, destination) DO NOTHING`,
        tt.Station, tt.Destination, tt.Minutes, tt.BestDeparture, tt.Latitude, tt.Longitude,
    )
    if err != nil { return false, err }
    n, err := res.RowsAffected()
    if err != nil { return false, err }
    return n > 0, nil
}

// ReplaceTravelTime overwrites an existing observation. Only the refresh path
// uses this; the default pipeline treats recorded pairs as terminal.
func (s *Store) ReplaceTravelTime(ctx context.Context, tt TravelTime) error {
    _, err := s.DB.ExecContext(ctx, `
        INSERT INTO travel_times (station, destination, minutes, best_departure, latitude, longitude)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (station, destination)
        DO UPDATE SET minutes=EXCLUDED.minutes, best_departure=EXCLUDED.best_departure, latitude=EXCLUDED.latitude, longitude=EXCLUDED.longitude`,
        tt.Station, tt.Destination, tt.Minutes, tt.BestDeparture, tt.Latitude, tt.Longitude,
    )
    return err
}

// TravelTimes returns all recorded observations in insertion order.
func (s *Store) TravelTimes(ctx context.Context) ([]TravelTime, error) {
    rows, err := s.DB.QueryContext(ctx, `
        SELECT station, destination, minutes, best_departure, COALESCE(latitude,0), COALESCE(longitude,0)
        FROM travel_times
        ORDER BY id`)
    if err != nil { return nil, err }
    defer rows.Close()
    var out []TravelTime
    for rows.Next() {
        var tt TravelTime
        if err := rows.Scan(&tt.Station, &tt.Destination, &tt.Minutes, &tt.BestDeparture, &tt.Latitude, &tt.Longitude); err != nil {
            return nil, err
        }
        out = append(out, tt)
    }
    return out, rows.Err()
}
