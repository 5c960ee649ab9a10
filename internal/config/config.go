package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yourorg/commute-feed/internal/env"
)

// Config holds everything the pipeline and API binaries read from the
// environment.
type Config struct {
	PostgresDSN string
	RedisAddr   string
	RedisDB     int
	GoogleKey   string

	DestinationsPath string
	ExportPath       string
	RawListingsPath  string
	RawStationsPath  string

	GeocodeFailLog    string
	TravelTimeFailLog string

	CallInterval       time.Duration
	RefreshTravelTimes bool

	Port int
}

// Load reads the .env file (if present) and returns a populated Config.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] no .env file found, using system env vars")
	}

	return &Config{
		PostgresDSN: env.Must("PG_DSN"),
		RedisAddr:   env.Get("REDIS_ADDR", ""),
		RedisDB:     env.GetInt("REDIS_DB", 0),
		GoogleKey:   env.Must("GOOGLE_API_KEY"),

		DestinationsPath: env.Get("DESTINATIONS_FILE", "destinations.yaml"),
		ExportPath:       env.Get("EXPORT_PATH", "data/real_estate_ads.json"),
		RawListingsPath:  env.Get("RAW_LISTINGS_FILE", ""),
		RawStationsPath:  env.Get("RAW_STATIONS_FILE", ""),

		GeocodeFailLog:    env.Get("GEOCODE_FAIL_LOG", "data/failed_geocoding.txt"),
		TravelTimeFailLog: env.Get("TRAVEL_TIME_FAIL_LOG", "data/failed_travel_times.txt"),

		CallInterval:       time.Duration(env.GetInt("CALL_INTERVAL_MS", 1000)) * time.Millisecond,
		RefreshTravelTimes: env.GetBool("REFRESH_TRAVEL_TIMES", false),

		Port: env.GetInt("PORT", 4002),
	}
}

// Destination is a fixed commute target travel times are sampled against.
type Destination struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type destinationsFile struct {
	Destinations []Destination `yaml:"destinations"`
}

// LoadDestinations reads the YAML destinations file.
func LoadDestinations(path string) ([]Destination, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("destinations read %s: %w", path, err)
	}
	var f destinationsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("destinations parse %s: %w", path, err)
	}
	if len(f.Destinations) == 0 {
		return nil, fmt.Errorf("destinations file %s lists no destinations", path)
	}
	return f.Destinations, nil
}
