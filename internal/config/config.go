package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the service.
type Config struct {
	TelegramToken     string
	DatabaseURL       string
	HTTPAddr          string
	ProximityInterval time.Duration
	ReconcileInterval time.Duration
	DefaultRadius     float64
	LocationMaxAge    time.Duration
	Fallback          *Coordinates
	LogLevel          string
	LogFile           string
}

// Coordinates is a fixed fallback position.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Load reads configuration from an optional .env file and environment variables with sane defaults.
func Load() (Config, error) {
	// A missing .env is fine; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		TelegramToken:     env("TELEGRAM_TOKEN"),
		DatabaseURL:       env("DATABASE_URL"),
		HTTPAddr:          ":8080",
		ProximityInterval: parseDuration(env("PROXIMITY_INTERVAL_SECONDS"), time.Second),
		ReconcileInterval: parseDuration(env("RECONCILE_INTERVAL_MINUTES"), time.Minute),
		DefaultRadius:     parsePositiveFloat(env("DEFAULT_RADIUS_METERS")),
		LocationMaxAge:    parseDuration(env("LOCATION_MAX_AGE_MINUTES"), time.Minute),
		LogLevel:          strings.ToLower(env("LOG_LEVEL")),
		LogFile:           env("LOG_FILE"),
	}

	if addr, ok := os.LookupEnv("HTTP_ADDR"); ok {
		cfg.HTTPAddr = strings.TrimSpace(addr)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "taska.db"
	}
	if cfg.ProximityInterval == 0 {
		cfg.ProximityInterval = 30 * time.Second
	}
	if cfg.ReconcileInterval == 0 {
		cfg.ReconcileInterval = 15 * time.Minute
	}
	if cfg.DefaultRadius == 0 {
		cfg.DefaultRadius = 300
	}
	if cfg.LocationMaxAge == 0 {
		cfg.LocationMaxAge = 10 * time.Minute
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	lat, latErr := strconv.ParseFloat(env("FALLBACK_LAT"), 64)
	lon, lonErr := strconv.ParseFloat(env("FALLBACK_LON"), 64)
	if latErr == nil && lonErr == nil {
		cfg.Fallback = &Coordinates{Latitude: lat, Longitude: lon}
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseDuration(raw string, unit time.Duration) time.Duration {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * unit
}

func parsePositiveFloat(raw string) float64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}
