package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultFeedBaseURL    = "https://api.waqi.info/feed"
	defaultStationID      = "6699"
	defaultFeedStationID  = "6037"
	defaultParameter      = "pm25"
	defaultTimezone       = "Europe/Madrid"
	defaultRequestTimeout = 10 * time.Second
	defaultMaxRetries     = 3
	defaultRetryBaseDelay = time.Second
	defaultEmptyDayValue  = 25.0
	defaultAlertThreshold = 25.0
	defaultPort           = 8080
	defaultHistoricalDays = 5
	defaultFallbackWindow = 7
)

// Config holds runtime configuration for the pipeline and the API.
type Config struct {
	DatabaseURL    string
	FeedBaseURL    string
	FeedToken      string
	StationID      string
	FeedStationID  string
	Parameter      string
	Timezone       string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration

	// EmptyDayValue is the interpolation constant used when a whole day has
	// no readings. It is an arbitrary estimate, not a physical constant.
	EmptyDayValue  float64
	AlertThreshold float64

	HistoricalDays int
	FallbackWindow int

	Port   int
	DryRun bool

	location *time.Location
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{
		FeedBaseURL:    defaultFeedBaseURL,
		StationID:      defaultStationID,
		FeedStationID:  defaultFeedStationID,
		Parameter:      defaultParameter,
		Timezone:       defaultTimezone,
		RequestTimeout: defaultRequestTimeout,
		MaxRetries:     defaultMaxRetries,
		RetryBaseDelay: defaultRetryBaseDelay,
		EmptyDayValue:  defaultEmptyDayValue,
		AlertThreshold: defaultAlertThreshold,
		HistoricalDays: defaultHistoricalDays,
		FallbackWindow: defaultFallbackWindow,
		Port:           defaultPort,
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	cfg.FeedToken = strings.TrimSpace(os.Getenv("WAQI_TOKEN"))

	if v := strings.TrimSpace(os.Getenv("WAQI_BASE_URL")); v != "" {
		cfg.FeedBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("STATION_ID")); v != "" {
		cfg.StationID = v
	}
	if v := strings.TrimSpace(os.Getenv("WAQI_STATION_ID")); v != "" {
		cfg.FeedStationID = v
	}
	if v := strings.TrimSpace(os.Getenv("PARAMETER")); v != "" {
		cfg.Parameter = v
	}
	if v := strings.TrimSpace(os.Getenv("TIMEZONE")); v != "" {
		cfg.Timezone = v
	}

	if v := strings.TrimSpace(os.Getenv("FEED_REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid FEED_REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv("FEED_MAX_RETRIES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("invalid FEED_MAX_RETRIES: %s", v)
		}
		cfg.MaxRetries = n
	}

	if v := strings.TrimSpace(os.Getenv("FEED_RETRY_BASE_DELAY")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid FEED_RETRY_BASE_DELAY: %w", err)
		}
		cfg.RetryBaseDelay = d
	}

	if v := strings.TrimSpace(os.Getenv("EMPTY_DAY_VALUE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid EMPTY_DAY_VALUE: %w", err)
		}
		cfg.EmptyDayValue = f
	}

	if v := strings.TrimSpace(os.Getenv("ALERT_THRESHOLD")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid ALERT_THRESHOLD: %w", err)
		}
		cfg.AlertThreshold = f
	}

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 {
			return cfg, fmt.Errorf("invalid PORT: %s", v)
		}
		cfg.Port = p
	}

	dryRun := strings.TrimSpace(os.Getenv("DRY_RUN"))
	cfg.DryRun = dryRun == "1" || strings.EqualFold(dryRun, "true")

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return cfg, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	return cfg, nil
}

// Location returns the station's timezone.
func (c Config) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
