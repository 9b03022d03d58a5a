// Package waqi fetches the hourly pollutant time series for one monitoring
// station from the external WAQI feed.
package waqi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/airgijon/aircore/internal/series"
)

// Config drives the feed client.
type Config struct {
	BaseURL        string
	Token          string
	StationID      string
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// Client calls the feed with bounded retries and a circuit breaker. A feed
// outage is never fatal for the pipeline; callers degrade to the next
// provenance tier.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient builds a feed client.
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "waqi-feed",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
	}
}

// Snapshot is the decoded feed payload for one station.
type Snapshot struct {
	AQI             *float64
	MeasurementTime time.Time
	Pollutants      map[string]float64
	History         []HourlyPoint
}

// HourlyPoint is one historical hour with its per-pollutant values.
type HourlyPoint struct {
	Time   time.Time
	Values map[string]float64
}

type apiValue struct {
	V float64 `json:"v"`
}

type apiHistory struct {
	Time string              `json:"time"`
	IAQI map[string]apiValue `json:"iaqi"`
}

type apiResponse struct {
	Status string `json:"status"`
	Data   struct {
		AQI  *float64 `json:"aqi"`
		Time struct {
			ISO string `json:"iso"`
		} `json:"time"`
		IAQI    map[string]apiValue `json:"iaqi"`
		History []apiHistory        `json:"history"`
	} `json:"data"`
}

// Fetch retrieves the station payload, retrying up to MaxRetries times with
// exponential backoff before giving up.
func (c *Client) Fetch(ctx context.Context) (*Snapshot, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBaseDelay << (attempt - 1)
			log.Warn().Err(lastErr).Int("attempt", attempt+1).Dur("backoff", delay).
				Msg("retrying feed fetch")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		snap, err := c.fetchOnce(ctx)
		if err == nil {
			return snap, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("feed unavailable after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context) (*Snapshot, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		url := fmt.Sprintf("%s/@%s/?token=%s&history=1", c.cfg.BaseURL, c.cfg.StationID, c.cfg.Token)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request feed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("unexpected status %s", resp.Status)
		}

		var payload apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		if payload.Status != "ok" {
			return nil, fmt.Errorf("feed status %q", payload.Status)
		}
		return decodeSnapshot(payload)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Snapshot), nil
}

func decodeSnapshot(payload apiResponse) (*Snapshot, error) {
	snap := &Snapshot{
		AQI:        payload.Data.AQI,
		Pollutants: make(map[string]float64, len(payload.Data.IAQI)),
	}

	if payload.Data.Time.ISO != "" {
		ts, err := time.Parse(time.RFC3339, payload.Data.Time.ISO)
		if err != nil {
			return nil, fmt.Errorf("parse measurement time: %w", err)
		}
		snap.MeasurementTime = ts
	}

	for param, v := range payload.Data.IAQI {
		snap.Pollutants[param] = v.V
	}

	for _, rec := range payload.Data.History {
		ts, err := time.Parse(time.RFC3339, rec.Time)
		if err != nil {
			log.Warn().Str("time", rec.Time).Msg("skipping history record with bad timestamp")
			continue
		}
		values := make(map[string]float64, len(rec.IAQI))
		for param, v := range rec.IAQI {
			values[param] = v.V
		}
		snap.History = append(snap.History, HourlyPoint{Time: ts, Values: values})
	}

	return snap, nil
}

// Too few readings make a feed-side daily average unreliable.
const minDailyReadings = 3

// DailyAverage computes the mean of one parameter over a calendar day in
// the station's timezone from the snapshot history. It returns nil when the
// day has fewer than minDailyReadings values.
func (s *Snapshot) DailyAverage(parameter string, day time.Time, loc *time.Location) (*float64, int) {
	dayStr := day.In(loc).Format("2006-01-02")

	sum := 0.0
	count := 0
	for _, point := range s.History {
		if point.Time.In(loc).Format("2006-01-02") != dayStr {
			continue
		}
		if v, ok := point.Values[parameter]; ok {
			sum += v
			count++
		}
	}

	if count < minDailyReadings {
		return nil, count
	}
	avg := series.Round2(sum / float64(count))
	return &avg, count
}
