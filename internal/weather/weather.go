// Package weather fetches current conditions for the school's location from
// the Open-Meteo forecast API.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultBaseURL  = "https://api.open-meteo.com/v1/forecast"
	RefreshInterval = 10 * time.Minute
)

type Reading struct {
	TemperatureC float64   `json:"temperature_c"`
	WeatherCode  int       `json:"weather_code"`
	Description  string    `json:"description"`
	ObservedAt   string    `json:"observed_at"`
	FetchedAt    time.Time `json:"fetched_at"`
}

type Client struct {
	http     *http.Client
	baseURL  string
	lat, lon float64
	timezone string
}

func NewClient(lat, lon float64, timezone string) *Client {
	return &Client{
		http:     &http.Client{Timeout: 10 * time.Second},
		baseURL:  DefaultBaseURL,
		lat:      lat,
		lon:      lon,
		timezone: timezone,
	}
}

// WithBaseURL points the client at another endpoint (tests, mirrors).
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

func (c *Client) Current(ctx context.Context) (*Reading, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(c.lat, 'f', 4, 64))
	q.Set("longitude", strconv.FormatFloat(c.lon, 'f', 4, 64))
	q.Set("current", "temperature_2m,weather_code")
	if c.timezone != "" {
		q.Set("timezone", c.timezone)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get weather: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get weather: status %d", resp.StatusCode)
	}

	var body struct {
		Current struct {
			Time        string   `json:"time"`
			Temperature *float64 `json:"temperature_2m"`
			WeatherCode int      `json:"weather_code"`
		} `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode weather: %w", err)
	}
	if body.Current.Temperature == nil {
		return nil, fmt.Errorf("weather response has no current temperature")
	}

	return &Reading{
		TemperatureC: *body.Current.Temperature,
		WeatherCode:  body.Current.WeatherCode,
		Description:  Describe(body.Current.WeatherCode),
		ObservedAt:   body.Current.Time,
		FetchedAt:    time.Now(),
	}, nil
}

// Describe maps a WMO weather interpretation code to a short label.
func Describe(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code <= 3:
		return "partly cloudy"
	case code == 45 || code == 48:
		return "fog"
	case code >= 51 && code <= 57:
		return "drizzle"
	case code >= 61 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "showers"
	case code == 85 || code == 86:
		return "snow showers"
	case code >= 95 && code <= 99:
		return "thunderstorm"
	}
	return "unknown"
}
