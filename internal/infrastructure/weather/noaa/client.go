// Package noaa fetches current conditions from the NOAA Weather Service
// API (https://www.weather.gov/documentation/services-web-api). The API is
// keyless but requires an identifying User-Agent.
package noaa

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pyroguard/sentinel/internal/core/domain"
	"github.com/pyroguard/sentinel/internal/infrastructure/resilience"
	"github.com/pyroguard/sentinel/internal/infrastructure/transport"
)

// Per-field defaults substituted when a station observation omits a
// measurement. These match the scoring defaults so a sparse observation
// never skews the risk model.
const (
	defaultTemperatureF = 75.0
	defaultHumidityPct  = 65.0
	defaultWindMph      = 10.0
	defaultConditions   = "partly cloudy"
)

type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

func New(baseURL, userAgent string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
		logger:     logger,
	}
}

// measurement is NOAA's quantitative value wrapper; Value is null when the
// station did not report the field.
type measurement struct {
	Value *float64 `json:"value"`
}

type pointsResponse struct {
	Properties struct {
		ObservationStations string `json:"observationStations"`
	} `json:"properties"`
}

type stationsResponse struct {
	Features []struct {
		Properties struct {
			StationIdentifier string `json:"stationIdentifier"`
		} `json:"properties"`
	} `json:"features"`
}

type observationResponse struct {
	Properties struct {
		Temperature      measurement `json:"temperature"`
		RelativeHumidity measurement `json:"relativeHumidity"`
		WindSpeed        measurement `json:"windSpeed"`
		TextDescription  string      `json:"textDescription"`
	} `json:"properties"`
}

// FetchWeather walks the documented NOAA flow: points -> nearest station ->
// latest observation. Demo mode skips the network entirely and returns
// deterministic Hawaiian trade-wind conditions.
func (c *Client) FetchWeather(ctx context.Context, lat, lon float64, demoMode bool) (domain.WeatherData, error) {
	if demoMode {
		return demoWeather(lat, lon), nil
	}

	stationID, err := c.nearestStation(ctx, lat, lon)
	if err != nil {
		return domain.WeatherData{}, transport.WrapTemporary("noaa station lookup", err)
	}

	var obs observationResponse
	url := fmt.Sprintf("%s/stations/%s/observations/latest", c.baseURL, stationID)
	if err := c.getJSON(ctx, "noaa.observations", url, &obs); err != nil {
		return domain.WeatherData{}, transport.WrapTemporary("noaa observations", err)
	}

	wx := domain.WeatherData{
		TemperatureF:    defaultTemperatureF,
		HumidityPercent: defaultHumidityPct,
		WindSpeedMph:    defaultWindMph,
		Conditions:      defaultConditions,
	}
	if v := obs.Properties.Temperature.Value; v != nil {
		wx.TemperatureF = celsiusToFahrenheit(*v)
	}
	if v := obs.Properties.RelativeHumidity.Value; v != nil {
		wx.HumidityPercent = *v
	}
	if v := obs.Properties.WindSpeed.Value; v != nil {
		wx.WindSpeedMph = metersPerSecondToMph(*v)
	}
	if desc := strings.TrimSpace(obs.Properties.TextDescription); desc != "" {
		wx.Conditions = strings.ToLower(desc)
	}

	c.logger.Info("noaa observation fetched",
		"station", stationID,
		"temperature_f", wx.TemperatureF,
		"humidity_pct", wx.HumidityPercent,
		"wind_mph", wx.WindSpeedMph,
	)
	return wx, nil
}

func (c *Client) nearestStation(ctx context.Context, lat, lon float64) (string, error) {
	var points pointsResponse
	url := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, lat, lon)
	if err := c.getJSON(ctx, "noaa.points", url, &points); err != nil {
		return "", err
	}
	if points.Properties.ObservationStations == "" {
		return "", fmt.Errorf("points response has no observation stations link")
	}

	var stations stationsResponse
	if err := c.getJSON(ctx, "noaa.stations", points.Properties.ObservationStations, &stations); err != nil {
		return "", err
	}
	// Stations are ordered by distance; the first is the nearest.
	if len(stations.Features) == 0 || stations.Features[0].Properties.StationIdentifier == "" {
		return "", fmt.Errorf("no observation stations near %.4f, %.4f", lat, lon)
	}
	return stations.Features[0].Properties.StationIdentifier, nil
}

// Probe implements the health check used by the system-status endpoint.
func (c *Client) Probe(ctx context.Context) error {
	var points pointsResponse
	url := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, 21.3099, -157.8581)
	return c.getJSON(ctx, "noaa.probe", url, &points)
}

func (c *Client) getJSON(ctx context.Context, operation, url string, out any) error {
	headers := map[string]string{
		"User-Agent": c.userAgent,
		"Accept":     "application/geo+json",
	}
	call := func(callCtx context.Context) error {
		return transport.GetJSON(callCtx, c.httpClient, url, headers, out, operation)
	}
	if c.executor != nil {
		return c.executor.Execute(ctx, operation, call, transport.ClassifyHTTPError)
	}
	return call(ctx)
}

func celsiusToFahrenheit(c float64) float64 { return c*9/5 + 32 }

func metersPerSecondToMph(mps float64) float64 { return mps * 2.237 }
