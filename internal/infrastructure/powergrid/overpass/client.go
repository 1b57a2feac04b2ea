// Package overpass surveys power infrastructure around a coordinate via the
// OpenStreetMap Overpass API.
package overpass

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/pyroguard/sentinel/internal/core/domain"
	"github.com/pyroguard/sentinel/internal/infrastructure/resilience"
	"github.com/pyroguard/sentinel/internal/infrastructure/transport"
)

const queryTimeoutSeconds = 5

type Client struct {
	endpoint   string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
}

type Options struct {
	Timeout            time.Duration
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

func New(endpoint string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
		logger:     logger,
	}
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type     string            `json:"type"`
	Lat      float64           `json:"lat"`
	Lon      float64           `json:"lon"`
	Tags     map[string]string `json:"tags"`
	Geometry []struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"geometry"`
}

// FetchInfrastructure queries power lines, minor lines, towers, and poles
// within radiusM of the point. Demo mode returns a fixed plausible survey
// without touching the network.
func (c *Client) FetchInfrastructure(ctx context.Context, lat, lon float64, radiusM int, demoMode bool) (domain.InfrastructureData, error) {
	if demoMode {
		return domain.InfrastructureData{LineCount: 3, NearestDistanceM: 230, TowerCount: 1}, nil
	}

	query := buildQuery(lat, lon, radiusM)
	var result overpassResponse
	call := func(callCtx context.Context) error {
		return transport.PostRaw(callCtx, c.httpClient, c.endpoint,
			"text/plain; charset=utf-8", []byte(query), &result, "overpass.query")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "overpass.query", call, transport.ClassifyHTTPError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.InfrastructureData{}, transport.WrapTemporary("overpass query", err)
	}

	survey := analyze(result.Elements, lat, lon, float64(radiusM))
	c.logger.Info("power infrastructure surveyed",
		"line_count", survey.LineCount,
		"tower_count", survey.TowerCount,
		"nearest_m", survey.NearestDistanceM,
	)
	return survey, nil
}

// Probe implements the health check used by the system-status endpoint.
func (c *Client) Probe(ctx context.Context) error {
	query := "[out:json][timeout:5]; way[highway](around:100,21.3099,-157.8581); out count;"
	var result overpassResponse
	return transport.PostRaw(ctx, c.httpClient, c.endpoint,
		"text/plain; charset=utf-8", []byte(query), &result, "overpass.probe")
}

func buildQuery(lat, lon float64, radiusM int) string {
	return fmt.Sprintf(`[out:json][timeout:%d];
(
  way["power"="line"](around:%d,%f,%f);
  way["power"="minor_line"](around:%d,%f,%f);
  node["power"="tower"](around:%d,%f,%f);
  node["power"="pole"](around:%d,%f,%f);
);
out geom;`,
		queryTimeoutSeconds,
		radiusM, lat, lon,
		radiusM, lat, lon,
		radiusM, lat, lon,
		radiusM, lat, lon,
	)
}

func analyze(elements []overpassElement, lat, lon, radiusM float64) domain.InfrastructureData {
	lineCount := 0
	towerCount := 0
	nearest := math.Inf(1)

	for _, element := range elements {
		switch element.Tags["power"] {
		case "line", "minor_line":
			lineCount++
			for _, node := range element.Geometry {
				nearest = math.Min(nearest, haversineMeters(lat, lon, node.Lat, node.Lon))
			}
			if len(element.Geometry) == 0 && element.Lat != 0 {
				nearest = math.Min(nearest, haversineMeters(lat, lon, element.Lat, element.Lon))
			}
		case "tower", "pole":
			if element.Tags["power"] == "tower" {
				towerCount++
			}
			nearest = math.Min(nearest, haversineMeters(lat, lon, element.Lat, element.Lon))
		}
	}

	if math.IsInf(nearest, 1) {
		nearest = radiusM
	}
	return domain.InfrastructureData{
		LineCount:        lineCount,
		NearestDistanceM: math.Round(nearest*10) / 10,
		TowerCount:       towerCount,
	}
}

// haversineMeters is the great-circle distance between two points.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6371000.0

	lat1R := lat1 * math.Pi / 180
	lat2R := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1R)*math.Cos(lat2R)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}
