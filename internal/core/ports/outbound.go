package ports

import (
	"context"

	"github.com/pyroguard/sentinel/internal/core/domain"
)

// AnalysisStore holds the mutable analysis registry. Implementations must
// serialize writes per key, keep distinct keys contention-free, and return
// snapshots from Get so a partial update is never observed half-applied.
type AnalysisStore interface {
	Create(ctx context.Context, analysis *domain.Analysis) error
	Get(ctx context.Context, id string) (*domain.Analysis, error)
	Apply(ctx context.Context, id string, patch domain.AnalysisPatch) error
}

// JobQueue hands accepted analyses to a worker process.
type JobQueue interface {
	PublishAnalysisRequested(ctx context.Context, job domain.AnalysisJob) error
	SubscribeAnalysisRequested(ctx context.Context, handler func(context.Context, domain.AnalysisJob) error) error
}

// TileFetcher retrieves recent satellite imagery for a coordinate pair.
// Returns the raw image bytes plus the acquisition date of the tile.
type TileFetcher interface {
	FetchTile(ctx context.Context, lat, lon float64) ([]byte, string, error)
}

// VegetationAnalyzer scores vegetation dryness from satellite imagery.
// A tier may fail either by returning an error or by returning a
// DrynessScore below zero (the sentinel-invalid convention).
type VegetationAnalyzer interface {
	Name() string
	AnalyzeDryness(ctx context.Context, image []byte, lat, lon float64) (domain.VegetationData, error)
}

// WeatherProvider fetches current conditions for a coordinate pair.
type WeatherProvider interface {
	FetchWeather(ctx context.Context, lat, lon float64, demoMode bool) (domain.WeatherData, error)
}

// InfrastructureProvider surveys power infrastructure around a point.
type InfrastructureProvider interface {
	FetchInfrastructure(ctx context.Context, lat, lon float64, radiusM int, demoMode bool) (domain.InfrastructureData, error)
}

// IncidentDispatcher files an incident for a completed high-risk analysis
// and returns an opaque ticket reference.
type IncidentDispatcher interface {
	DispatchIncident(ctx context.Context, analysis *domain.Analysis) (string, error)
}

// HealthProber reports whether a collaborator is reachable; used by the
// system-status endpoint only.
type HealthProber interface {
	Probe(ctx context.Context) error
}
