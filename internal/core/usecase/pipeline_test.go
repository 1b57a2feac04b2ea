package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pyroguard/sentinel/internal/core/domain"
	"github.com/pyroguard/sentinel/internal/core/ports"
	"github.com/pyroguard/sentinel/internal/observability/metrics"
)

type tileFake struct {
	data []byte
	date string
	err  error
}

func (f *tileFake) FetchTile(context.Context, float64, float64) ([]byte, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, f.date, nil
}

type analyzerFake struct {
	name string
	veg  domain.VegetationData
	err  error
}

func (f *analyzerFake) Name() string { return f.name }

func (f *analyzerFake) AnalyzeDryness(context.Context, []byte, float64, float64) (domain.VegetationData, error) {
	if f.err != nil {
		return domain.VegetationData{}, f.err
	}
	return f.veg, nil
}

type weatherFake struct {
	wx  domain.WeatherData
	err error
}

func (f *weatherFake) FetchWeather(context.Context, float64, float64, bool) (domain.WeatherData, error) {
	if f.err != nil {
		return domain.WeatherData{}, f.err
	}
	return f.wx, nil
}

type infraFake struct {
	data domain.InfrastructureData
	err  error
}

func (f *infraFake) FetchInfrastructure(context.Context, float64, float64, int, bool) (domain.InfrastructureData, error) {
	if f.err != nil {
		return domain.InfrastructureData{}, f.err
	}
	return f.data, nil
}

type incidentFake struct {
	ref    string
	err    error
	called bool
}

func (f *incidentFake) DispatchIncident(_ context.Context, _ *domain.Analysis) (string, error) {
	f.called = true
	if f.err != nil {
		return "", f.err
	}
	return f.ref, nil
}

// zeroDelays disables phase pacing so pipeline tests run synchronously.
var zeroDelays = PipelineOptions{
	DemoPhaseDelays: make([]time.Duration, 7),
	LivePhaseDelays: make([]time.Duration, 7),
}

func seededAnalysis(store *storeFake, id string, lat, lon float64, demo bool) domain.AnalysisJob {
	store.seed(&domain.Analysis{
		ID:      id,
		Request: domain.AnalysisRequest{Latitude: lat, Longitude: lon, DemoMode: demo},
		Status:  domain.StatusProcessing,
	})
	return domain.AnalysisJob{AnalysisID: id, Latitude: lat, Longitude: lon, DemoMode: demo}
}

// The fakes are passed through typed helpers so a nil fake becomes a nil
// port interface instead of a non-nil interface wrapping a nil pointer.
func tilePort(f *tileFake) ports.TileFetcher {
	if f == nil {
		return nil
	}
	return f
}

func analyzerPort(f *analyzerFake) ports.VegetationAnalyzer {
	if f == nil {
		return nil
	}
	return f
}

func newPipeline(
	store *storeFake,
	tiles *tileFake,
	primary, secondary *analyzerFake,
	weather *weatherFake,
	infra *infraFake,
	incidents *incidentFake,
) *RunAnalysisUseCase {
	return NewRunAnalysisUseCase(
		store,
		tilePort(tiles),
		analyzerPort(primary),
		analyzerPort(secondary),
		weather,
		infra,
		incidents,
		metrics.NewWorkerMetrics("test"),
		clockwork.NewRealClock(),
		discardLogger(),
		"test",
		zeroDelays,
	)
}

func TestRunCompletesHighRiskAnalysis(t *testing.T) {
	store := newStoreFake()
	job := seededAnalysis(store, "a-1", 20.8783, -156.6825, false)

	incidents := &incidentFake{ref: "https://tickets.example.com/PYRO-123"}
	uc := newPipeline(
		store,
		&tileFake{data: []byte{0x42}, date: "2026-08-30"},
		&analyzerFake{name: "clarifai_ndvi", veg: domain.VegetationData{DrynessScore: 0.82, Confidence: 0.9, Method: "clarifai_ndvi"}},
		&analyzerFake{name: "vision_llm"},
		&weatherFake{wx: domain.WeatherData{TemperatureF: 90, HumidityPercent: 30, WindSpeedMph: 25, Conditions: "dry"}},
		&infraFake{data: domain.InfrastructureData{LineCount: 6, NearestDistanceM: 80}},
		incidents,
	)

	if err := uc.Run(context.Background(), job); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	final, err := store.Get(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if final.Status != domain.StatusCompleted {
		t.Fatalf("Status = %s, want completed", final.Status)
	}
	if final.Vegetation == nil || final.Vegetation.Method != "clarifai_ndvi" {
		t.Fatalf("unexpected vegetation: %+v", final.Vegetation)
	}
	if final.Vegetation.TileDate != "2026-08-30" {
		t.Fatalf("TileDate = %s, want fetched tile date", final.Vegetation.TileDate)
	}
	if final.Risk == nil || final.Risk.Severity != domain.SeverityHigh {
		t.Fatalf("unexpected risk: %+v", final.Risk)
	}
	if !incidents.called {
		t.Fatal("expected incident dispatch for high risk")
	}
	if final.IncidentRef != incidents.ref {
		t.Fatalf("IncidentRef = %s, want %s", final.IncidentRef, incidents.ref)
	}
	if final.ProcessingSeconds < 0 {
		t.Fatalf("ProcessingSeconds = %v, want non-negative", final.ProcessingSeconds)
	}
}

func TestRunVegetationFallsThroughToDefault(t *testing.T) {
	store := newStoreFake()
	job := seededAnalysis(store, "a-2", 19.7297, -155.09, false)

	uc := newPipeline(
		store,
		&tileFake{err: errors.New("no recent tile")},
		&analyzerFake{name: "clarifai_ndvi", err: errors.New("api quota exceeded")},
		&analyzerFake{name: "vision_llm", veg: domain.VegetationData{DrynessScore: -1, Method: "vision_llm"}},
		&weatherFake{err: errors.New("noaa down")},
		&infraFake{err: errors.New("overpass down")},
		&incidentFake{ref: "https://tickets.example.com/PYRO-7"},
	)

	if err := uc.Run(context.Background(), job); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	final, _ := store.Get(context.Background(), "a-2")
	if final.Status != domain.StatusCompleted {
		t.Fatalf("Status = %s, want completed despite degraded collaborators", final.Status)
	}
	if final.Vegetation.DrynessScore != 0.68 || final.Vegetation.Confidence != 0.75 {
		t.Fatalf("vegetation = %+v, want default tier values {0.68 0.75}", final.Vegetation)
	}
	if final.Vegetation.Method != "fallback_demo" {
		t.Fatalf("Method = %s, want fallback_demo", final.Vegetation.Method)
	}
	if final.Weather.TemperatureF != 75 || final.Weather.HumidityPercent != 65 || final.Weather.WindSpeedMph != 10 {
		t.Fatalf("weather = %+v, want defaults {75 65 10}", final.Weather)
	}
	if final.Infrastructure.LineCount != 0 || final.Infrastructure.NearestDistanceM != 500 {
		t.Fatalf("infrastructure = %+v, want defaults {0 500}", final.Infrastructure)
	}
}

func TestRunSkipsIncidentBelowThreshold(t *testing.T) {
	store := newStoreFake()
	job := seededAnalysis(store, "a-3", 21.3069, -157.8583, true)

	incidents := &incidentFake{ref: "https://tickets.example.com/PYRO-9"}
	uc := newPipeline(
		store,
		nil,
		&analyzerFake{name: "clarifai_ndvi", veg: domain.VegetationData{DrynessScore: 0.5, Confidence: 0.8, Method: "clarifai_ndvi"}},
		nil,
		&weatherFake{err: errors.New("noaa down")},
		&infraFake{err: errors.New("overpass down")},
		incidents,
	)

	if err := uc.Run(context.Background(), job); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	final, _ := store.Get(context.Background(), "a-3")
	if final.Risk.Level >= IncidentThreshold {
		t.Fatalf("test setup drifted: level %v crosses the incident threshold", final.Risk.Level)
	}
	if incidents.called {
		t.Fatal("incident dispatcher must not run below threshold")
	}
	if final.IncidentRef != "" {
		t.Fatalf("IncidentRef = %s, want absent", final.IncidentRef)
	}
	if final.Status != domain.StatusCompleted {
		t.Fatalf("Status = %s, want completed", final.Status)
	}
}

func TestRunUsesEstimatedTicketOnDispatchFailure(t *testing.T) {
	store := newStoreFake()
	job := seededAnalysis(store, "a-4", 20.8783, -156.6825, false)

	uc := newPipeline(
		store,
		nil,
		&analyzerFake{name: "clarifai_ndvi", veg: domain.VegetationData{DrynessScore: 0.82, Confidence: 0.9, Method: "clarifai_ndvi"}},
		nil,
		&weatherFake{wx: domain.WeatherData{TemperatureF: 90, HumidityPercent: 30, WindSpeedMph: 25, Conditions: "dry"}},
		&infraFake{data: domain.InfrastructureData{LineCount: 6, NearestDistanceM: 80}},
		&incidentFake{err: errors.New("webhook 500")},
	)

	if err := uc.Run(context.Background(), job); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	final, _ := store.Get(context.Background(), "a-4")
	if final.IncidentRef != FallbackTicketRef("a-4") {
		t.Fatalf("IncidentRef = %s, want estimated ticket %s", final.IncidentRef, FallbackTicketRef("a-4"))
	}
}

func TestRunMarksFailedOnStoreError(t *testing.T) {
	store := newStoreFake()
	store.failVegetationApply = errors.New("store unavailable")
	job := seededAnalysis(store, "a-5", 20.8783, -156.6825, false)

	uc := newPipeline(
		store,
		nil,
		&analyzerFake{name: "clarifai_ndvi", veg: domain.VegetationData{DrynessScore: 0.5, Confidence: 0.8, Method: "clarifai_ndvi"}},
		nil,
		&weatherFake{},
		&infraFake{},
		&incidentFake{},
	)

	if err := uc.Run(context.Background(), job); err == nil {
		t.Fatal("expected error when the store rejects a phase write")
	}

	final, _ := store.Get(context.Background(), "a-5")
	if final.Status != domain.StatusFailed {
		t.Fatalf("Status = %s, want failed", final.Status)
	}
	if !strings.Contains(final.ErrorMessage, "record vegetation") {
		t.Fatalf("ErrorMessage = %q, want vegetation phase failure", final.ErrorMessage)
	}
}

func TestFallbackTicketRefDeterministic(t *testing.T) {
	first := FallbackTicketRef("a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11")
	second := FallbackTicketRef("a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11")
	if first != second {
		t.Fatalf("same id produced different tickets: %s vs %s", first, second)
	}
	if !strings.HasPrefix(first, "https://pyroguard.atlassian.net/browse/PYRO-") {
		t.Fatalf("unexpected ticket format: %s", first)
	}
	suffix := strings.TrimPrefix(first, "https://pyroguard.atlassian.net/browse/PYRO-")
	if len(suffix) != 3 {
		t.Fatalf("ticket slot %q is not three digits", suffix)
	}
}
