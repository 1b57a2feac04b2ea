// Package bootstrap assembles the engine from configuration. Both binaries
// share one wiring path so the api's direct-run fallback and the worker
// execute the exact same pipeline.
package bootstrap

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/pyroguard/sentinel/internal/config"
	"github.com/pyroguard/sentinel/internal/core/ports"
	"github.com/pyroguard/sentinel/internal/core/usecase"
	"github.com/pyroguard/sentinel/internal/infrastructure/incident/makecom"
	"github.com/pyroguard/sentinel/internal/infrastructure/powergrid/overpass"
	"github.com/pyroguard/sentinel/internal/infrastructure/queue/nats"
	"github.com/pyroguard/sentinel/internal/infrastructure/resilience"
	"github.com/pyroguard/sentinel/internal/infrastructure/satellite/sentinel2"
	"github.com/pyroguard/sentinel/internal/infrastructure/store/memory"
	"github.com/pyroguard/sentinel/internal/infrastructure/vision/clarifai"
	"github.com/pyroguard/sentinel/internal/infrastructure/vision/openaivision"
	"github.com/pyroguard/sentinel/internal/infrastructure/weather/noaa"
	"github.com/pyroguard/sentinel/internal/observability/logging"
	"github.com/pyroguard/sentinel/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Store ports.AnalysisStore
	Queue ports.JobQueue

	Submitter ports.AnalysisSubmitter
	Reader    ports.AnalysisReader
	Streamer  ports.ProgressSubscriber
	Runner    ports.AnalysisRunner

	// Probes back the system-status endpoint. Unconfigured collaborators
	// are present with a nil value so they report as not_configured.
	Probes map[string]ports.HealthProber

	HTTPMetrics   *metrics.HTTPServerMetrics
	WorkerMetrics *metrics.WorkerMetrics

	closeFn func()
}

// New wires the full engine for the named service ("pyroguard-api" or
// "pyroguard-worker"). A missing NATS broker is not fatal: submissions fall
// back to running the pipeline in-process.
func New(cfg config.Config, service string) (*App, error) {
	logger := logging.Setup(service, cfg.LogLevel)
	clock := clockwork.NewRealClock()

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: time.Duration(cfg.RetryBackoffMillis) * time.Millisecond,
	}, logger)

	store := memory.NewAnalysisStore()

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		logger.Warn("nats unavailable, submissions run in-process",
			"url", cfg.NATSURL, "error", err)
		queue = nil
	}

	tiles, err := sentinel2.New(sentinel2.Options{
		Endpoint:        cfg.SatelliteS3Endpoint,
		AccessKeyID:     cfg.SatelliteAccessKey,
		SecretAccessKey: cfg.SatelliteSecretKey,
		Region:          cfg.SatelliteRegion,
		Clock:           clock,
		Logger:          logger,
	})
	if err != nil {
		if queue != nil {
			queue.Close()
		}
		return nil, err
	}

	collaboratorTimeout := time.Duration(cfg.CollaboratorTimeoutSeconds) * time.Second

	primary := clarifai.New(cfg.ClarifaiPAT, cfg.ClarifaiUserID, cfg.ClarifaiAppID, clarifai.Options{
		BaseURL:            cfg.ClarifaiBaseURL,
		Timeout:            collaboratorTimeout,
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	secondary := openaivision.New(cfg.VisionAPIKey, openaivision.Options{
		BaseURL: cfg.VisionBaseURL,
		Model:   cfg.VisionModel,
		Timeout: collaboratorTimeout,
		Logger:  logger,
	})
	weather := noaa.New(cfg.NOAABaseURL, cfg.NOAAUserAgent, noaa.Options{
		Timeout:            time.Duration(cfg.NOAATimeoutSeconds) * time.Second,
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	infra := overpass.New(cfg.OverpassEndpoint, overpass.Options{
		Timeout:            collaboratorTimeout,
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	incidents := makecom.New(cfg.MakeWebhookURL, makecom.Options{
		JiraBaseURL:        cfg.JiraBaseURL,
		Timeout:            collaboratorTimeout,
		ResilienceExecutor: executor,
		Logger:             logger,
	})

	workerMetrics := metrics.NewWorkerMetrics(service)
	httpMetrics := metrics.NewHTTPServerMetrics(service)

	runner := usecase.NewRunAnalysisUseCase(
		store, tiles, primary, secondary, weather, infra, incidents,
		workerMetrics, clock, logger, service,
		usecase.PipelineOptions{
			CollaboratorTimeout: collaboratorTimeout,
			SearchRadiusM:       cfg.InfrastructureRadiusM,
		},
	)
	submitter := usecase.NewSubmitAnalysisUseCase(store, jobQueue(queue), runner, clock, logger)
	reader := usecase.NewGetAnalysisUseCase(store)
	streamer := usecase.NewProgressStreamUseCase(store, clock, logger, usecase.StreamOptions{})

	probes := map[string]ports.HealthProber{
		"satellite_imagery":    tiles,
		"satellite_analysis":   prober(cfg.ClarifaiPAT != "", primary),
		"weather_service":      weather,
		"power_infrastructure": infra,
		"incident_automation":  prober(cfg.MakeWebhookURL != "", incidents),
	}

	return &App{
		Config: cfg,
		Logger: logger,

		Store: store,
		Queue: jobQueue(queue),

		Submitter: submitter,
		Reader:    reader,
		Streamer:  streamer,
		Runner:    runner,

		Probes: probes,

		HTTPMetrics:   httpMetrics,
		WorkerMetrics: workerMetrics,

		closeFn: func() {
			if queue != nil {
				queue.Close()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// jobQueue avoids the classic nil-pointer-in-interface trap: a nil *Queue
// wrapped in ports.JobQueue would compare non-nil downstream.
func jobQueue(q *nats.Queue) ports.JobQueue {
	if q == nil {
		return nil
	}
	return q
}

func prober(configured bool, p ports.HealthProber) ports.HealthProber {
	if !configured {
		return nil
	}
	return p
}
