// Package httpadapter exposes the analysis engine over HTTP: submission,
// state reads, an SSE progress stream, and operational endpoints.
package httpadapter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/pyroguard/sentinel/internal/core/domain"
	"github.com/pyroguard/sentinel/internal/core/ports"
	"github.com/pyroguard/sentinel/internal/observability/metrics"
)

// analysisPhases mirrors the pipeline order for the submit response.
var analysisPhases = []string{
	"Location Verification",
	"Satellite Image Analysis",
	"Weather Data Integration",
	"Power Infrastructure Analysis",
	"Risk Assessment",
	"Incident Automation",
	"Complete",
}

type Options struct {
	ServiceName      string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	AllowedOrigins   []string
	ProbeTimeout     time.Duration
}

func (o *Options) normalize() {
	if o.ServiceName == "" {
		o.ServiceName = "pyroguard-api"
	}
	if o.BackpressureWait <= 0 {
		o.BackpressureWait = 200 * time.Millisecond
	}
	if len(o.AllowedOrigins) == 0 {
		o.AllowedOrigins = []string{"*"}
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 10 * time.Second
	}
}

type Router struct {
	submitter ports.AnalysisSubmitter
	reader    ports.AnalysisReader
	streamer  ports.ProgressSubscriber
	probes    map[string]ports.HealthProber
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
	opts      Options
}

// NewRouter wires the HTTP surface. probes maps collaborator names onto
// their health checks for the system-status endpoint; nil entries are
// reported as not configured.
func NewRouter(
	submitter ports.AnalysisSubmitter,
	reader ports.AnalysisReader,
	streamer ports.ProgressSubscriber,
	probes map[string]ports.HealthProber,
	serverMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
	opts Options,
) *Router {
	opts.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	if serverMetrics == nil {
		serverMetrics = metrics.NewHTTPServerMetrics(opts.ServiceName)
	}
	return &Router{
		submitter: submitter,
		reader:    reader,
		streamer:  streamer,
		probes:    probes,
		metrics:   serverMetrics,
		logger:    logger,
		opts:      opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := chi.NewRouter()

	mux.Use(requestIDMiddleware)
	mux.Use(func(next http.Handler) http.Handler {
		return accessLogMiddleware(rt.logger, next)
	})
	mux.Use(func(next http.Handler) http.Handler {
		return rt.metrics.Middleware(rt.opts.ServiceName, next)
	})
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
	}))

	mux.Get("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())

	submit := backpressureMiddleware(
		rateLimitMiddleware(http.HandlerFunc(rt.submitAnalysis), rt.opts.RateLimitRPS, rt.opts.RateLimitBurst),
		rt.opts.MaxInFlight, rt.opts.BackpressureWait,
	)

	mux.Route("/v1", func(v1 chi.Router) {
		v1.Method(http.MethodPost, "/analyses", submit)
		v1.Get("/analyses/{analysis_id}", rt.getAnalysis)
		v1.Get("/analyses/{analysis_id}/progress", rt.streamProgress)
		v1.Get("/demo-locations", rt.demoLocations)
		v1.Get("/system-status", rt.systemStatus)
	})

	return mux
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) submitAnalysis(w http.ResponseWriter, r *http.Request) {
	var req domain.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	analysis, err := rt.submitter.Submit(r.Context(), req)
	if err != nil {
		rt.writeError(w, r, "submit analysis", err)
		return
	}
	rt.metrics.RecordSubmission(rt.opts.ServiceName, req.DemoMode)

	estimated := 12
	if req.DemoMode {
		estimated = 4
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"analysis_id": analysis.ID,
		"status":      analysis.Status,
		"coordinates": map[string]float64{
			"latitude":  req.Latitude,
			"longitude": req.Longitude,
		},
		"demo_mode":                    req.DemoMode,
		"created_at":                   analysis.CreatedAt,
		"estimated_completion_seconds": estimated,
		"progress_url":                 fmt.Sprintf("/v1/analyses/%s/progress", analysis.ID),
		"result_url":                   fmt.Sprintf("/v1/analyses/%s", analysis.ID),
		"phases":                       analysisPhases,
	})
}

func (rt *Router) getAnalysis(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "analysis_id")
	analysis, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, "get analysis", err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (rt *Router) demoLocations(w http.ResponseWriter, _ *http.Request) {
	type location struct {
		Name        string  `json:"name"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		Description string  `json:"description"`
	}
	writeJSON(w, http.StatusOK, map[string][]location{
		"locations": {
			{"West Maui (High Risk)", 20.9801, -156.6927, "Dry grasslands near power infrastructure"},
			{"Big Island Volcano Area", 19.7633, -155.5739, "Active volcanic region with vegetation"},
			{"Oahu North Shore", 21.6389, -158.0001, "Coastal area with moderate vegetation"},
			{"Kauai Interior", 22.0964, -159.5261, "Dense forest area, lower fire risk"},
		},
	})
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		rt.logger.Error(operation+" failed",
			"request_id", requestIDFromContext(r.Context()), "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
