package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal      *prometheus.CounterVec
	processDuration   *prometheus.HistogramVec
	processInFlight   prometheus.Gauge
	phaseDuration     *prometheus.HistogramVec
	fallbackTierTotal *prometheus.CounterVec
	queueLag          *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pyroguard",
			Subsystem: "worker",
			Name:      "analysis_process_total",
			Help:      "Total processed analyses by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pyroguard",
			Subsystem: "worker",
			Name:      "analysis_process_duration_seconds",
			Help:      "Analysis processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pyroguard",
			Subsystem: "worker",
			Name:      "analysis_process_in_flight",
			Help:      "Number of in-flight analysis pipeline runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	phaseDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pyroguard",
			Subsystem: "worker",
			Name:      "phase_duration_seconds",
			Help:      "Pipeline phase duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"service", "phase"},
	)
	fallbackTierTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pyroguard",
			Subsystem: "worker",
			Name:      "fallback_tier_total",
			Help:      "Data source tier that won each collaborator resolution.",
		},
		[]string{"service", "source", "tier"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pyroguard",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between analysis submission and pipeline start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		processTotal,
		processDuration,
		processInFlight,
		phaseDuration,
		fallbackTierTotal,
		queueLag,
	)

	return &WorkerMetrics{
		registry:          registry,
		processTotal:      processTotal,
		processDuration:   processDuration,
		processInFlight:   processInFlight,
		phaseDuration:     phaseDuration,
		fallbackTierTotal: fallbackTierTotal,
		queueLag:          queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartAnalysis() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishAnalysis(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObservePhase(service, phase string, duration time.Duration) {
	m.phaseDuration.WithLabelValues(service, phase).Observe(duration.Seconds())
}

func (m *WorkerMetrics) RecordFallbackTier(service, source, tier string) {
	if tier == "" {
		tier = "unknown"
	}
	m.fallbackTierTotal.WithLabelValues(service, source, tier).Inc()
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
