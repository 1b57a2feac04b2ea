package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pyroguard/sentinel/internal/core/domain"
	"github.com/pyroguard/sentinel/internal/core/ports"
)

// Supported region: Hawaiian Islands bounding box.
const (
	RegionMinLat = 18.9
	RegionMaxLat = 22.2
	RegionMinLon = -160.3
	RegionMaxLon = -154.8
)

// InSupportedRegion reports whether coordinates fall inside the Hawaiian
// Islands bounds the analysis pipeline covers.
func InSupportedRegion(lat, lon float64) bool {
	return lat >= RegionMinLat && lat <= RegionMaxLat &&
		lon >= RegionMinLon && lon <= RegionMaxLon
}

// SubmitAnalysisUseCase validates a request, registers the analysis, and
// hands it to a worker via the job queue. When the queue is unavailable the
// pipeline runs directly in-process so a submission never silently stalls.
type SubmitAnalysisUseCase struct {
	store  ports.AnalysisStore
	queue  ports.JobQueue
	runner ports.AnalysisRunner
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewSubmitAnalysisUseCase wires the submitter. queue may be nil; runner is
// the direct-execution fallback and must not be.
func NewSubmitAnalysisUseCase(
	store ports.AnalysisStore,
	queue ports.JobQueue,
	runner ports.AnalysisRunner,
	clock clockwork.Clock,
	logger *slog.Logger,
) *SubmitAnalysisUseCase {
	return &SubmitAnalysisUseCase{
		store:  store,
		queue:  queue,
		runner: runner,
		clock:  clock,
		logger: logger,
	}
}

func (uc *SubmitAnalysisUseCase) Submit(ctx context.Context, req domain.AnalysisRequest) (*domain.Analysis, error) {
	if !InSupportedRegion(req.Latitude, req.Longitude) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate coordinates",
			fmt.Errorf("coordinates %.4f, %.4f outside supported region (%.1f..%.1f°N, %.1f..%.1f°W)",
				req.Latitude, req.Longitude, RegionMinLat, RegionMaxLat, RegionMinLon, RegionMaxLon))
	}

	analysis := &domain.Analysis{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    domain.StatusProcessing,
		CreatedAt: uc.clock.Now(),
	}
	if err := uc.store.Create(ctx, analysis); err != nil {
		return nil, fmt.Errorf("register analysis: %w", err)
	}

	job := domain.AnalysisJob{
		AnalysisID:  analysis.ID,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		DemoMode:    req.DemoMode,
		SubmittedAt: analysis.CreatedAt,
	}
	uc.dispatch(ctx, job)

	return analysis.Clone(), nil
}

// dispatch prefers the queue; if publishing fails (or no queue is
// configured) the pipeline runs detached from the request context, since
// accepted analyses outlive their submission call.
func (uc *SubmitAnalysisUseCase) dispatch(ctx context.Context, job domain.AnalysisJob) {
	if uc.queue != nil {
		err := uc.queue.PublishAnalysisRequested(ctx, job)
		if err == nil {
			uc.logger.Info("analysis queued",
				"analysis_id", job.AnalysisID,
				"latitude", job.Latitude,
				"longitude", job.Longitude,
				"demo_mode", job.DemoMode,
			)
			return
		}
		uc.logger.Warn("queue publish failed, running pipeline directly",
			"analysis_id", job.AnalysisID, "error", err)
	}

	go func() {
		if err := uc.runner.Run(context.Background(), job); err != nil {
			uc.logger.Error("direct pipeline run failed", "analysis_id", job.AnalysisID, "error", err)
		}
	}()
}
