package ports

import (
	"context"

	"github.com/pyroguard/sentinel/internal/core/domain"
)

// AnalysisSubmitter is the inbound contract for accepting analysis requests.
// A successful submission has already created the analysis record; callers
// may poll or stream immediately.
type AnalysisSubmitter interface {
	Submit(ctx context.Context, req domain.AnalysisRequest) (*domain.Analysis, error)
}

// AnalysisReader is the inbound read model for analysis state.
type AnalysisReader interface {
	GetByID(ctx context.Context, id string) (*domain.Analysis, error)
}

// AnalysisRunner executes the phase pipeline for an accepted analysis.
type AnalysisRunner interface {
	Run(ctx context.Context, job domain.AnalysisJob) error
}

// ProgressSubscriber produces a single-use event sequence for one analysis.
// The returned channel is closed after a terminal (complete/timeout/error)
// event or once ctx is cancelled.
type ProgressSubscriber interface {
	Subscribe(ctx context.Context, analysisID string) (<-chan domain.ProgressEvent, error)
}
