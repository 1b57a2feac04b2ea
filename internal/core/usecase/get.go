package usecase

import (
	"context"

	"github.com/pyroguard/sentinel/internal/core/domain"
	"github.com/pyroguard/sentinel/internal/core/ports"
)

// GetAnalysisUseCase is the read model behind the polling endpoint.
type GetAnalysisUseCase struct {
	store ports.AnalysisStore
}

func NewGetAnalysisUseCase(store ports.AnalysisStore) *GetAnalysisUseCase {
	return &GetAnalysisUseCase{store: store}
}

func (uc *GetAnalysisUseCase) GetByID(ctx context.Context, id string) (*domain.Analysis, error) {
	return uc.store.Get(ctx, id)
}
