package usecase

import (
	"context"
	"sync"

	"github.com/pyroguard/sentinel/internal/core/domain"
)

// storeFake is an in-memory AnalysisStore with injectable failures, shared
// by the submit, pipeline, and stream tests.
type storeFake struct {
	mu       sync.Mutex
	analyses map[string]*domain.Analysis

	createErr error
	getErr    error
	applyErr  error
	// failVegetationApply fails only the patch carrying vegetation data,
	// leaving the terminal failure write itself working.
	failVegetationApply error

	applied []domain.AnalysisPatch
}

func newStoreFake() *storeFake {
	return &storeFake{analyses: make(map[string]*domain.Analysis)}
}

func (f *storeFake) Create(_ context.Context, analysis *domain.Analysis) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyses[analysis.ID] = analysis.Clone()
	return nil
}

func (f *storeFake) Get(_ context.Context, id string) (*domain.Analysis, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	analysis, ok := f.analyses[id]
	if !ok {
		return nil, domain.ErrAnalysisNotFound
	}
	return analysis.Clone(), nil
}

func (f *storeFake) Apply(_ context.Context, id string, patch domain.AnalysisPatch) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	if f.failVegetationApply != nil && patch.Vegetation != nil {
		return f.failVegetationApply
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	analysis, ok := f.analyses[id]
	if !ok {
		return domain.ErrAnalysisNotFound
	}
	f.applied = append(f.applied, patch)
	if patch.Status != nil {
		analysis.Status = *patch.Status
	}
	if patch.Vegetation != nil {
		v := *patch.Vegetation
		analysis.Vegetation = &v
	}
	if patch.Weather != nil {
		w := *patch.Weather
		analysis.Weather = &w
	}
	if patch.Infrastructure != nil {
		i := *patch.Infrastructure
		analysis.Infrastructure = &i
	}
	if patch.Risk != nil {
		r := *patch.Risk
		analysis.Risk = &r
	}
	if patch.IncidentRef != nil {
		analysis.IncidentRef = *patch.IncidentRef
	}
	if patch.ProcessingSeconds != nil {
		analysis.ProcessingSeconds = *patch.ProcessingSeconds
	}
	if patch.ErrorMessage != nil {
		analysis.ErrorMessage = *patch.ErrorMessage
	}
	return nil
}

func (f *storeFake) seed(analysis *domain.Analysis) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyses[analysis.ID] = analysis.Clone()
}
