// Package memory provides the concurrency-safe analysis registry backing
// both API and worker processes in single-node deployments.
package memory

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/pyroguard/sentinel/internal/core/domain"
)

const shardCount = 32

// AnalysisStore is a sharded map keyed by analysis id. Each shard carries
// its own RWMutex, so writers on distinct ids rarely contend while updates
// to one id are fully serialized. All reads return deep copies; a caller
// never holds a pointer into the store.
type AnalysisStore struct {
	shards [shardCount]shard
}

type shard struct {
	mu       sync.RWMutex
	analyses map[string]*domain.Analysis
}

func NewAnalysisStore() *AnalysisStore {
	store := &AnalysisStore{}
	for i := range store.shards {
		store.shards[i].analyses = make(map[string]*domain.Analysis)
	}
	return store
}

func (s *AnalysisStore) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &s.shards[h.Sum32()%shardCount]
}

func (s *AnalysisStore) Create(_ context.Context, analysis *domain.Analysis) error {
	if analysis == nil || analysis.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "create analysis", errEmptyID)
	}

	sh := s.shardFor(analysis.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, exists := sh.analyses[analysis.ID]; exists {
		return domain.WrapError(domain.ErrInvalidInput, "create analysis", errDuplicateID)
	}
	sh.analyses[analysis.ID] = analysis.Clone()
	return nil
}

func (s *AnalysisStore) Get(_ context.Context, id string) (*domain.Analysis, error) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	analysis, ok := sh.analyses[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrAnalysisNotFound, "get analysis", errUnknownID(id))
	}
	return analysis.Clone(), nil
}

// Apply merges a partial update under the shard lock so concurrent phase
// writers interleave at whole-patch granularity. Status moves forward only:
// a patch that would demote a terminal status is rejected.
func (s *AnalysisStore) Apply(_ context.Context, id string, patch domain.AnalysisPatch) error {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	analysis, ok := sh.analyses[id]
	if !ok {
		return domain.WrapError(domain.ErrAnalysisNotFound, "update analysis", errUnknownID(id))
	}

	if patch.Status != nil {
		if analysis.Status.Terminal() && *patch.Status != analysis.Status {
			return domain.WrapError(domain.ErrInvalidInput, "update analysis", errTerminalStatus(analysis.Status))
		}
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
