package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pyroguard/sentinel/internal/core/domain"
)

func TestCreateAndGetReturnsCopy(t *testing.T) {
	store := NewAnalysisStore()
	veg := domain.VegetationData{DrynessScore: 0.5, Confidence: 0.8, Method: "clarifai_ndvi"}
	original := &domain.Analysis{ID: "a-1", Status: domain.StatusProcessing, Vegetation: &veg}

	require.NoError(t, store.Create(context.Background(), original))

	got, err := store.Get(context.Background(), "a-1")
	require.NoError(t, err)
	require.Equal(t, original.ID, got.ID)

	// Mutating the returned snapshot must not leak into the store.
	got.Vegetation.DrynessScore = 0.99
	again, err := store.Get(context.Background(), "a-1")
	require.NoError(t, err)
	require.Equal(t, 0.5, again.Vegetation.DrynessScore)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	store := NewAnalysisStore()
	require.NoError(t, store.Create(context.Background(), &domain.Analysis{ID: "a-1"}))

	err := store.Create(context.Background(), &domain.Analysis{ID: "a-1"})
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.ErrInvalidInput))
}

func TestGetUnknownID(t *testing.T) {
	store := NewAnalysisStore()
	_, err := store.Get(context.Background(), "missing")
	require.True(t, domain.IsKind(err, domain.ErrAnalysisNotFound))
}

func TestApplyMergesPartialFields(t *testing.T) {
	store := NewAnalysisStore()
	require.NoError(t, store.Create(context.Background(), &domain.Analysis{ID: "a-1", Status: domain.StatusProcessing}))

	veg := domain.VegetationData{DrynessScore: 0.7, Confidence: 0.9, Method: "clarifai_ndvi"}
	require.NoError(t, store.Apply(context.Background(), "a-1", domain.AnalysisPatch{Vegetation: &veg}))

	wx := domain.WeatherData{TemperatureF: 88, HumidityPercent: 35, WindSpeedMph: 22, Conditions: "dry"}
	require.NoError(t, store.Apply(context.Background(), "a-1", domain.AnalysisPatch{Weather: &wx}))

	got, err := store.Get(context.Background(), "a-1")
	require.NoError(t, err)
	require.NotNil(t, got.Vegetation, "earlier patch fields must survive later patches")
	require.Equal(t, 0.7, got.Vegetation.DrynessScore)
	require.NotNil(t, got.Weather)
	require.Equal(t, 88.0, got.Weather.TemperatureF)
	require.Equal(t, domain.StatusProcessing, got.Status)
}

func TestApplyRejectsTerminalDemotion(t *testing.T) {
	store := NewAnalysisStore()
	require.NoError(t, store.Create(context.Background(), &domain.Analysis{ID: "a-1", Status: domain.StatusProcessing}))

	completed := domain.StatusCompleted
	require.NoError(t, store.Apply(context.Background(), "a-1", domain.AnalysisPatch{Status: &completed}))

	processing := domain.StatusProcessing
	err := store.Apply(context.Background(), "a-1", domain.AnalysisPatch{Status: &processing})
	require.True(t, domain.IsKind(err, domain.ErrInvalidInput))

	got, err := store.Get(context.Background(), "a-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, got.Status)
}

func TestConcurrentWritersOnDistinctKeys(t *testing.T) {
	store := NewAnalysisStore()
	const workers = 64
	const updates = 50

	ctx := context.Background()
	for i := 0; i < workers; i++ {
		require.NoError(t, store.Create(ctx, &domain.Analysis{
			ID:     fmt.Sprintf("a-%d", i),
			Status: domain.StatusProcessing,
		}))
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < updates; j++ {
				secs := float64(j)
				if err := store.Apply(ctx, id, domain.AnalysisPatch{ProcessingSeconds: &secs}); err != nil {
					t.Error(err)
					return
				}
				if _, err := store.Get(ctx, id); err != nil {
					t.Error(err)
					return
				}
			}
		}(fmt.Sprintf("a-%d", i))
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		got, err := store.Get(ctx, fmt.Sprintf("a-%d", i))
		require.NoError(t, err)
		require.Equal(t, float64(updates-1), got.ProcessingSeconds)
	}
}

func TestConcurrentPatchesOnOneKeyInterleaveWhole(t *testing.T) {
	store := NewAnalysisStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &domain.Analysis{ID: "a-1", Status: domain.StatusProcessing}))

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			veg := domain.VegetationData{DrynessScore: float64(n) / 100, Confidence: float64(n) / 100, Method: "clarifai_ndvi"}
			if err := store.Apply(ctx, "a-1", domain.AnalysisPatch{Vegetation: &veg}); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	got, err := store.Get(ctx, "a-1")
	require.NoError(t, err)
	require.NotNil(t, got.Vegetation)
	// Whichever writer won, both fields must come from the same patch.
	require.Equal(t, got.Vegetation.DrynessScore, got.Vegetation.Confidence)
}
