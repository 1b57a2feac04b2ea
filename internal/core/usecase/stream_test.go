package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pyroguard/sentinel/internal/core/domain"
)

func streamOpts() StreamOptions {
	return StreamOptions{PollInterval: 500 * time.Millisecond, MaxWait: 2 * time.Second}
}

func collectEvents(t *testing.T, events <-chan domain.ProgressEvent) []domain.ProgressEvent {
	t.Helper()
	var got []domain.ProgressEvent
	deadline := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, event)
		case <-deadline:
			t.Fatalf("stream never closed, received so far: %+v", got)
		}
	}
}

func TestSubscribeUnknownAnalysis(t *testing.T) {
	store := newStoreFake()
	uc := NewProgressStreamUseCase(store, clockwork.NewFakeClock(), discardLogger(), streamOpts())

	_, err := uc.Subscribe(context.Background(), "missing")
	if !errors.Is(err, domain.ErrAnalysisNotFound) {
		t.Fatalf("Subscribe() error = %v, want ErrAnalysisNotFound", err)
	}
}

func TestSubscribeCompletedAnalysis(t *testing.T) {
	store := newStoreFake()
	risk := domain.RiskAssessment{Level: 0.73, Severity: domain.SeverityHigh}
	store.seed(&domain.Analysis{
		ID:                "a-1",
		Status:            domain.StatusCompleted,
		Risk:              &risk,
		IncidentRef:       "https://tickets.example.com/PYRO-42",
		ProcessingSeconds: 9.5,
	})
	uc := NewProgressStreamUseCase(store, clockwork.NewFakeClock(), discardLogger(), streamOpts())

	events, err := uc.Subscribe(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	got := collectEvents(t, events)

	if len(got) != 3 {
		t.Fatalf("expected connected+progress+complete, got %d events: %+v", len(got), got)
	}
	if got[0].Type != domain.EventConnected {
		t.Fatalf("first event = %s, want connected", got[0].Type)
	}
	if got[1].Type != domain.EventProgress || got[1].Risk == nil || got[1].IncidentRef == "" {
		t.Fatalf("second event = %+v, want progress with risk and incident ref", got[1])
	}
	last := got[2]
	if last.Type != domain.EventComplete || last.Status != domain.StatusCompleted {
		t.Fatalf("terminal event = %+v, want complete", last)
	}
	if last.ProcessingSeconds != 9.5 {
		t.Fatalf("ProcessingSeconds = %v, want 9.5", last.ProcessingSeconds)
	}
}

func TestSubscribeDedupsUnchangedSnapshots(t *testing.T) {
	store := newStoreFake()
	veg := domain.VegetationData{DrynessScore: 0.68, Confidence: 0.75, Method: "fallback_demo"}
	store.seed(&domain.Analysis{ID: "a-2", Status: domain.StatusProcessing, Vegetation: &veg})

	clock := clockwork.NewFakeClock()
	uc := NewProgressStreamUseCase(store, clock, discardLogger(), streamOpts())

	events, err := uc.Subscribe(context.Background(), "a-2")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if event := <-events; event.Type != domain.EventConnected {
		t.Fatalf("first event = %s, want connected", event.Type)
	}
	if event := <-events; event.Type != domain.EventProgress || event.Vegetation == nil {
		t.Fatalf("second event = %+v, want progress with vegetation", event)
	}

	// Two polls with no store change must emit nothing.
	for i := 0; i < 2; i++ {
		clock.BlockUntil(1)
		clock.Advance(500 * time.Millisecond)
	}
	select {
	case event := <-events:
		t.Fatalf("unexpected event for unchanged snapshot: %+v", event)
	case <-time.After(100 * time.Millisecond):
	}

	completed := domain.StatusCompleted
	if err := store.Apply(context.Background(), "a-2", domain.AnalysisPatch{Status: &completed}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	clock.BlockUntil(1)
	clock.Advance(500 * time.Millisecond)

	rest := collectEvents(t, events)
	if len(rest) != 1 || rest[0].Type != domain.EventComplete {
		t.Fatalf("expected a single complete event, got %+v", rest)
	}
}

func TestSubscribeTimesOutOnStuckPipeline(t *testing.T) {
	store := newStoreFake()
	store.seed(&domain.Analysis{ID: "a-3", Status: domain.StatusProcessing})

	clock := clockwork.NewFakeClock()
	uc := NewProgressStreamUseCase(store, clock, discardLogger(), streamOpts())

	events, err := uc.Subscribe(context.Background(), "a-3")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if event := <-events; event.Type != domain.EventConnected {
		t.Fatalf("first event = %s, want connected", event.Type)
	}

	done := make(chan []domain.ProgressEvent, 1)
	go func() {
		var got []domain.ProgressEvent
		for event := range events {
			got = append(got, event)
		}
		done <- got
	}()

	// MaxWait is 2s at 500ms polls: four advances cross the boundary.
	for i := 0; i < 4; i++ {
		clock.BlockUntil(1)
		clock.Advance(500 * time.Millisecond)
	}

	select {
	case got := <-done:
		if len(got) != 1 || got[0].Type != domain.EventTimeout {
			t.Fatalf("expected exactly one timeout event, got %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not time out")
	}
}

func TestTwoSubscribersReceiveIndependentStreams(t *testing.T) {
	store := newStoreFake()
	risk := domain.RiskAssessment{Level: 0.21, Severity: domain.SeverityLow}
	store.seed(&domain.Analysis{ID: "a-4", Status: domain.StatusCompleted, Risk: &risk})
	uc := NewProgressStreamUseCase(store, clockwork.NewFakeClock(), discardLogger(), streamOpts())

	first, err := uc.Subscribe(context.Background(), "a-4")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	second, err := uc.Subscribe(context.Background(), "a-4")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	for _, events := range []<-chan domain.ProgressEvent{first, second} {
		got := collectEvents(t, events)
		completes := 0
		for _, event := range got {
			if event.Type == domain.EventComplete {
				completes++
			}
		}
		if completes != 1 {
			t.Fatalf("expected exactly one complete event per subscriber, got %d in %+v", completes, got)
		}
	}
}

func TestSubscribeStopsOnCancelledContext(t *testing.T) {
	store := newStoreFake()
	store.seed(&domain.Analysis{ID: "a-5", Status: domain.StatusProcessing})

	clock := clockwork.NewFakeClock()
	uc := NewProgressStreamUseCase(store, clock, discardLogger(), streamOpts())

	ctx, cancel := context.WithCancel(context.Background())
	events, err := uc.Subscribe(ctx, "a-5")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if event := <-events; event.Type != domain.EventConnected {
		t.Fatalf("first event = %s, want connected", event.Type)
	}

	clock.BlockUntil(1)
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel did not close after cancellation")
		}
	}
}
