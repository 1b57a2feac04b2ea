package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pyroguard/sentinel/internal/core/domain"
	"github.com/pyroguard/sentinel/internal/core/ports"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxWait      = 60 * time.Second
)

type StreamOptions struct {
	PollInterval time.Duration
	MaxWait      time.Duration
}

func (o StreamOptions) normalize() StreamOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.MaxWait <= 0 {
		o.MaxWait = defaultMaxWait
	}
	return o
}

// ProgressStreamUseCase turns the analysis store into a per-subscriber event
// sequence by polling. Each subscriber gets its own goroutine and channel;
// the store is the single source of truth, so late subscribers immediately
// receive everything accumulated so far and concurrent subscribers observe
// the same progression independently.
type ProgressStreamUseCase struct {
	store  ports.AnalysisStore
	clock  clockwork.Clock
	logger *slog.Logger
	opts   StreamOptions
}

func NewProgressStreamUseCase(
	store ports.AnalysisStore,
	clock clockwork.Clock,
	logger *slog.Logger,
	opts StreamOptions,
) *ProgressStreamUseCase {
	return &ProgressStreamUseCase{
		store:  store,
		clock:  clock,
		logger: logger,
		opts:   opts.normalize(),
	}
}

// Subscribe validates the analysis exists, then returns a single-use channel.
// The sequence is: one connected event, zero or more deduplicated progress
// events, then exactly one terminal event (complete or timeout), after which
// the channel closes. Cancelling ctx closes the channel without a terminal
// event.
func (uc *ProgressStreamUseCase) Subscribe(ctx context.Context, analysisID string) (<-chan domain.ProgressEvent, error) {
	if _, err := uc.store.Get(ctx, analysisID); err != nil {
		return nil, err
	}

	events := make(chan domain.ProgressEvent, 16)
	go uc.pump(ctx, analysisID, events)
	return events, nil
}

// seenFields is the presence vector for deduplication: a progress event is
// emitted only when a field group appears that previous polls lacked.
type seenFields struct {
	vegetation     bool
	weather        bool
	infrastructure bool
	risk           bool
	incident       bool
}

func (uc *ProgressStreamUseCase) pump(ctx context.Context, analysisID string, events chan<- domain.ProgressEvent) {
	defer close(events)

	connected := domain.ProgressEvent{
		Type:       domain.EventConnected,
		AnalysisID: analysisID,
		Status:     domain.StatusProcessing,
		Timestamp:  uc.clock.Now(),
	}
	if !uc.send(ctx, events, connected) {
		return
	}

	var seen seenFields
	deadline := uc.clock.Now().Add(uc.opts.MaxWait)
	ticker := uc.clock.NewTicker(uc.opts.PollInterval)
	defer ticker.Stop()

	for {
		snapshot, err := uc.store.Get(ctx, analysisID)
		if err != nil {
			uc.logger.Warn("progress poll failed", "analysis_id", analysisID, "error", err)
			uc.send(ctx, events, domain.ProgressEvent{
				Type:       domain.EventError,
				AnalysisID: analysisID,
				Message:    "analysis state unavailable",
				Timestamp:  uc.clock.Now(),
			})
			return
		}

		if event, updated := uc.diff(snapshot, &seen); updated {
			if !uc.send(ctx, events, event) {
				return
			}
		}

		if snapshot.Status.Terminal() {
			uc.send(ctx, events, completionEvent(snapshot, uc.clock.Now()))
			return
		}

		if !uc.clock.Now().Before(deadline) {
			uc.send(ctx, events, domain.ProgressEvent{
				Type:       domain.EventTimeout,
				AnalysisID: analysisID,
				Status:     snapshot.Status,
				Message:    "analysis did not finish within the streaming window",
				Timestamp:  uc.clock.Now(),
			})
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}

// diff compares the snapshot against the presence vector and builds one
// progress event carrying every group that newly appeared. Returns false
// when nothing changed.
func (uc *ProgressStreamUseCase) diff(snapshot *domain.Analysis, seen *seenFields) (domain.ProgressEvent, bool) {
	event := domain.ProgressEvent{
		Type:       domain.EventProgress,
		AnalysisID: snapshot.ID,
		Status:     snapshot.Status,
		Timestamp:  uc.clock.Now(),
	}
	updated := false

	if snapshot.Vegetation != nil && !seen.vegetation {
		seen.vegetation = true
		event.Vegetation = snapshot.Vegetation
		updated = true
	}
	if snapshot.Weather != nil && !seen.weather {
		seen.weather = true
		event.Weather = snapshot.Weather
		updated = true
	}
	if snapshot.Infrastructure != nil && !seen.infrastructure {
		seen.infrastructure = true
		event.Infrastructure = snapshot.Infrastructure
		updated = true
	}
	if snapshot.Risk != nil && !seen.risk {
		seen.risk = true
		event.Risk = snapshot.Risk
		updated = true
	}
	if snapshot.IncidentRef != "" && !seen.incident {
		seen.incident = true
		event.IncidentRef = snapshot.IncidentRef
		updated = true
	}

	return event, updated
}

func completionEvent(snapshot *domain.Analysis, at time.Time) domain.ProgressEvent {
	event := domain.ProgressEvent{
		Type:              domain.EventComplete,
		AnalysisID:        snapshot.ID,
		Status:            snapshot.Status,
		Risk:              snapshot.Risk,
		IncidentRef:       snapshot.IncidentRef,
		ProcessingSeconds: snapshot.ProcessingSeconds,
		Timestamp:         at,
	}
	if snapshot.Status == domain.StatusFailed {
		event.Message = snapshot.ErrorMessage
	}
	return event
}

func (uc *ProgressStreamUseCase) send(ctx context.Context, events chan<- domain.ProgressEvent, event domain.ProgressEvent) bool {
	select {
	case <-ctx.Done():
		return false
	case events <- event:
		return true
	}
}
