package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestResolveFirstTierWins(t *testing.T) {
	producers := []Producer[float64]{
		{Name: "primary", Run: func(context.Context) (float64, error) { return 0.42, nil }},
		{Name: "secondary", Run: func(context.Context) (float64, error) {
			t.Fatal("secondary must not run when primary succeeds")
			return 0, nil
		}},
	}

	value, name, err := Resolve(context.Background(), producers, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if value != 0.42 || name != "primary" {
		t.Fatalf("Resolve() = (%v, %s), want (0.42, primary)", value, name)
	}
}

func TestResolveSkipsFailingTier(t *testing.T) {
	producers := []Producer[float64]{
		{Name: "primary", Run: func(context.Context) (float64, error) { return 0, errors.New("upstream down") }},
		{Name: "secondary", Run: func(context.Context) (float64, error) { return 0.7, nil }},
	}

	value, name, err := Resolve(context.Background(), producers, nil)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if value != 0.7 || name != "secondary" {
		t.Fatalf("Resolve() = (%v, %s), want (0.7, secondary)", value, name)
	}
}

func TestResolveRejectsSentinelInvalid(t *testing.T) {
	producers := []Producer[float64]{
		{Name: "primary", Run: func(context.Context) (float64, error) { return -1, nil }},
		{Name: "fallback", Run: func(context.Context) (float64, error) { return 0.5, nil }},
	}

	value, name, err := Resolve(context.Background(), producers, func(v float64) bool { return v >= 0 })
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if value != 0.5 || name != "fallback" {
		t.Fatalf("Resolve() = (%v, %s), want (0.5, fallback)", value, name)
	}
}

func TestResolveAggregatesAllFailures(t *testing.T) {
	errPrimary := errors.New("timeout contacting model")
	producers := []Producer[float64]{
		{Name: "primary", Run: func(context.Context) (float64, error) { return 0, errPrimary }},
		{Name: "secondary", Run: func(context.Context) (float64, error) { return -1, nil }},
	}

	_, _, err := Resolve(context.Background(), producers, func(v float64) bool { return v >= 0 })
	if err == nil {
		t.Fatal("expected aggregate error")
	}
	if !errors.Is(err, errPrimary) {
		t.Fatalf("aggregate error lost tier 1 cause: %v", err)
	}
	for _, fragment := range []string{"all 2 producers failed", "primary", "secondary"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("aggregate error missing %q: %v", fragment, err)
		}
	}
}

func TestResolveStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	producers := []Producer[float64]{
		{Name: "primary", Run: func(context.Context) (float64, error) {
			t.Fatal("producer must not run after cancellation")
			return 0, nil
		}},
	}

	_, _, err := Resolve(ctx, producers, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Resolve() error = %v, want context.Canceled", err)
	}
}

func TestResolveNoProducers(t *testing.T) {
	_, _, err := Resolve[float64](context.Background(), nil, func(float64) bool { return true })
	if err == nil {
		t.Fatal("expected error for empty producer list")
	}
}
