package usecase

import (
	"context"
	"errors"
	"fmt"
)

// Producer is one tier of a fallback chain: a named function producing a
// candidate value. A tier fails by returning an error or by returning a
// value the chain's validity predicate rejects (a sentinel-invalid result,
// e.g. a negative dryness score).
type Producer[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// Resolve tries producers strictly in order and returns the first value
// accepted by valid, together with the winning producer's name. Tiers are
// never retried here; retry policy belongs inside a producer. If every tier
// fails, the returned error aggregates each tier's failure for diagnostics.
// Callers that must always resolve supply a final tier that cannot fail.
func Resolve[T any](ctx context.Context, producers []Producer[T], valid func(T) bool) (T, string, error) {
	var zero T
	if len(producers) == 0 {
		return zero, "", errors.New("resolve: no producers supplied")
	}

	var tierErrs []error
	for _, p := range producers {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}

		value, err := p.Run(ctx)
		if err != nil {
			tierErrs = append(tierErrs, fmt.Errorf("%s: %w", p.Name, err))
			continue
		}
		if valid != nil && !valid(value) {
			tierErrs = append(tierErrs, fmt.Errorf("%s: producer returned invalid result", p.Name))
			continue
		}
		return value, p.Name, nil
	}

	return zero, "", fmt.Errorf("all %d producers failed: %w", len(producers), errors.Join(tierErrs...))
}
