package shared

import (
	"context"
)

// Specification expresses a business predicate over a domain object.
// Specifications are used for validation verdicts and for in-memory filtering
// in repositories.
type Specification[T any] interface {
	IsSatisfiedBy(ctx context.Context, candidate T) bool
}

// SpecFunc adapts a plain predicate to Specification.
type SpecFunc[T any] func(ctx context.Context, candidate T) bool

// IsSatisfiedBy calls f.
func (f SpecFunc[T]) IsSatisfiedBy(ctx context.Context, candidate T) bool {
	return f(ctx, candidate)
}

// ============================================================================
// Composite Specifications
// ============================================================================

// AndSpecification is satisfied when both sides are satisfied
type AndSpecification[T any] struct {
	Left  Specification[T]
	Right Specification[T]
}

func (spec AndSpecification[T]) IsSatisfiedBy(ctx context.Context, candidate T) bool {
	return spec.Left.IsSatisfiedBy(ctx, candidate) && spec.Right.IsSatisfiedBy(ctx, candidate)
}

// And creates a new AndSpecification
func And[T any](left, right Specification[T]) Specification[T] {
	return AndSpecification[T]{Left: left, Right: right}
}

// OrSpecification is satisfied when either side is satisfied
type OrSpecification[T any] struct {
	Left  Specification[T]
	Right Specification[T]
}

func (spec OrSpecification[T]) IsSatisfiedBy(ctx context.Context, candidate T) bool {
	return spec.Left.IsSatisfiedBy(ctx, candidate) || spec.Right.IsSatisfiedBy(ctx, candidate)
}

// Or creates a new OrSpecification
func Or[T any](left, right Specification[T]) Specification[T] {
	return OrSpecification[T]{Left: left, Right: right}
}

// NotSpecification inverts the inner specification
type NotSpecification[T any] struct {
	Spec Specification[T]
}

func (spec NotSpecification[T]) IsSatisfiedBy(ctx context.Context, candidate T) bool {
	return !spec.Spec.IsSatisfiedBy(ctx, candidate)
}

// Not creates a new NotSpecification
func Not[T any](inner Specification[T]) Specification[T] {
	return NotSpecification[T]{Spec: inner}
}

// All is satisfied when every specification is satisfied. An empty list is
// always satisfied.
func All[T any](specs ...Specification[T]) Specification[T] {
	return SpecFunc[T](func(ctx context.Context, candidate T) bool {
		for _, s := range specs {
			if !s.IsSatisfiedBy(ctx, candidate) {
				return false
			}
		}
		return true
	})
}

// Filter returns the candidates satisfying spec, preserving order.
func Filter[T any](ctx context.Context, spec Specification[T], candidates []T) []T {
	if spec == nil {
		return candidates
	}
	result := make([]T, 0, len(candidates))
	for _, c := range candidates {
		if spec.IsSatisfiedBy(ctx, c) {
			result = append(result, c)
		}
	}
	return result
}
